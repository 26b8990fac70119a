package services

import (
	"context"

	"invest-wallet/internal/models"
	"invest-wallet/internal/repository"

	"github.com/shopspring/decimal"
)

const defaultCurrency = "NGN"

type WalletService struct {
	Store repository.LedgerStore
}

func NewWalletService(store repository.LedgerStore) *WalletService {
	return &WalletService{Store: store}
}

type CreateWalletDTO struct {
	UserId   int    `json:"user_id" binding:"required"`
	Currency string `json:"currency"`
}

// CreateWallet opens an empty wallet. Money only enters through deposits.
func (s *WalletService) CreateWallet(ctx context.Context, data CreateWalletDTO) (*WalletDTO, error) {
	currency := data.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	wallet := models.Wallet{UserId: data.UserId, Currency: currency}
	if err := s.Store.CreateWallet(ctx, &wallet); err != nil {
		return nil, err
	}
	return &WalletDTO{Wallet: wallet, AvailableBalance: wallet.AvailableBalance()}, nil
}

type WalletDTO struct {
	models.Wallet
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

func (s *WalletService) GetWallet(ctx context.Context, userId int) (*WalletDTO, error) {
	wallet, err := s.Store.GetWallet(ctx, userId)
	if err != nil {
		return nil, err
	}
	return &WalletDTO{Wallet: *wallet, AvailableBalance: wallet.AvailableBalance()}, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userId, page, limit int) ([]models.Transaction, int64, error) {
	return s.Store.ListTransactions(ctx, userId, page, limit)
}
