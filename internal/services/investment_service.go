package services

import (
	"context"
	"fmt"

	"invest-wallet/internal/models"
	"invest-wallet/internal/policy"
	"invest-wallet/internal/repository"

	"github.com/shopspring/decimal"
)

type InvestmentService struct {
	Store  repository.LedgerStore
	Helper *HelperService
}

func NewInvestmentService(store repository.LedgerStore, helper *HelperService) *InvestmentService {
	return &InvestmentService{Store: store, Helper: helper}
}

type InvestDTO struct {
	UserId    int             `json:"-"`
	ProjectId int             `json:"project_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// Invest locks part of the available balance into a project stake.
func (s *InvestmentService) Invest(ctx context.Context, data InvestDTO) (*models.Investment, error) {
	if !validAmount(data.Amount) {
		return nil, ErrInvalidAmount
	}

	var inv models.Investment
	err := s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
		projectId := data.ProjectId
		trx := models.Transaction{
			Type:        models.TransactionInvestment,
			Amount:      data.Amount,
			Status:      models.StatusCompleted,
			ProjectId:   &projectId,
			Description: fmt.Sprintf("Investment in project #%d", data.ProjectId),
		}
		if err := s.Helper.SaveTransaction(ctx, tx, data.UserId, repository.WalletDelta{InvestedAmount: data.Amount}, &trx); err != nil {
			return err
		}
		inv = models.Investment{
			UserId:        data.UserId,
			ProjectId:     data.ProjectId,
			Amount:        data.Amount,
			Status:        models.InvestmentActive,
			TransactionId: trx.ID,
		}
		return tx.InsertInvestment(ctx, &inv)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Release ends an active investment. The unlocked stake is recorded as an
// investment_release transaction and the payout, if any, as roi_payout.
func (s *InvestmentService) Release(ctx context.Context, id int, payout decimal.Decimal) (*models.Investment, error) {
	if payout.IsNegative() || !policy.IsMinorUnit(payout) {
		return nil, ErrInvalidAmount
	}

	err := s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
		inv, err := tx.GetInvestment(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != models.InvestmentActive {
			return fmt.Errorf("%w: investment %d is %s", ErrInvalidState, inv.ID, inv.Status)
		}
		if err := tx.UpdateInvestmentStatus(ctx, inv.ID, models.InvestmentActive, models.InvestmentCompleted); err != nil {
			return err
		}

		projectId := inv.ProjectId
		unlock := models.Transaction{
			Type:        models.TransactionInvestmentRelease,
			Amount:      inv.Amount,
			Status:      models.StatusCompleted,
			ProjectId:   &projectId,
			Description: fmt.Sprintf("Release of investment #%d", inv.ID),
		}
		if err := s.Helper.SaveTransaction(ctx, tx, inv.UserId, repository.WalletDelta{InvestedAmount: inv.Amount.Neg()}, &unlock); err != nil {
			return err
		}
		if !payout.IsPositive() {
			return nil
		}

		roi := models.Transaction{
			Type:        models.TransactionROIPayout,
			Amount:      payout,
			Status:      models.StatusCompleted,
			ProjectId:   &projectId,
			Description: fmt.Sprintf("Return on investment #%d", inv.ID),
		}
		return s.Helper.SaveTransaction(ctx, tx, inv.UserId, repository.WalletDelta{Balance: payout}, &roi)
	})
	if err != nil {
		return nil, err
	}
	return s.Store.GetInvestment(ctx, id)
}
