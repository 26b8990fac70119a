package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"invest-wallet/internal/logger"
	"invest-wallet/internal/models"
	"invest-wallet/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CommissionQueue hands a settled deposit over for commission distribution.
// Implementations must tolerate the same transaction being enqueued twice.
type CommissionQueue interface {
	EnqueueCommission(ctx context.Context, transactionId int) error
}

// InlineCommissionQueue distributes immediately in the caller's goroutine.
type InlineCommissionQueue struct {
	Commission *CommissionService
}

func (q InlineCommissionQueue) EnqueueCommission(ctx context.Context, transactionId int) error {
	_, err := q.Commission.Distribute(ctx, transactionId)
	return err
}

type DepositService struct {
	Store  repository.LedgerStore
	Helper *HelperService
	Queue  CommissionQueue
}

func NewDepositService(store repository.LedgerStore, helper *HelperService, queue CommissionQueue) *DepositService {
	return &DepositService{Store: store, Helper: helper, Queue: queue}
}

type CreateDepositDTO struct {
	UserId        int             `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description"`
}

// CreateDeposit records a pending deposit. The wallet is only credited when
// the payment is settled.
func (s *DepositService) CreateDeposit(ctx context.Context, data CreateDepositDTO) (*models.Transaction, error) {
	if _, err := s.Store.GetWallet(ctx, data.UserId); err != nil {
		return nil, err
	}
	trx := &models.Transaction{
		Type:          models.TransactionDeposit,
		Amount:        data.Amount,
		Status:        models.StatusPending,
		PaymentMethod: data.PaymentMethod,
		Description:   data.Description,
	}
	if err := s.Helper.SaveTransaction(ctx, s.Store, data.UserId, repository.WalletDelta{}, trx); err != nil {
		return nil, err
	}
	return trx, nil
}

type SettleDepositDTO struct {
	TransactionId int
	Success       bool
	Source        string
	Payload       interface{}
}

// SettleDeposit applies a payment confirmation. Settlement callbacks may be
// delivered more than once: a transaction that is already final is returned
// unchanged, and a completed one is enqueued for commission again so a lost
// enqueue heals on redelivery.
func (s *DepositService) SettleDeposit(ctx context.Context, data SettleDepositDTO) (*models.Transaction, error) {
	s.logCallback(ctx, data)

	trx, err := s.Store.GetTransaction(ctx, data.TransactionId)
	if err != nil {
		return nil, err
	}
	if trx.Type != models.TransactionDeposit {
		return nil, fmt.Errorf("%w: transaction %d is not a deposit", ErrInvalidState, trx.ID)
	}

	if !trx.Status.Terminal() {
		err = retryOnConflict(ctx, func() error {
			return s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
				current, err := tx.GetTransaction(ctx, data.TransactionId)
				if err != nil {
					return err
				}
				if current.Status.Terminal() {
					return nil
				}
				now := s.Helper.Now()
				if !data.Success {
					return tx.UpdateTransactionStatus(ctx, current.ID, current.Status, models.StatusFailed, now)
				}
				if err := tx.ApplyWalletDelta(ctx, current.UserId, repository.WalletDelta{Balance: current.Amount}); err != nil {
					return err
				}
				return tx.UpdateTransactionStatus(ctx, current.ID, current.Status, models.StatusCompleted, now)
			})
		})
		if err != nil {
			return nil, err
		}
		if trx, err = s.Store.GetTransaction(ctx, data.TransactionId); err != nil {
			return nil, err
		}
	}

	if trx.Status == models.StatusCompleted && s.Queue != nil {
		if err := s.Queue.EnqueueCommission(ctx, trx.ID); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
			// The reconciler picks the deposit up later.
			logger.Log.Error("Failed to enqueue commission", zap.Int("transactionId", trx.ID), zap.Error(err))
		}
	}
	return trx, nil
}

func (s *DepositService) logCallback(ctx context.Context, data SettleDepositDTO) {
	request, _ := json.Marshal(data.Payload)
	status := 2
	if data.Success {
		status = 1
	}
	entry := &models.CallbackLog{
		Source:        data.Source,
		TransactionId: data.TransactionId,
		Request:       string(request),
		Status:        status,
	}
	if err := s.Store.InsertCallbackLog(ctx, entry); err != nil {
		logger.Log.Warn("Failed to record settlement callback", zap.Int("transactionId", data.TransactionId), zap.Error(err))
	}
}
