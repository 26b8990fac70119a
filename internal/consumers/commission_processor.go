package consumers

import (
	"context"
	"errors"
	"fmt"

	"invest-wallet/internal/logger"
	"invest-wallet/internal/repository"
	"invest-wallet/internal/services"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type CommissionProcessor struct {
	Commission  *services.CommissionService
	Withdrawals *services.WithdrawalService
}

func NewCommissionProcessor(commission *services.CommissionService, withdrawals *services.WithdrawalService) *CommissionProcessor {
	return &CommissionProcessor{
		Commission:  commission,
		Withdrawals: withdrawals,
	}
}

// --- DTOs ---

type CommissionJobDTO struct {
	TransactionId int `json:"transaction_id"`
}

type PayoutResultDTO struct {
	WithdrawalId int    `json:"withdrawal_id"`
	Success      bool   `json:"success"`
	Comment      string `json:"comment"`
}

// ProcessCommission distributes the commission of one settled deposit. Errors
// that a retry cannot fix are wrapped with asynq.SkipRetry; the reconciler
// covers anything still missing once retries run out.
func (p *CommissionProcessor) ProcessCommission(ctx context.Context, data CommissionJobDTO) error {
	if data.TransactionId <= 0 {
		return fmt.Errorf("invalid transaction id %d: %w", data.TransactionId, asynq.SkipRetry)
	}

	earnings, err := p.Commission.Distribute(ctx, data.TransactionId)
	if err != nil {
		if errors.Is(err, services.ErrNotEligible) {
			logger.Log.Warn("Commission task skipped", zap.Int("transactionId", data.TransactionId), zap.Error(err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Log.Error("Commission task failed", zap.Int("transactionId", data.TransactionId), zap.Error(err))
		return err
	}

	logger.Log.Info("Commission task processed",
		zap.Int("transactionId", data.TransactionId),
		zap.Int("levelsPaid", len(earnings)))
	return nil
}

// ProcessPayoutResult settles a withdrawal once the payout provider has
// answered. A request that is already final is left alone.
func (p *CommissionProcessor) ProcessPayoutResult(ctx context.Context, data PayoutResultDTO) error {
	if data.WithdrawalId <= 0 {
		return fmt.Errorf("invalid withdrawal id %d: %w", data.WithdrawalId, asynq.SkipRetry)
	}

	req, err := p.Withdrawals.CompleteWithdrawal(ctx, data.WithdrawalId, data.Success, data.Comment)
	if err != nil {
		if errors.Is(err, services.ErrInvalidState) || errors.Is(err, repository.ErrNotFound) {
			logger.Log.Warn("Payout result ignored", zap.Int("withdrawalId", data.WithdrawalId), zap.Error(err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Log.Error("Payout result failed", zap.Int("withdrawalId", data.WithdrawalId), zap.Error(err))
		return err
	}

	logger.Log.Info("Payout result applied",
		zap.Int("withdrawalId", req.ID),
		zap.String("status", string(req.Status)))
	return nil
}
