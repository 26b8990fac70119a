package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-wallet/internal/logger"
	"invest-wallet/internal/metrics"
	"invest-wallet/internal/models"
	"invest-wallet/internal/policy"
	"invest-wallet/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CommissionService struct {
	Store     repository.LedgerStore
	Helper    *HelperService
	Referrals *ReferralService
	Policy    policy.Policy
}

func NewCommissionService(store repository.LedgerStore, helper *HelperService, referrals *ReferralService, pol policy.Policy) *CommissionService {
	return &CommissionService{
		Store:     store,
		Helper:    helper,
		Referrals: referrals,
		Policy:    pol,
	}
}

// Distribute pays the referral commission of a completed deposit to up to
// three ancestors of the depositor. Each level is applied in its own store
// transaction and at most once per deposit; levels paid earlier are skipped.
// It returns the earnings created by this call together with the joined
// errors of the levels that failed.
func (s *CommissionService) Distribute(ctx context.Context, transactionId int) ([]models.ReferralEarning, error) {
	trx, err := s.Store.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	if trx.Type != models.TransactionDeposit || trx.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: transaction %d is a %s deposit in status %s", ErrNotEligible, trx.ID, trx.Type, trx.Status)
	}

	ancestors, err := s.Referrals.Ancestors(ctx, trx.UserId)
	if err != nil {
		return nil, err
	}
	existing, err := s.Store.EarningsForTransaction(ctx, trx.ID)
	if err != nil {
		return nil, err
	}
	paid := make(map[int]bool, len(existing))
	for _, e := range existing {
		paid[e.Level] = true
	}

	net := s.Policy.NetDeposit(trx.Amount)
	created := make([]models.ReferralEarning, 0, len(ancestors))
	var errs []error

	for _, ancestor := range ancestors {
		level := ancestor.Level.String()
		if paid[int(ancestor.Level)] {
			// Concurrent deliveries that miss this read still meet the unique earning index.
			metrics.CommissionsTotal.WithLabelValues(level, "already_processed").Inc()
			continue
		}
		amount := s.Policy.Commission(net, ancestor.Level)
		if !amount.IsPositive() {
			metrics.CommissionsTotal.WithLabelValues(level, "skipped").Inc()
			continue
		}

		earning, err := s.distributeLevel(ctx, trx, ancestor, amount)
		switch {
		case err == nil:
			created = append(created, earning)
			metrics.CommissionsTotal.WithLabelValues(level, "paid").Inc()
			metrics.CommissionAmountTotal.WithLabelValues(level).Add(amount.InexactFloat64())
		case errors.Is(err, ErrAlreadyProcessed):
			metrics.CommissionsTotal.WithLabelValues(level, "already_processed").Inc()
			logger.Log.Info("Commission already processed",
				zap.Int("transactionId", trx.ID),
				zap.Int("level", int(ancestor.Level)),
				zap.Int("referrerId", ancestor.ReferrerId))
		default:
			metrics.CommissionsTotal.WithLabelValues(level, "failed").Inc()
			logger.Log.Error("Commission distribution failed",
				zap.Int("transactionId", trx.ID),
				zap.Int("level", int(ancestor.Level)),
				zap.Int("referrerId", ancestor.ReferrerId),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("level %d: %w", ancestor.Level, err))
		}
	}

	return created, errors.Join(errs...)
}

func (s *CommissionService) distributeLevel(ctx context.Context, deposit *models.Transaction, ancestor Ancestor, amount decimal.Decimal) (models.ReferralEarning, error) {
	var earning models.ReferralEarning
	err := retryOnConflict(ctx, func() error {
		return s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
			commission := &models.Transaction{
				Type:        models.TransactionReferralCommission,
				Amount:      amount,
				Status:      models.StatusCompleted,
				Description: fmt.Sprintf("Level %d referral commission on deposit #%d", ancestor.Level, deposit.ID),
			}
			delta := repository.WalletDelta{Balance: amount, TotalEarnings: amount}
			if err := s.Helper.SaveTransaction(ctx, tx, ancestor.ReferrerId, delta, commission); err != nil {
				return err
			}

			earning = models.ReferralEarning{
				UserId:                  ancestor.ReferrerId,
				ReferralEdgeId:          ancestor.EdgeId,
				Amount:                  amount,
				Level:                   int(ancestor.Level),
				TransactionId:           deposit.ID,
				CommissionTransactionId: commission.ID,
			}
			inserted, err := tx.InsertReferralEarningIfAbsent(ctx, &earning)
			if err != nil {
				return err
			}
			if !inserted {
				return ErrAlreadyProcessed
			}
			return nil
		})
	})
	return earning, err
}

// Reconcile re-runs distribution for every deposit completed since the given
// time, so levels lost to crashes or failed enqueues are eventually paid.
func (s *CommissionService) Reconcile(ctx context.Context, since time.Time) (int, error) {
	deposits, err := s.Store.ListCompletedDeposits(ctx, since)
	if err != nil {
		return 0, err
	}

	paid := 0
	var errs []error
	for _, deposit := range deposits {
		earnings, err := s.Distribute(ctx, deposit.ID)
		paid += len(earnings)
		if err != nil {
			errs = append(errs, fmt.Errorf("deposit %d: %w", deposit.ID, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return paid, errors.Join(errs...)
}

// StartScheduler reconciles commissions every 10 minutes over the given look-back.
func (s *CommissionService) StartScheduler(lookback time.Duration) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("*/10 * * * *", func() {
		since := s.Helper.Now().Add(-lookback)
		paid, err := s.Reconcile(context.Background(), since)
		if err != nil {
			logger.Log.Error("Commission reconciliation finished with errors", zap.Int("paid", paid), zap.Error(err))
			return
		}
		if paid > 0 {
			logger.Log.Info("Commission reconciliation paid missing levels", zap.Int("paid", paid))
		}
	})
	if err != nil {
		logger.Log.Error("Error scheduling commission reconciliation", zap.Error(err))
		return nil
	}
	c.Start()
	logger.Log.Info("Commission reconciliation scheduler started", zap.Duration("lookback", lookback))
	return c
}
