package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-wallet/internal/models"
	"invest-wallet/internal/policy"
	"invest-wallet/internal/repository"
	"invest-wallet/pkg/common"

	"github.com/shopspring/decimal"
)

const maxConflictRetries = 3

type HelperService struct {
	Store repository.LedgerStore
	Now   func() time.Time
}

func NewHelperService(store repository.LedgerStore) *HelperService {
	return &HelperService{Store: store, Now: time.Now}
}

var referencePrefixes = map[models.TransactionType]string{
	models.TransactionDeposit:            "DEP",
	models.TransactionWithdrawal:         "WDR",
	models.TransactionInvestment:         "INV",
	models.TransactionInvestmentRelease:  "REL",
	models.TransactionROIPayout:          "ROI",
	models.TransactionReferralCommission: "COM",
}

// SaveTransaction applies a wallet delta and records the transaction that
// explains it. Both writes go through tx, so callers get them atomically.
// A zero delta records the transaction alone.
func (s *HelperService) SaveTransaction(ctx context.Context, tx repository.LedgerStore, userId int, delta repository.WalletDelta, trx *models.Transaction) error {
	if !trx.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", trx.Type)
	}
	if !validAmount(trx.Amount) {
		return ErrInvalidAmount
	}

	trx.UserId = userId
	if trx.Reference == "" {
		trx.Reference = common.NewReference(referencePrefixes[trx.Type])
	}
	if trx.Status == "" {
		trx.Status = models.StatusPending
	}
	if trx.Status == models.StatusCompleted && trx.CompletedAt == nil {
		now := s.Now()
		trx.CompletedAt = &now
	}

	if !isZeroDelta(delta) {
		if err := tx.ApplyWalletDelta(ctx, userId, delta); err != nil {
			return err
		}
	}
	return tx.InsertTransaction(ctx, trx)
}

func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && policy.IsMinorUnit(d)
}

func isZeroDelta(d repository.WalletDelta) bool {
	return d.Balance.IsZero() && d.InvestedAmount.IsZero() && d.PendingWithdrawal.IsZero() &&
		d.TotalEarnings.IsZero() && d.WithdrawalCount == 0 && d.LastWithdrawalAt == nil
}

// retryOnConflict reruns fn while it loses write races, up to maxConflictRetries times.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = fn(); !errors.Is(err, repository.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
