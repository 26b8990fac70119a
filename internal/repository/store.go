// Package repository is the durable ledger behind the wallet services. Every
// wallet mutation goes through ApplyWalletDelta, which refuses any change that
// would leave a wallet with a negative available balance.
package repository

import (
	"context"
	"errors"
	"time"

	"invest-wallet/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("conflicting write")
	ErrGuardRejected = errors.New("wallet guard rejected the change")
	ErrUnavailable   = errors.New("ledger store unavailable")
)

// WalletDelta is an increment applied to one wallet row. Zero fields leave the
// column untouched. The optional guards make the update conditional on the row
// still looking the way the caller evaluated it.
type WalletDelta struct {
	Balance           decimal.Decimal
	InvestedAmount    decimal.Decimal
	PendingWithdrawal decimal.Decimal
	TotalEarnings     decimal.Decimal
	WithdrawalCount   int
	LastWithdrawalAt  *time.Time

	// ExpectWithdrawalCount requires withdrawal_count to equal the value.
	ExpectWithdrawalCount *int
	// NotWithdrawnSince requires last_withdrawal_at to be unset or not after the value.
	NotWithdrawnSince *time.Time
}

type LedgerStore interface {
	// WithTx runs fn against a store bound to one transaction. Returning an
	// error from fn rolls back every write made through the bound store.
	WithTx(ctx context.Context, fn func(tx LedgerStore) error) error

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWallet(ctx context.Context, userId int) (*models.Wallet, error)
	ApplyWalletDelta(ctx context.Context, userId int, delta WalletDelta) error

	InsertTransaction(ctx context.Context, trx *models.Transaction) error
	GetTransaction(ctx context.Context, id int) (*models.Transaction, error)
	// UpdateTransactionStatus moves a transaction from one status to another and
	// returns ErrConflict when the stored status is no longer from.
	UpdateTransactionStatus(ctx context.Context, id int, from, to models.TransactionStatus, at time.Time) error
	ListTransactions(ctx context.Context, userId, page, limit int) ([]models.Transaction, int64, error)
	ListCompletedDeposits(ctx context.Context, since time.Time) ([]models.Transaction, error)

	// ReferralEdges returns the stored ancestors of a user ordered by level.
	ReferralEdges(ctx context.Context, referredId int) ([]models.ReferralEdge, error)
	InsertReferralEdge(ctx context.Context, edge *models.ReferralEdge) error
	CountDownline(ctx context.Context, referrerId int) (map[int]int64, error)

	// InsertReferralEarningIfAbsent inserts the earning unless one already
	// exists for the same (transaction, level). It reports whether it inserted.
	InsertReferralEarningIfAbsent(ctx context.Context, earning *models.ReferralEarning) (bool, error)
	ListReferralEarnings(ctx context.Context, userId, page, limit int) ([]models.ReferralEarning, int64, error)
	EarningsForTransaction(ctx context.Context, transactionId int) ([]models.ReferralEarning, error)

	InsertWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error
	GetWithdrawalRequest(ctx context.Context, id int) (*models.WithdrawalRequest, error)
	UpdateWithdrawalStatus(ctx context.Context, id int, from, to models.WithdrawalStatus, reviewedBy, comment string) error
	ListWithdrawalRequests(ctx context.Context, userId, page, limit int) ([]models.WithdrawalRequest, int64, error)

	InsertInvestment(ctx context.Context, inv *models.Investment) error
	GetInvestment(ctx context.Context, id int) (*models.Investment, error)
	UpdateInvestmentStatus(ctx context.Context, id int, from, to models.InvestmentStatus) error
	// ActiveInvestmentStakes returns the amounts of active investments, largest first.
	ActiveInvestmentStakes(ctx context.Context, userId int) ([]decimal.Decimal, error)

	InsertCallbackLog(ctx context.Context, entry *models.CallbackLog) error
}

// normalizePage mirrors the defaults used by the list endpoints.
func normalizePage(page, limit int) (int, int, int) {
	if limit <= 0 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	return page, limit, (page - 1) * limit
}
