package services

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"invest-wallet/internal/models"
	"invest-wallet/internal/policy"
	"invest-wallet/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB is only set when DATABASE_URL points at a MySQL instance opened with
// clientFoundRows=true. Everything else runs on the in-memory store.
var testDB *gorm.DB

func TestMain(m *testing.M) {
	setup()
	os.Exit(m.Run())
}

func setup() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("Skipping DB tests: DATABASE_URL not set")
		return
	}

	var err error
	testDB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		testDB = nil
		return
	}

	if err := testDB.AutoMigrate(
		&models.Wallet{},
		&models.Transaction{},
		&models.ReferralEdge{},
		&models.ReferralEarning{},
		&models.WithdrawalRequest{},
		&models.Investment{},
		&models.CallbackLog{},
	); err != nil {
		log.Printf("Failed to migrate: %v", err)
		testDB = nil
	}
}

func cleanup() {
	if testDB != nil {
		for _, table := range []string{"wallets", "transactions", "referrals", "referral_earnings", "withdrawal_requests", "investments", "callback_logs"} {
			testDB.Exec("DELETE FROM " + table)
		}
	}
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store       repository.LedgerStore
	clock       *clock
	helper      *HelperService
	wallets     *WalletService
	referrals   *ReferralService
	commissions *CommissionService
	withdrawals *WithdrawalService
	deposits    *DepositService
	investments *InvestmentService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, repository.NewMemoryLedgerStore())
}

func newFixtureWithStore(t *testing.T, store repository.LedgerStore) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	pol := policy.Default()

	helper := NewHelperService(store)
	helper.Now = c.Now
	referrals := NewReferralService(store)
	commissions := NewCommissionService(store, helper, referrals, pol)

	return &fixture{
		store:       store,
		clock:       c,
		helper:      helper,
		wallets:     NewWalletService(store),
		referrals:   referrals,
		commissions: commissions,
		withdrawals: NewWithdrawalService(store, helper, pol),
		deposits:    NewDepositService(store, helper, InlineCommissionQueue{Commission: commissions}),
		investments: NewInvestmentService(store, helper),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) openWallet(t *testing.T, userId int) {
	t.Helper()
	_, err := f.wallets.CreateWallet(context.Background(), CreateWalletDTO{UserId: userId})
	require.NoError(t, err)
}

// fund books a settled deposit without triggering commission.
func (f *fixture) fund(t *testing.T, userId int, amount string) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	queue := f.deposits.Queue
	f.deposits.Queue = nil
	defer func() { f.deposits.Queue = queue }()

	trx, err := f.deposits.CreateDeposit(ctx, CreateDepositDTO{UserId: userId, Amount: dec(amount)})
	require.NoError(t, err)
	trx, err = f.deposits.SettleDeposit(ctx, SettleDepositDTO{TransactionId: trx.ID, Success: true, Source: "test"})
	require.NoError(t, err)
	return trx
}

func (f *fixture) wallet(t *testing.T, userId int) *models.Wallet {
	t.Helper()
	w, err := f.store.GetWallet(context.Background(), userId)
	require.NoError(t, err)
	return w
}

// requireInvariant checks available >= 0 for every listed wallet.
func (f *fixture) requireInvariant(t *testing.T, userIds ...int) {
	t.Helper()
	for _, id := range userIds {
		w := f.wallet(t, id)
		require.False(t, w.AvailableBalance().IsNegative(), "wallet %d available %s", id, w.AvailableBalance())
		require.False(t, w.PendingWithdrawal.IsNegative())
		require.False(t, w.InvestedAmount.IsNegative())
	}
}
