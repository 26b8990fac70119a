package repository

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"invest-wallet/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// These tests need a MySQL instance reachable through DATABASE_URL, opened
// with clientFoundRows=true so guarded updates report matched rows.

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

func TestGormApplyWalletDelta(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	ctx := context.Background()
	store := NewGormLedgerStore(testDB)
	seedWallet(t, store, 501, 10000)

	require.NoError(t, store.ApplyWalletDelta(ctx, 501, WalletDelta{PendingWithdrawal: decimal.NewFromInt(6000)}))
	assert.ErrorIs(t, store.ApplyWalletDelta(ctx, 501, WalletDelta{PendingWithdrawal: decimal.NewFromInt(6000)}), ErrGuardRejected)
	assert.ErrorIs(t, store.ApplyWalletDelta(ctx, 999, WalletDelta{Balance: decimal.NewFromInt(1)}), ErrNotFound)

	wallet, err := store.GetWallet(ctx, 501)
	require.NoError(t, err)
	assert.True(t, wallet.AvailableBalance().Equal(decimal.NewFromInt(4000)))
}

func TestGormConcurrentReservations(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	ctx := context.Background()
	store := NewGormLedgerStore(testDB)
	seedWallet(t, store, 502, 10000)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.ApplyWalletDelta(ctx, 502, WalletDelta{PendingWithdrawal: decimal.NewFromInt(6000)})
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrGuardRejected):
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
}

func TestGormEarningCompareAndInsertInsideTx(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	ctx := context.Background()
	store := NewGormLedgerStore(testDB)

	err := store.WithTx(ctx, func(tx LedgerStore) error {
		inserted, err := tx.InsertReferralEarningIfAbsent(ctx, &models.ReferralEarning{UserId: 1, Amount: decimal.NewFromInt(10), Level: 1, TransactionId: 77})
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = tx.InsertReferralEarningIfAbsent(ctx, &models.ReferralEarning{UserId: 1, Amount: decimal.NewFromInt(10), Level: 1, TransactionId: 77})
		require.NoError(t, err)
		assert.False(t, inserted)

		return tx.InsertTransaction(ctx, &models.Transaction{
			UserId: 1, Type: models.TransactionReferralCommission, Amount: decimal.NewFromInt(10),
			Status: models.StatusCompleted, Reference: "gorm-test-ref",
		})
	})
	require.NoError(t, err)

	earnings, err := store.EarningsForTransaction(ctx, 77)
	require.NoError(t, err)
	assert.Len(t, earnings, 1)
}

func TestGormTransactionStatus(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	ctx := context.Background()
	store := NewGormLedgerStore(testDB)
	trx := &models.Transaction{UserId: 3, Type: models.TransactionDeposit, Amount: decimal.NewFromInt(100), Status: models.StatusPending, Reference: "gorm-status"}
	require.NoError(t, store.InsertTransaction(ctx, trx))

	now := time.Now()
	require.NoError(t, store.UpdateTransactionStatus(ctx, trx.ID, models.StatusPending, models.StatusCompleted, now))
	assert.ErrorIs(t, store.UpdateTransactionStatus(ctx, trx.ID, models.StatusPending, models.StatusFailed, now), ErrConflict)

	deposits, err := store.ListCompletedDeposits(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, deposits, 1)
}
