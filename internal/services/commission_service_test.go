package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invest-wallet/internal/models"
	"invest-wallet/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commissionFixture builds A -> B -> C -> D with wallets for everyone.
// D deposits; C, B and A earn levels 1, 2 and 3.
func commissionFixture(t *testing.T) *fixture {
	f := newFixture(t)
	for _, id := range []int{1, 2, 3, 4} {
		f.openWallet(t, id)
	}
	registerChain(t, f, 1, 2, 3, 4)
	return f
}

func TestDistributeSplitsCommissionAcrossThreeLevels(t *testing.T) {
	f := commissionFixture(t)
	ctx := context.Background()
	deposit := f.fund(t, 4, "100000")

	earnings, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, earnings, 3)

	expected := map[int]string{3: "9900", 2: "4950", 1: "1980"}
	for userId, amount := range expected {
		w := f.wallet(t, userId)
		assert.True(t, w.Balance.Equal(dec(amount)), "user %d balance %s", userId, w.Balance)
		assert.True(t, w.TotalEarnings.Equal(dec(amount)), "user %d earnings %s", userId, w.TotalEarnings)

		list, total, err := f.wallets.ListTransactions(ctx, userId, 1, 10)
		require.NoError(t, err)
		require.Equal(t, int64(1), total)
		assert.Equal(t, models.TransactionReferralCommission, list[0].Type)
		assert.Equal(t, models.StatusCompleted, list[0].Status)
		assert.True(t, list[0].Amount.Equal(dec(amount)))
	}

	stored, err := f.store.EarningsForTransaction(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, e := range stored {
		assert.Equal(t, i+1, e.Level)
		assert.NotZero(t, e.CommissionTransactionId)
	}

	depositor := f.wallet(t, 4)
	assert.True(t, depositor.Balance.Equal(dec("100000")), "depositor is credited the gross amount")
}

func TestDistributeIsIdempotent(t *testing.T) {
	f := commissionFixture(t)
	ctx := context.Background()
	deposit := f.fund(t, 4, "100000")

	_, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)

	earnings, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Empty(t, earnings)

	assert.True(t, f.wallet(t, 3).Balance.Equal(dec("9900")))
	_, total, err := f.wallets.ListTransactions(ctx, 3, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

type txCountingStore struct {
	repository.LedgerStore
	mu  sync.Mutex
	txs int
}

func (s *txCountingStore) WithTx(ctx context.Context, fn func(tx repository.LedgerStore) error) error {
	s.mu.Lock()
	s.txs++
	s.mu.Unlock()
	return s.LedgerStore.WithTx(ctx, fn)
}

func (s *txCountingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}

func TestDistributeSkipsPaidLevelsWithoutWriting(t *testing.T) {
	store := &txCountingStore{LedgerStore: repository.NewMemoryLedgerStore()}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()
	for _, id := range []int{1, 2, 3, 4} {
		f.openWallet(t, id)
	}
	registerChain(t, f, 1, 2, 3, 4)
	deposit := f.fund(t, 4, "100000")

	_, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)
	before := store.count()

	earnings, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Empty(t, earnings)
	assert.Equal(t, before, store.count(), "paid levels are skipped before any write")
}

func TestDistributeConcurrentDeliveries(t *testing.T) {
	f := commissionFixture(t)
	ctx := context.Background()
	deposit := f.fund(t, 4, "100000")

	var wg sync.WaitGroup
	var mu sync.Mutex
	paid := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			earnings, err := f.commissions.Distribute(ctx, deposit.ID)
			assert.NoError(t, err)
			mu.Lock()
			paid += len(earnings)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, paid)
	assert.True(t, f.wallet(t, 3).Balance.Equal(dec("9900")))
	assert.True(t, f.wallet(t, 2).Balance.Equal(dec("4950")))
	assert.True(t, f.wallet(t, 1).Balance.Equal(dec("1980")))
}

func TestDistributePartialChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openWallet(t, 10)
	f.openWallet(t, 11)
	registerChain(t, f, 10, 11)

	deposit := f.fund(t, 11, "5000")
	earnings, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.True(t, earnings[0].Amount.Equal(dec("495")))

	f.openWallet(t, 12)
	lonely := f.fund(t, 12, "5000")
	earnings, err = f.commissions.Distribute(ctx, lonely.ID)
	require.NoError(t, err)
	assert.Empty(t, earnings)
}

func TestDistributeSkipsZeroCommission(t *testing.T) {
	f := commissionFixture(t)
	ctx := context.Background()
	// Level three rounds to 0.00 and is not booked.
	deposit := f.fund(t, 4, "0.20")

	earnings, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, earnings, 2)
	assert.True(t, f.wallet(t, 1).Balance.IsZero())
	assert.True(t, f.wallet(t, 3).Balance.Equal(dec("0.02")))
	assert.True(t, f.wallet(t, 2).Balance.Equal(dec("0.01")))
}

func TestDistributeRejectsIneligibleTransactions(t *testing.T) {
	f := commissionFixture(t)
	ctx := context.Background()

	pending, err := f.deposits.CreateDeposit(ctx, CreateDepositDTO{UserId: 4, Amount: dec("1000")})
	require.NoError(t, err)
	_, err = f.commissions.Distribute(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = f.commissions.Distribute(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	f.fund(t, 3, "50000")
	inv, err := f.investments.Invest(ctx, InvestDTO{UserId: 3, ProjectId: 1, Amount: dec("1000")})
	require.NoError(t, err)
	_, err = f.commissions.Distribute(ctx, inv.TransactionId)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestDistributeLevelsFailIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// User 2 (level 2 for the depositor) has no wallet.
	f.openWallet(t, 1)
	f.openWallet(t, 3)
	f.openWallet(t, 4)
	registerChain(t, f, 1, 2, 3, 4)
	deposit := f.fund(t, 4, "100000")

	earnings, err := f.commissions.Distribute(ctx, deposit.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	require.Len(t, earnings, 2)
	assert.True(t, f.wallet(t, 3).Balance.Equal(dec("9900")))
	assert.True(t, f.wallet(t, 1).Balance.Equal(dec("1980")))

	// Once the wallet exists the missing level is paid and nothing else repeats.
	f.openWallet(t, 2)
	earnings, err = f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, 2, earnings[0].Level)
	assert.True(t, f.wallet(t, 3).Balance.Equal(dec("9900")))
}

func TestReconcilePaysMissingCommissions(t *testing.T) {
	f := commissionFixture(t)
	ctx := context.Background()
	first := f.fund(t, 4, "100000")
	f.fund(t, 4, "20000")

	_, err := f.commissions.Distribute(ctx, first.ID)
	require.NoError(t, err)

	paid, err := f.commissions.Reconcile(ctx, f.clock.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, paid, "only the second deposit was unpaid")

	assert.True(t, f.wallet(t, 3).Balance.Equal(dec("11880")))
}

func TestStartSchedulerRegistersJob(t *testing.T) {
	f := commissionFixture(t)
	c := f.commissions.StartScheduler(48 * time.Hour)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
	c.Stop()
}
