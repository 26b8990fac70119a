package consumers

import (
	"context"
	"testing"

	"invest-wallet/internal/models"
	"invest-wallet/internal/policy"
	"invest-wallet/internal/repository"
	"invest-wallet/internal/services"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store       *repository.MemoryLedgerStore
	deposits    *services.DepositService
	withdrawals *services.WithdrawalService
	processor   *CommissionProcessor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryLedgerStore()
	helper := services.NewHelperService(store)
	referrals := services.NewReferralService(store)
	commission := services.NewCommissionService(store, helper, referrals, policy.Default())
	withdrawals := services.NewWithdrawalService(store, helper, policy.Default())
	wallets := services.NewWalletService(store)

	for _, id := range []int{1, 2} {
		_, err := wallets.CreateWallet(ctx, services.CreateWalletDTO{UserId: id})
		require.NoError(t, err)
	}
	_, err := referrals.RegisterReferral(ctx, 2, 1)
	require.NoError(t, err)

	return &harness{
		store:       store,
		deposits:    services.NewDepositService(store, helper, nil),
		withdrawals: withdrawals,
		processor:   NewCommissionProcessor(commission, withdrawals),
	}
}

func (h *harness) deposit(t *testing.T, userId int, amount int64, settle bool) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	trx, err := h.deposits.CreateDeposit(ctx, services.CreateDepositDTO{UserId: userId, Amount: decimal.NewFromInt(amount)})
	require.NoError(t, err)
	if settle {
		trx, err = h.deposits.SettleDeposit(ctx, services.SettleDepositDTO{TransactionId: trx.ID, Success: true})
		require.NoError(t, err)
	}
	return trx
}

func TestProcessCommission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trx := h.deposit(t, 2, 20000, true)

	require.NoError(t, h.processor.ProcessCommission(ctx, CommissionJobDTO{TransactionId: trx.ID}))
	require.NoError(t, h.processor.ProcessCommission(ctx, CommissionJobDTO{TransactionId: trx.ID}))

	w, err := h.store.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(1980)))
}

func TestProcessCommissionSkipsRetryWhenNotEligible(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending := h.deposit(t, 2, 20000, false)

	err := h.processor.ProcessCommission(ctx, CommissionJobDTO{TransactionId: pending.ID})
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, services.ErrNotEligible)

	err = h.processor.ProcessCommission(ctx, CommissionJobDTO{})
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessPayoutResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.deposit(t, 1, 30000, true)

	result, err := h.withdrawals.RequestWithdrawal(ctx, services.WithdrawRequestDTO{
		UserId:      1,
		Amount:      decimal.NewFromInt(8000),
		PinVerified: true,
	})
	require.NoError(t, err)
	id := result.Request.ID
	_, err = h.withdrawals.ReviewWithdrawal(ctx, id, true, "ops", "")
	require.NoError(t, err)
	_, err = h.withdrawals.MarkProcessing(ctx, id)
	require.NoError(t, err)

	require.NoError(t, h.processor.ProcessPayoutResult(ctx, PayoutResultDTO{WithdrawalId: id, Success: true}))

	w, err := h.store.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(22000)))
	assert.True(t, w.PendingWithdrawal.IsZero())

	err = h.processor.ProcessPayoutResult(ctx, PayoutResultDTO{WithdrawalId: id, Success: false})
	assert.ErrorIs(t, err, asynq.SkipRetry, "already final")

	err = h.processor.ProcessPayoutResult(ctx, PayoutResultDTO{WithdrawalId: 999, Success: true})
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
