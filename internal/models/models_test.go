package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWalletAvailableBalance(t *testing.T) {
	w := Wallet{
		Balance:           decimal.NewFromInt(10000),
		InvestedAmount:    decimal.NewFromInt(2500),
		PendingWithdrawal: decimal.NewFromInt(1500),
	}
	assert.True(t, w.AvailableBalance().Equal(decimal.NewFromInt(6000)))
}

func TestTransactionStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusProcessing))
	assert.True(t, StatusPending.CanTransition(StatusCompleted))
	assert.True(t, StatusProcessing.CanTransition(StatusFailed))
	assert.False(t, StatusProcessing.CanTransition(StatusPending))
	assert.False(t, StatusCompleted.CanTransition(StatusFailed))
	assert.False(t, StatusCancelled.CanTransition(StatusCompleted))
	assert.False(t, StatusPending.CanTransition(StatusPending))
}

func TestWithdrawalStatusTransitions(t *testing.T) {
	assert.True(t, WithdrawalPending.CanTransition(WithdrawalApproved))
	assert.True(t, WithdrawalPending.CanTransition(WithdrawalRejected))
	assert.True(t, WithdrawalApproved.CanTransition(WithdrawalProcessing))
	assert.True(t, WithdrawalProcessing.CanTransition(WithdrawalCompleted))
	assert.False(t, WithdrawalPending.CanTransition(WithdrawalCompleted))
	assert.False(t, WithdrawalRejected.CanTransition(WithdrawalApproved))
}

func TestTransactionTypeValid(t *testing.T) {
	assert.True(t, TransactionReferralCommission.Valid())
	assert.True(t, TransactionInvestmentRelease.Valid())
	assert.False(t, TransactionType("bonus").Valid())
}
