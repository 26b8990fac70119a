package services

import (
	"context"
	"testing"

	"invest-wallet/internal/models"
	"invest-wallet/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.wallets.CreateWallet(ctx, CreateWalletDTO{UserId: 1})
	require.NoError(t, err)
	assert.Equal(t, "NGN", w.Currency)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.AvailableBalance.IsZero())

	_, err = f.wallets.CreateWallet(ctx, CreateWalletDTO{UserId: 1})
	assert.ErrorIs(t, err, repository.ErrConflict)

	w, err = f.wallets.CreateWallet(ctx, CreateWalletDTO{UserId: 2, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "USD", w.Currency)
}

func TestGetWalletReportsAvailableBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openWallet(t, 1)
	f.fund(t, 1, "40000")
	_, err := f.investments.Invest(ctx, InvestDTO{UserId: 1, ProjectId: 2, Amount: dec("15000")})
	require.NoError(t, err)
	_, err = withdraw(f, 1, "5000")
	require.NoError(t, err)

	w, err := f.wallets.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, w.AvailableBalance.Equal(dec("20000")))

	_, err = f.wallets.GetWallet(ctx, 2)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListTransactionsPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openWallet(t, 1)
	for i := 0; i < 5; i++ {
		f.fund(t, 1, "100")
	}

	page, total, err := f.wallets.ListTransactions(ctx, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)
	for _, trx := range page {
		assert.Equal(t, models.TransactionDeposit, trx.Type)
		assert.Equal(t, 1, trx.UserId)
	}
}

// Every wallet change is explained by a transaction: the sum of completed
// credits minus completed debits plus the open reservation equals the balance.
func TestLedgerExplainsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []int{1, 2} {
		f.openWallet(t, id)
	}
	registerChain(t, f, 1, 2)
	f.fund(t, 1, "60000")
	deposit := f.fund(t, 2, "50000")
	_, err := f.commissions.Distribute(ctx, deposit.ID)
	require.NoError(t, err)

	inv, err := f.investments.Invest(ctx, InvestDTO{UserId: 1, ProjectId: 4, Amount: dec("10000")})
	require.NoError(t, err)
	_, err = f.investments.Release(ctx, inv.ID, dec("750"))
	require.NoError(t, err)

	result, err := withdraw(f, 1, "5000")
	require.NoError(t, err)
	_, err = f.withdrawals.ReviewWithdrawal(ctx, result.Request.ID, true, "ops", "")
	require.NoError(t, err)
	_, err = f.withdrawals.MarkProcessing(ctx, result.Request.ID)
	require.NoError(t, err)
	_, err = f.withdrawals.CompleteWithdrawal(ctx, result.Request.ID, true, "")
	require.NoError(t, err)

	list, _, err := f.wallets.ListTransactions(ctx, 1, 1, 100)
	require.NoError(t, err)
	sum, invested := dec("0"), dec("0")
	for _, trx := range list {
		if trx.Status != models.StatusCompleted {
			continue
		}
		switch trx.Type {
		case models.TransactionDeposit, models.TransactionReferralCommission, models.TransactionROIPayout:
			sum = sum.Add(trx.Amount)
		case models.TransactionWithdrawal:
			sum = sum.Sub(trx.Amount)
		case models.TransactionInvestment:
			invested = invested.Add(trx.Amount)
		case models.TransactionInvestmentRelease:
			invested = invested.Sub(trx.Amount)
		}
	}

	w := f.wallet(t, 1)
	assert.True(t, w.Balance.Equal(sum), "balance %s ledger %s", w.Balance, sum)
	assert.True(t, w.InvestedAmount.Equal(invested), "invested %s ledger %s", w.InvestedAmount, invested)
	assert.True(t, w.Balance.Equal(dec("60000").Add(dec("4950")).Add(dec("750")).Sub(dec("5000"))))
	f.requireInvariant(t, 1, 2)
}
