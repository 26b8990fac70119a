package policy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCommissionSplit(t *testing.T) {
	p := Default()
	net := p.NetDeposit(dec("100000"))
	assert.True(t, net.Equal(dec("99000")), "net = %s", net)

	assert.True(t, p.Commission(net, LevelOne).Equal(dec("9900")))
	assert.True(t, p.Commission(net, LevelTwo).Equal(dec("4950")))
	assert.True(t, p.Commission(net, LevelThree).Equal(dec("1980")))
	assert.True(t, p.Commission(net, ReferralLevel(4)).IsZero())
}

func TestCommissionRounding(t *testing.T) {
	p := Default()
	// 0.25 * 0.10 = 0.025 rounds half-even to 0.02
	assert.Equal(t, "0.02", p.Commission(dec("0.25"), LevelOne).StringFixed(2))
	// 0.35 * 0.10 = 0.035 rounds half-even to 0.04
	assert.Equal(t, "0.04", p.Commission(dec("0.35"), LevelOne).StringFixed(2))
	assert.True(t, p.Commission(dec("0.10"), LevelThree).IsZero())
}

func TestWithdrawalBandLadder(t *testing.T) {
	p := Default()
	tests := []struct {
		ordinal int
		min     string
		max     string
	}{
		{1, "5000", "25000"},
		{2, "10000", "50000"},
		{3, "15000", "100000"},
		{4, "20000", "200000"},
		{5, "30000", "400000"},
	}
	for _, tt := range tests {
		band := p.WithdrawalBand(tt.ordinal, dec("1000000"), dec("999999"))
		assert.True(t, band.Min.Equal(dec(tt.min)), "ordinal %d min %s", tt.ordinal, band.Min)
		assert.True(t, band.Max.Equal(dec(tt.max)), "ordinal %d max %s", tt.ordinal, band.Max)
	}
}

func TestWithdrawalBandAfterLadder(t *testing.T) {
	p := Default()

	band := p.WithdrawalBand(6, dec("200000"), dec("50000"))
	assert.True(t, band.Min.Equal(dec("40000")))
	assert.True(t, band.Max.Equal(dec("80000")), "max %s", band.Max)

	band = p.WithdrawalBand(9, dec("200000"), dec("150000"))
	assert.True(t, band.Max.Equal(dec("150000")), "max %s", band.Max)

	band = p.WithdrawalBand(6, dec("0"), decimal.Zero)
	assert.True(t, band.Max.IsZero())
}

func TestBandContains(t *testing.T) {
	band := Band{Min: dec("5000"), Max: dec("25000")}
	assert.True(t, band.Contains(dec("5000")))
	assert.True(t, band.Contains(dec("25000")))
	assert.False(t, band.Contains(dec("4999.99")))
	assert.False(t, band.Contains(dec("25000.01")))
}

func TestIsMinorUnit(t *testing.T) {
	assert.True(t, IsMinorUnit(dec("5000")))
	assert.True(t, IsMinorUnit(dec("5000.05")))
	assert.True(t, IsMinorUnit(dec("5000.100")))
	assert.False(t, IsMinorUnit(dec("5000.005")))
	assert.False(t, IsMinorUnit(dec("-0.001")))
}

func TestCooldownRemaining(t *testing.T) {
	p := Default()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Zero(t, p.CooldownRemaining(nil, now))

	last := now.Add(-47*time.Hour - 30*time.Minute)
	remaining := p.CooldownRemaining(&last, now)
	assert.Equal(t, 30*time.Minute, remaining)
	assert.Equal(t, 1, RemainingHours(remaining))

	last = now.Add(-10 * time.Hour)
	assert.Equal(t, 38, RemainingHours(p.CooldownRemaining(&last, now)))

	last = now.Add(-48 * time.Hour)
	assert.Zero(t, p.CooldownRemaining(&last, now))
	assert.Equal(t, 0, RemainingHours(0))
}

func TestCooldownCutoff(t *testing.T) {
	p := Default()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(-48*time.Hour), p.CooldownCutoff(now))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	p := Default()
	p.Ladder = nil
	assert.Error(t, p.Validate())

	p = Default()
	p.Ladder = []Band{{Min: dec("10"), Max: dec("5")}}
	assert.Error(t, p.Validate())

	p = Default()
	p.DepositFeeRate = dec("1")
	assert.Error(t, p.Validate())

	p = Default()
	p.CommissionRates[1] = dec("-0.01")
	assert.Error(t, p.Validate())
}

func TestReferralLevel(t *testing.T) {
	assert.True(t, LevelOne.Valid())
	assert.True(t, LevelThree.Valid())
	assert.False(t, ReferralLevel(0).Valid())
	assert.False(t, ReferralLevel(4).Valid())
	assert.Equal(t, "level_2", LevelTwo.String())
	assert.Len(t, Levels, 3)
}
