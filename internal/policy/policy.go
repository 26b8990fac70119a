// Package policy holds the fixed money rules of the wallet: the referral
// commission table, the deposit fee, the withdrawal ladder and the cooldown.
package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ReferralLevel is the distance between a depositing user and an ancestor
// referrer. Only three levels earn commission.
type ReferralLevel int

const (
	LevelOne ReferralLevel = iota + 1
	LevelTwo
	LevelThree
)

// Levels lists every commission-earning level in ascending order.
var Levels = [...]ReferralLevel{LevelOne, LevelTwo, LevelThree}

func (l ReferralLevel) Valid() bool {
	return l >= LevelOne && l <= LevelThree
}

func (l ReferralLevel) String() string {
	switch l {
	case LevelOne:
		return "level_1"
	case LevelTwo:
		return "level_2"
	case LevelThree:
		return "level_3"
	}
	return fmt.Sprintf("level_%d", int(l))
}

// Band is the permitted [Min, Max] amount for one withdrawal.
type Band struct {
	Min decimal.Decimal `json:"min" yaml:"min"`
	Max decimal.Decimal `json:"max" yaml:"max"`
}

func (b Band) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(b.Min) && amount.LessThanOrEqual(b.Max)
}

type Policy struct {
	DepositFeeRate decimal.Decimal
	// CommissionRates is indexed by level-1.
	CommissionRates [len(Levels)]decimal.Decimal
	// Ladder row i applies to the (i+1)-th withdrawal of a user.
	Ladder           []Band
	FloorAfterLadder decimal.Decimal
	BalanceShare     decimal.Decimal
	Cooldown         time.Duration
}

func Default() Policy {
	return Policy{
		DepositFeeRate: decimal.RequireFromString("0.01"),
		CommissionRates: [len(Levels)]decimal.Decimal{
			decimal.RequireFromString("0.10"),
			decimal.RequireFromString("0.05"),
			decimal.RequireFromString("0.02"),
		},
		Ladder: []Band{
			{Min: decimal.NewFromInt(5000), Max: decimal.NewFromInt(25000)},
			{Min: decimal.NewFromInt(10000), Max: decimal.NewFromInt(50000)},
			{Min: decimal.NewFromInt(15000), Max: decimal.NewFromInt(100000)},
			{Min: decimal.NewFromInt(20000), Max: decimal.NewFromInt(200000)},
			{Min: decimal.NewFromInt(30000), Max: decimal.NewFromInt(400000)},
		},
		FloorAfterLadder: decimal.NewFromInt(40000),
		BalanceShare:     decimal.RequireFromString("0.4"),
		Cooldown:         48 * time.Hour,
	}
}

// RoundMoney rounds to the currency minor unit using banker's rounding.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// IsMinorUnit reports whether d is a whole number of minor units, i.e. has
// at most two decimal places.
func IsMinorUnit(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

func (p Policy) CommissionRate(level ReferralLevel) decimal.Decimal {
	if !level.Valid() {
		return decimal.Zero
	}
	return p.CommissionRates[level-1]
}

// NetDeposit is the commission base of a deposit: the amount after the deposit fee.
func (p Policy) NetDeposit(amount decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(decimal.NewFromInt(1).Sub(p.DepositFeeRate)))
}

func (p Policy) Commission(net decimal.Decimal, level ReferralLevel) decimal.Decimal {
	return RoundMoney(net.Mul(p.CommissionRate(level)))
}

// WithdrawalBand returns the band for the given withdrawal ordinal (1-based).
// Past the ladder the floor is fixed and the ceiling is the larger of the
// balance share and the highest active investment stake.
func (p Policy) WithdrawalBand(ordinal int, balance, highestStake decimal.Decimal) Band {
	if ordinal < 1 {
		ordinal = 1
	}
	if ordinal <= len(p.Ladder) {
		return p.Ladder[ordinal-1]
	}
	ceiling := RoundMoney(balance.Mul(p.BalanceShare))
	if highestStake.GreaterThan(ceiling) {
		ceiling = highestStake
	}
	return Band{Min: p.FloorAfterLadder, Max: ceiling}
}

// CooldownRemaining reports how long a user still has to wait before the next
// withdrawal. Zero means the cooldown has elapsed or never started.
func (p Policy) CooldownRemaining(last *time.Time, now time.Time) time.Duration {
	if last == nil {
		return 0
	}
	elapsed := now.Sub(*last)
	if elapsed >= p.Cooldown {
		return 0
	}
	return p.Cooldown - elapsed
}

// CooldownCutoff is the latest last-withdrawal time that still permits a
// withdrawal at now.
func (p Policy) CooldownCutoff(now time.Time) time.Time {
	return now.Add(-p.Cooldown)
}

// RemainingHours rounds a wait up to whole hours.
func RemainingHours(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours()))
}

// Validate rejects policies that would make the ladder or commission table
// meaningless.
func (p Policy) Validate() error {
	if p.DepositFeeRate.IsNegative() || p.DepositFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("deposit fee rate %s out of range", p.DepositFeeRate)
	}
	for i, rate := range p.CommissionRates {
		if rate.IsNegative() {
			return fmt.Errorf("commission rate for %s is negative", Levels[i])
		}
	}
	if len(p.Ladder) == 0 {
		return fmt.Errorf("withdrawal ladder is empty")
	}
	for i, band := range p.Ladder {
		if band.Min.IsNegative() || band.Max.LessThan(band.Min) {
			return fmt.Errorf("ladder row %d has invalid band [%s, %s]", i+1, band.Min, band.Max)
		}
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	return nil
}
