package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"invest-wallet/internal/policy"
	"invest-wallet/internal/ratelimit"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type bandFile struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

type rateLimitFile struct {
	Window      string `yaml:"window"`
	MaxRequests int    `yaml:"max_requests"`
}

type policyFile struct {
	DepositFeeRate   string                   `yaml:"deposit_fee_rate"`
	CommissionRates  map[string]string        `yaml:"commission_rates"`
	Ladder           []bandFile               `yaml:"ladder"`
	FloorAfterLadder string                   `yaml:"floor_after_ladder"`
	BalanceShare     string                   `yaml:"balance_share"`
	CooldownHours    *int                     `yaml:"cooldown_hours"`
	RateLimits       map[string]rateLimitFile `yaml:"rate_limits"`
}

// LoadPolicy applies the overrides in path on top of the defaults. An empty
// path or a missing file yields the defaults.
func LoadPolicy(path string) (policy.Policy, map[string]ratelimit.Config, error) {
	pol := policy.Default()
	limits := ratelimit.DefaultProfiles()
	if path == "" {
		return pol, limits, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return pol, limits, nil
	}
	if err != nil {
		return pol, limits, fmt.Errorf("read policy file: %w", err)
	}

	pol, limits, err = ParsePolicy(data)
	if err != nil {
		return pol, limits, fmt.Errorf("policy file %s: %w", path, err)
	}
	return pol, limits, nil
}

func ParsePolicy(data []byte) (policy.Policy, map[string]ratelimit.Config, error) {
	pol := policy.Default()
	limits := ratelimit.DefaultProfiles()

	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return pol, limits, err
	}

	if err := setDecimal(&pol.DepositFeeRate, f.DepositFeeRate, "deposit_fee_rate"); err != nil {
		return pol, limits, err
	}
	for i, level := range policy.Levels {
		if err := setDecimal(&pol.CommissionRates[i], f.CommissionRates[level.String()], "commission_rates."+level.String()); err != nil {
			return pol, limits, err
		}
	}
	if len(f.Ladder) > 0 {
		ladder := make([]policy.Band, len(f.Ladder))
		for i, row := range f.Ladder {
			if err := setDecimal(&ladder[i].Min, row.Min, fmt.Sprintf("ladder[%d].min", i)); err != nil {
				return pol, limits, err
			}
			if err := setDecimal(&ladder[i].Max, row.Max, fmt.Sprintf("ladder[%d].max", i)); err != nil {
				return pol, limits, err
			}
		}
		pol.Ladder = ladder
	}
	if err := setDecimal(&pol.FloorAfterLadder, f.FloorAfterLadder, "floor_after_ladder"); err != nil {
		return pol, limits, err
	}
	if err := setDecimal(&pol.BalanceShare, f.BalanceShare, "balance_share"); err != nil {
		return pol, limits, err
	}
	if f.CooldownHours != nil {
		pol.Cooldown = time.Duration(*f.CooldownHours) * time.Hour
	}

	for name, rl := range f.RateLimits {
		window, err := time.ParseDuration(rl.Window)
		if err != nil {
			return pol, limits, fmt.Errorf("rate_limits.%s.window: %w", name, err)
		}
		cfg := ratelimit.Config{Window: window, MaxRequests: rl.MaxRequests}
		if err := cfg.Validate(); err != nil {
			return pol, limits, fmt.Errorf("rate_limits.%s: %w", name, err)
		}
		limits[name] = cfg
	}

	return pol, limits, pol.Validate()
}

func setDecimal(dst *decimal.Decimal, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
