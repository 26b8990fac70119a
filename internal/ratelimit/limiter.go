// Package ratelimit implements fixed-window request counting per identifier.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

type Config struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

var ErrInvalidConfig = errors.New("invalid rate limit config")

func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidConfig, c.MaxRequests)
	}
	return nil
}

type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// RetryAfter is the wait until the window resets, rounded up to whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	wait := r.ResetTime.Sub(now)
	if wait <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(wait.Seconds())) * time.Second
}

// CounterStore applies the fixed-window rule atomically for one key.
type CounterStore interface {
	Take(ctx context.Context, key string, cfg Config, now time.Time) (Result, error)
}

var ErrUnknownProfile = errors.New("unknown rate limit profile")

// Profile names used across the HTTP and gRPC surfaces.
const (
	ProfileLogin         = "login"
	ProfilePasswordReset = "password_reset"
	ProfileRegistration  = "registration"
	ProfileOTP           = "otp"
	ProfileAPI           = "api"
	ProfileWithdrawal    = "withdrawal"
)

func DefaultProfiles() map[string]Config {
	return map[string]Config{
		ProfileLogin:         {Window: 15 * time.Minute, MaxRequests: 5},
		ProfilePasswordReset: {Window: time.Hour, MaxRequests: 3},
		ProfileRegistration:  {Window: time.Hour, MaxRequests: 5},
		ProfileOTP:           {Window: 5 * time.Minute, MaxRequests: 3},
		ProfileAPI:           {Window: time.Minute, MaxRequests: 100},
		ProfileWithdrawal:    {Window: time.Hour, MaxRequests: 5},
	}
}

type Limiter struct {
	Store    CounterStore
	Profiles map[string]Config
	Now      func() time.Time
}

func NewLimiter(store CounterStore, profiles map[string]Config) *Limiter {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Limiter{Store: store, Profiles: profiles, Now: time.Now}
}

// Check counts one request for identifier under cfg.
func (l *Limiter) Check(ctx context.Context, identifier string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	return l.Store.Take(ctx, identifier, cfg, l.Now())
}

func (l *Limiter) Profile(name string) (Config, error) {
	cfg, ok := l.Profiles[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return cfg, nil
}

// AccountKey and NetworkKey keep account and source-address counters apart.
func AccountKey(profile, id string) string {
	return profile + ":" + id
}

func NetworkKey(profile, ip string) string {
	return profile + "-ip:" + ip
}

// CheckProfile counts one request against the named profile for the account
// and, when ip is set, for the network source. The stricter result wins.
func (l *Limiter) CheckProfile(ctx context.Context, profile, id, ip string) (Result, error) {
	cfg, err := l.Profile(profile)
	if err != nil {
		return Result{}, err
	}

	var keys []string
	if id != "" {
		keys = append(keys, AccountKey(profile, id))
	}
	if ip != "" {
		keys = append(keys, NetworkKey(profile, ip))
	}
	if len(keys) == 0 {
		return Result{}, fmt.Errorf("rate limit %s: no identifier", profile)
	}

	var out Result
	for i, key := range keys {
		res, err := l.Check(ctx, key, cfg)
		if err != nil {
			return Result{}, err
		}
		if i == 0 || stricter(res, out) {
			out = res
		}
	}
	return out, nil
}

func stricter(a, b Result) bool {
	if a.Allowed != b.Allowed {
		return !a.Allowed
	}
	if !a.Allowed {
		return a.ResetTime.After(b.ResetTime)
	}
	return a.Remaining < b.Remaining
}
