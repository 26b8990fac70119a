package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type PolicyCode string

const (
	CodeCooldownActive    PolicyCode = "cooldown_active"
	CodeBelowMinimum      PolicyCode = "below_minimum"
	CodeAboveMaximum      PolicyCode = "above_maximum"
	CodeInsufficientFunds PolicyCode = "insufficient_funds"
)

// PolicyError is a withdrawal rejected by a business rule. The caller can show
// it to the user as is.
type PolicyError struct {
	Code             PolicyCode
	Message          string
	WithdrawalNumber int
	Bound            decimal.Decimal
	RemainingHours   int
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	// ErrAlreadyProcessed marks a commission level that was paid before. It is
	// never reported to callers as a failure.
	ErrAlreadyProcessed = errors.New("commission already processed")
	ErrNotEligible      = errors.New("transaction is not eligible for commission")
	ErrPinNotVerified   = errors.New("transaction pin not verified")
	ErrInvalidAmount    = errors.New("amount must be greater than zero with at most two decimal places")
	ErrSelfReferral     = errors.New("user cannot refer themselves")
	ErrReferralCycle    = errors.New("referral would create a cycle")
	ErrAlreadyReferred  = errors.New("user already has a referrer")
	ErrInvalidState     = errors.New("operation not allowed in current state")
)
