package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-wallet/internal/logger"
	"invest-wallet/internal/metrics"
	"invest-wallet/internal/models"
	"invest-wallet/internal/policy"
	"invest-wallet/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalService struct {
	Store  repository.LedgerStore
	Helper *HelperService
	Policy policy.Policy
}

func NewWithdrawalService(store repository.LedgerStore, helper *HelperService, pol policy.Policy) *WithdrawalService {
	return &WithdrawalService{Store: store, Helper: helper, Policy: pol}
}

type WithdrawRequestDTO struct {
	UserId        int
	Amount        decimal.Decimal
	PaymentMethod string
	Phone         string
	PinVerified   bool
}

// Quote describes what the user's next withdrawal may look like.
type Quote struct {
	WithdrawalNumber int             `json:"withdrawal_number"`
	Min              decimal.Decimal `json:"min"`
	Max              decimal.Decimal `json:"max"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	CooldownActive   bool            `json:"cooldown_active"`
	RemainingHours   int             `json:"remaining_hours"`
	NextEligibleAt   *time.Time      `json:"next_eligible_at,omitempty"`
}

type WithdrawalResult struct {
	Request     models.WithdrawalRequest `json:"request"`
	Transaction models.Transaction       `json:"transaction"`
}

func (s *WithdrawalService) snapshot(ctx context.Context, userId int) (*models.Wallet, decimal.Decimal, error) {
	wallet, err := s.Store.GetWallet(ctx, userId)
	if err != nil {
		return nil, decimal.Zero, err
	}
	stakes, err := s.Store.ActiveInvestmentStakes(ctx, userId)
	if err != nil {
		return nil, decimal.Zero, err
	}
	highest := decimal.Zero
	if len(stakes) > 0 {
		highest = decimal.Max(stakes[0], stakes[1:]...)
	}
	return wallet, highest, nil
}

func (s *WithdrawalService) Quote(ctx context.Context, userId int) (Quote, error) {
	wallet, highest, err := s.snapshot(ctx, userId)
	if err != nil {
		return Quote{}, err
	}
	now := s.Helper.Now()
	n := wallet.WithdrawalCount + 1
	band := s.Policy.WithdrawalBand(n, wallet.Balance, highest)

	q := Quote{
		WithdrawalNumber: n,
		Min:              band.Min,
		Max:              band.Max,
		AvailableBalance: wallet.AvailableBalance(),
	}
	if remaining := s.Policy.CooldownRemaining(wallet.LastWithdrawalAt, now); remaining > 0 {
		next := now.Add(remaining)
		q.CooldownActive = true
		q.RemainingHours = policy.RemainingHours(remaining)
		q.NextEligibleAt = &next
	}
	return q, nil
}

// Evaluate checks a withdrawal against the cooldown, the band of the
// withdrawal's ordinal and the available funds, in that order. It does not
// change anything.
func (s *WithdrawalService) Evaluate(ctx context.Context, userId int, amount decimal.Decimal) error {
	wallet, highest, err := s.snapshot(ctx, userId)
	if err != nil {
		return err
	}
	return s.evaluate(wallet, highest, amount, s.Helper.Now())
}

func (s *WithdrawalService) evaluate(wallet *models.Wallet, highestStake, amount decimal.Decimal, now time.Time) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	n := wallet.WithdrawalCount + 1

	if remaining := s.Policy.CooldownRemaining(wallet.LastWithdrawalAt, now); remaining > 0 {
		hours := policy.RemainingHours(remaining)
		return &PolicyError{
			Code:             CodeCooldownActive,
			Message:          fmt.Sprintf("You can make your next withdrawal in %d hours", hours),
			WithdrawalNumber: n,
			RemainingHours:   hours,
		}
	}

	band := s.Policy.WithdrawalBand(n, wallet.Balance, highestStake)
	if amount.LessThan(band.Min) {
		return &PolicyError{
			Code:             CodeBelowMinimum,
			Message:          fmt.Sprintf("Minimum amount for withdrawal #%d is %s", n, band.Min.StringFixed(2)),
			WithdrawalNumber: n,
			Bound:            band.Min,
		}
	}
	if amount.GreaterThan(band.Max) {
		return &PolicyError{
			Code:             CodeAboveMaximum,
			Message:          fmt.Sprintf("Maximum amount for withdrawal #%d is %s", n, band.Max.StringFixed(2)),
			WithdrawalNumber: n,
			Bound:            band.Max,
		}
	}

	if available := wallet.AvailableBalance(); amount.GreaterThan(available) {
		return insufficientFunds(n, available)
	}
	return nil
}

func insufficientFunds(n int, available decimal.Decimal) *PolicyError {
	return &PolicyError{
		Code:             CodeInsufficientFunds,
		Message:          "You have insufficient funds to cover the withdrawal request.",
		WithdrawalNumber: n,
		Bound:            available,
	}
}

// RequestWithdrawal evaluates the request and reserves the amount. The
// reservation is one guarded wallet update conditioned on the state that was
// evaluated, so concurrent requests for the same wallet cannot both pass.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, data WithdrawRequestDTO) (*WithdrawalResult, error) {
	result, err := s.requestWithdrawal(ctx, data)
	var policyErr *PolicyError
	switch {
	case err == nil:
		metrics.WithdrawalRequestsTotal.WithLabelValues("accepted").Inc()
		logger.Log.Info("Withdrawal request accepted",
			zap.Int("userId", data.UserId),
			zap.String("amount", data.Amount.StringFixed(2)),
			zap.Int("withdrawalNumber", result.Request.WithdrawalNumber))
	case errors.As(err, &policyErr):
		metrics.WithdrawalRequestsTotal.WithLabelValues(string(policyErr.Code)).Inc()
		logger.Log.Info("Withdrawal request rejected",
			zap.Int("userId", data.UserId),
			zap.String("code", string(policyErr.Code)),
			zap.Int("withdrawalNumber", policyErr.WithdrawalNumber))
	default:
		metrics.WithdrawalRequestsTotal.WithLabelValues("error").Inc()
	}
	return result, err
}

func (s *WithdrawalService) requestWithdrawal(ctx context.Context, data WithdrawRequestDTO) (*WithdrawalResult, error) {
	if !data.PinVerified {
		return nil, ErrPinNotVerified
	}
	if !validAmount(data.Amount) {
		return nil, ErrInvalidAmount
	}

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		wallet, highest, err := s.snapshot(ctx, data.UserId)
		if err != nil {
			return nil, err
		}
		now := s.Helper.Now()
		if err := s.evaluate(wallet, highest, data.Amount, now); err != nil {
			return nil, err
		}

		result, err := s.reserve(ctx, wallet, data, now)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrGuardRejected) && !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}

		// Lost a race. Funds are checked first so a drained wallet reports
		// insufficient_funds rather than whatever the retry would hit.
		current, err := s.Store.GetWallet(ctx, data.UserId)
		if err != nil {
			return nil, err
		}
		if available := current.AvailableBalance(); data.Amount.GreaterThan(available) {
			return nil, insufficientFunds(current.WithdrawalCount+1, available)
		}
		lastErr = repository.ErrConflict
	}
	return nil, lastErr
}

func (s *WithdrawalService) reserve(ctx context.Context, wallet *models.Wallet, data WithdrawRequestDTO, now time.Time) (*WithdrawalResult, error) {
	expectedCount := wallet.WithdrawalCount
	cutoff := s.Policy.CooldownCutoff(now)
	n := expectedCount + 1

	var result WithdrawalResult
	err := s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
		trx := models.Transaction{
			Type:          models.TransactionWithdrawal,
			Amount:        data.Amount,
			Status:        models.StatusPending,
			PaymentMethod: data.PaymentMethod,
			Description:   fmt.Sprintf("Withdrawal #%d", n),
		}
		delta := repository.WalletDelta{
			PendingWithdrawal:     data.Amount,
			WithdrawalCount:       1,
			LastWithdrawalAt:      &now,
			ExpectWithdrawalCount: &expectedCount,
			NotWithdrawnSince:     &cutoff,
		}
		if err := s.Helper.SaveTransaction(ctx, tx, data.UserId, delta, &trx); err != nil {
			return err
		}

		req := models.WithdrawalRequest{
			UserId:           data.UserId,
			Amount:           data.Amount,
			Status:           models.WithdrawalPending,
			PaymentMethod:    data.PaymentMethod,
			Phone:            data.Phone,
			PinVerified:      data.PinVerified,
			WithdrawalNumber: n,
			TransactionId:    trx.ID,
		}
		if err := tx.InsertWithdrawalRequest(ctx, &req); err != nil {
			return err
		}

		result = WithdrawalResult{Request: req, Transaction: trx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReviewWithdrawal approves a pending request or rejects it. Rejection
// releases the reserved amount and cancels the withdrawal transaction.
func (s *WithdrawalService) ReviewWithdrawal(ctx context.Context, id int, approve bool, reviewer, comment string) (*models.WithdrawalRequest, error) {
	next := models.WithdrawalApproved
	if !approve {
		next = models.WithdrawalRejected
	}

	err := s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
		req, err := tx.GetWithdrawalRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, req, next, reviewer, comment); err != nil {
			return err
		}
		if approve {
			return nil
		}
		return s.release(ctx, tx, req, repository.WalletDelta{PendingWithdrawal: req.Amount.Neg()}, models.StatusPending, models.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	return s.Store.GetWithdrawalRequest(ctx, id)
}

// MarkProcessing hands an approved request to the payout provider.
func (s *WithdrawalService) MarkProcessing(ctx context.Context, id int) (*models.WithdrawalRequest, error) {
	err := s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
		req, err := tx.GetWithdrawalRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, req, models.WithdrawalProcessing, "", ""); err != nil {
			return err
		}
		return tx.UpdateTransactionStatus(ctx, req.TransactionId, models.StatusPending, models.StatusProcessing, s.Helper.Now())
	})
	if err != nil {
		return nil, err
	}
	return s.Store.GetWithdrawalRequest(ctx, id)
}

// CompleteWithdrawal settles a processing request. Success moves the amount
// out of the balance; failure only releases the reservation.
func (s *WithdrawalService) CompleteWithdrawal(ctx context.Context, id int, success bool, comment string) (*models.WithdrawalRequest, error) {
	err := s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
		req, err := tx.GetWithdrawalRequest(ctx, id)
		if err != nil {
			return err
		}
		if success {
			if err := s.transition(ctx, tx, req, models.WithdrawalCompleted, "", comment); err != nil {
				return err
			}
			delta := repository.WalletDelta{Balance: req.Amount.Neg(), PendingWithdrawal: req.Amount.Neg()}
			return s.release(ctx, tx, req, delta, models.StatusProcessing, models.StatusCompleted)
		}
		if err := s.transition(ctx, tx, req, models.WithdrawalFailed, "", comment); err != nil {
			return err
		}
		return s.release(ctx, tx, req, repository.WalletDelta{PendingWithdrawal: req.Amount.Neg()}, models.StatusProcessing, models.StatusFailed)
	})
	if err != nil {
		return nil, err
	}
	return s.Store.GetWithdrawalRequest(ctx, id)
}

func (s *WithdrawalService) transition(ctx context.Context, tx repository.LedgerStore, req *models.WithdrawalRequest, next models.WithdrawalStatus, reviewer, comment string) error {
	if !req.Status.CanTransition(next) {
		return fmt.Errorf("%w: withdrawal %d is %s", ErrInvalidState, req.ID, req.Status)
	}
	return tx.UpdateWithdrawalStatus(ctx, req.ID, req.Status, next, reviewer, comment)
}

// release applies the wallet side of a settled withdrawal and moves its
// transaction to the final status. The transaction already explains the delta.
func (s *WithdrawalService) release(ctx context.Context, tx repository.LedgerStore, req *models.WithdrawalRequest, delta repository.WalletDelta, from, to models.TransactionStatus) error {
	if err := tx.ApplyWalletDelta(ctx, req.UserId, delta); err != nil {
		return err
	}
	return tx.UpdateTransactionStatus(ctx, req.TransactionId, from, to, s.Helper.Now())
}

func (s *WithdrawalService) ListWithdrawals(ctx context.Context, userId, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	return s.Store.ListWithdrawalRequests(ctx, userId, page, limit)
}
