package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"invest-wallet/internal/consumers"
	"invest-wallet/internal/logger"
	"invest-wallet/internal/middleware"
	"invest-wallet/internal/ratelimit"
	"invest-wallet/internal/repository"
	"invest-wallet/internal/services"
	"invest-wallet/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	Wallets     *services.WalletService
	Withdrawals *services.WithdrawalService
	Deposits    *services.DepositService
	Investments *services.InvestmentService
	Referrals   *services.ReferralService
	Commissions *services.CommissionService
	Limiter     *ratelimit.Limiter
	// Payouts, when set, settles provider results on the worker instead of inline.
	Payouts PayoutQueue

	JWTSecret      string
	InternalAPIKey string
}

// PayoutQueue hands a payout provider's result to the worker.
type PayoutQueue interface {
	EnqueuePayoutResult(ctx context.Context, payload consumers.PayoutResultDTO) error
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api", middleware.Identity(h.JWTSecret), middleware.RateLimit(h.Limiter, ratelimit.ProfileAPI))
	{
		api.GET("/wallet", h.GetWallet)
		api.GET("/wallet/transactions", h.ListTransactions)

		api.GET("/withdrawals", h.ListWithdrawals)
		api.GET("/withdrawals/quote", h.GetWithdrawalQuote)
		api.POST("/withdrawals", middleware.RateLimit(h.Limiter, ratelimit.ProfileWithdrawal), h.RequestWithdrawal)

		api.POST("/deposits", h.CreateDeposit)
		api.POST("/investments", h.Invest)

		api.GET("/referrals/earnings", h.ListEarnings)
		api.GET("/referrals/downline", h.GetDownline)
	}

	internal := r.Group("/internal", middleware.InternalKey(h.InternalAPIKey))
	{
		internal.POST("/wallets", h.CreateWallet)
		internal.POST("/referrals", h.RegisterReferral)
		internal.POST("/deposits/:id/settle", h.SettleDeposit)
		internal.POST("/withdrawals/:id/review", h.ReviewWithdrawal)
		internal.POST("/withdrawals/:id/processing", h.MarkWithdrawalProcessing)
		internal.POST("/withdrawals/:id/complete", h.CompleteWithdrawal)
		internal.POST("/investments/:id/release", h.ReleaseInvestment)
		internal.POST("/commissions/:transactionId/distribute", h.DistributeCommission)
	}
}

func currentUser(c *gin.Context) (int, bool) {
	userId, ok := middleware.UserId(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse("Unauthorized", nil, http.StatusUnauthorized))
	}
	return userId, ok
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid "+name, nil, http.StatusBadRequest))
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return false
	}
	return true
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, common.NewStatusResponse(status, data, message))
}

// respondError maps service and store errors to HTTP responses. Storage
// failures never leak their detail to the caller.
func respondError(c *gin.Context, err error) {
	var policyErr *services.PolicyError

	switch {
	case errors.As(err, &policyErr):
		c.JSON(http.StatusUnprocessableEntity, common.NewErrorResponse(policyErr.Message, gin.H{
			"code":              policyErr.Code,
			"withdrawal_number": policyErr.WithdrawalNumber,
			"bound":             policyErr.Bound,
			"remaining_hours":   policyErr.RemainingHours,
		}, http.StatusUnprocessableEntity).WithCode(string(policyErr.Code)))
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, common.NewErrorResponse("Resource not found", nil, http.StatusNotFound))
	case errors.Is(err, services.ErrPinNotVerified),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrSelfReferral),
		errors.Is(err, services.ErrReferralCycle):
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(rootMessage(err), nil, http.StatusBadRequest))
	case errors.Is(err, services.ErrAlreadyReferred),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, common.NewErrorResponse(rootMessage(err), nil, http.StatusConflict))
	case errors.Is(err, repository.ErrGuardRejected):
		c.JSON(http.StatusUnprocessableEntity, common.NewErrorResponse("Insufficient available balance", nil, http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrNotEligible):
		c.JSON(http.StatusUnprocessableEntity, common.NewErrorResponse(services.ErrNotEligible.Error(), nil, http.StatusUnprocessableEntity))
	case errors.Is(err, repository.ErrUnavailable):
		logger.Log.Error("Storage unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, common.NewErrorResponse("Service temporarily unavailable, please try again", nil, http.StatusServiceUnavailable))
	default:
		logger.Log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Something went wrong", nil, http.StatusInternalServerError))
	}
}

// rootMessage returns the text of the sentinel the error wraps.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		services.ErrPinNotVerified,
		services.ErrInvalidAmount,
		services.ErrSelfReferral,
		services.ErrReferralCycle,
		services.ErrAlreadyReferred,
		services.ErrInvalidState,
		repository.ErrConflict,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
