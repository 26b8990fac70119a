package handlers

import (
	"net/http"

	"invest-wallet/internal/consumers"
	"invest-wallet/internal/logger"
	"invest-wallet/internal/services"
	"invest-wallet/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalRequestBody struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Phone         string          `json:"phone"`
	PinVerified   bool            `json:"pin_verified"`
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}
	var req WithdrawalRequestBody
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Withdrawals.RequestWithdrawal(c.Request.Context(), services.WithdrawRequestDTO{
		UserId:        userId,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Phone:         req.Phone,
		PinVerified:   req.PinVerified,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result, "Withdrawal request submitted")
}

func (h *Handler) GetWithdrawalQuote(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}

	quote, err := h.Withdrawals.Quote(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quote, "Withdrawal limits retrieved")
}

func (h *Handler) ListWithdrawals(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}
	page, limit := pageParams(c)

	list, total, err := h.Withdrawals.ListWithdrawals(c.Request.Context(), userId, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

type ReviewWithdrawalBody struct {
	Approve  bool   `json:"approve"`
	Reviewer string `json:"reviewer" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *Handler) ReviewWithdrawal(c *gin.Context) {
	id, found := pathId(c, "id")
	if !found {
		return
	}
	var req ReviewWithdrawalBody
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Withdrawals.ReviewWithdrawal(c.Request.Context(), id, req.Approve, req.Reviewer, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Withdrawal reviewed")
}

func (h *Handler) MarkWithdrawalProcessing(c *gin.Context) {
	id, found := pathId(c, "id")
	if !found {
		return
	}

	result, err := h.Withdrawals.MarkProcessing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Withdrawal processing")
}

type CompleteWithdrawalBody struct {
	Success bool   `json:"success"`
	Comment string `json:"comment"`
}

func (h *Handler) CompleteWithdrawal(c *gin.Context) {
	id, found := pathId(c, "id")
	if !found {
		return
	}
	var req CompleteWithdrawalBody
	if !bindJSON(c, &req) {
		return
	}

	if h.Payouts != nil {
		payload := consumers.PayoutResultDTO{WithdrawalId: id, Success: req.Success, Comment: req.Comment}
		if err := h.Payouts.EnqueuePayoutResult(c.Request.Context(), payload); err != nil {
			logger.Log.Error("Failed to enqueue payout result", zap.Int("withdrawalId", id), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, common.NewErrorResponse("Service temporarily unavailable, please try again", nil, http.StatusServiceUnavailable))
			return
		}
		respond(c, http.StatusAccepted, payload, "Withdrawal settlement queued")
		return
	}

	result, err := h.Withdrawals.CompleteWithdrawal(c.Request.Context(), id, req.Success, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Withdrawal settled")
}
