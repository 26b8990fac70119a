package handlers

import (
	"net/http"

	"invest-wallet/internal/services"
	"invest-wallet/pkg/common"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateDeposit(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}
	var req services.CreateDepositDTO
	if !bindJSON(c, &req) {
		return
	}
	req.UserId = userId

	trx, err := h.Deposits.CreateDeposit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, trx, "Deposit initiated")
}

type SettleDepositBody struct {
	Success bool                   `json:"success"`
	Source  string                 `json:"source"`
	Payload map[string]interface{} `json:"payload"`
}

// SettleDeposit receives payment confirmations. Redelivery is expected and
// answered with the transaction's current state.
func (h *Handler) SettleDeposit(c *gin.Context) {
	id, found := pathId(c, "id")
	if !found {
		return
	}
	var req SettleDepositBody
	if !bindJSON(c, &req) {
		return
	}

	trx, err := h.Deposits.SettleDeposit(c.Request.Context(), services.SettleDepositDTO{
		TransactionId: id,
		Success:       req.Success,
		Source:        req.Source,
		Payload:       req.Payload,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, trx, "Deposit settled")
}

func (h *Handler) DistributeCommission(c *gin.Context) {
	id, found := pathId(c, "transactionId")
	if !found {
		return
	}

	earnings, err := h.Commissions.Distribute(c.Request.Context(), id)
	if err != nil && len(earnings) == 0 {
		respondError(c, err)
		return
	}
	if err != nil {
		// Some levels were paid. The rest are retried by the reconciler.
		res := common.NewStatusResponse(http.StatusMultiStatus, earnings, "Commission partially distributed")
		res.Success = false
		c.JSON(http.StatusMultiStatus, res)
		return
	}
	respond(c, http.StatusOK, earnings, "Commission distributed")
}
