package handlers

import (
	"net/http"

	"invest-wallet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) Invest(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}
	var req services.InvestDTO
	if !bindJSON(c, &req) {
		return
	}
	req.UserId = userId

	inv, err := h.Investments.Invest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, inv, "Investment created")
}

type ReleaseInvestmentBody struct {
	Payout decimal.Decimal `json:"payout"`
}

func (h *Handler) ReleaseInvestment(c *gin.Context) {
	id, found := pathId(c, "id")
	if !found {
		return
	}
	var req ReleaseInvestmentBody
	if !bindJSON(c, &req) {
		return
	}

	inv, err := h.Investments.Release(c.Request.Context(), id, req.Payout)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, inv, "Investment released")
}
