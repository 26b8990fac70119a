package handlers

import (
	"net/http"

	"invest-wallet/pkg/common"

	"github.com/gin-gonic/gin"
)

type RegisterReferralBody struct {
	ReferredId int `json:"referred_id" binding:"required"`
	ReferrerId int `json:"referrer_id" binding:"required"`
}

func (h *Handler) RegisterReferral(c *gin.Context) {
	var req RegisterReferralBody
	if !bindJSON(c, &req) {
		return
	}

	edges, err := h.Referrals.RegisterReferral(c.Request.Context(), req.ReferredId, req.ReferrerId)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, edges, "Referral registered")
}

func (h *Handler) ListEarnings(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}
	page, limit := pageParams(c)

	list, total, err := h.Referrals.Earnings(c.Request.Context(), userId, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

func (h *Handler) GetDownline(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}

	downline, err := h.Referrals.Downline(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, downline, "Downline retrieved")
}
