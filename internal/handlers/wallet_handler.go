package handlers

import (
	"net/http"

	"invest-wallet/internal/services"
	"invest-wallet/pkg/common"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateWallet(c *gin.Context) {
	var req services.CreateWalletDTO
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.Wallets.CreateWallet(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, wallet, "Wallet created")
}

func (h *Handler) GetWallet(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}

	wallet, err := h.Wallets.GetWallet(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, wallet, "Wallet retrieved")
}

func (h *Handler) ListTransactions(c *gin.Context) {
	userId, found := currentUser(c)
	if !found {
		return
	}
	page, limit := pageParams(c)

	list, total, err := h.Wallets.ListTransactions(c.Request.Context(), userId, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}
