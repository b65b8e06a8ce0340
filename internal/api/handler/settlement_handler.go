package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quorumbet/parimutuel/internal/api/middleware"
	"github.com/quorumbet/parimutuel/internal/domain"
	"github.com/quorumbet/parimutuel/internal/service"
)

// SettlementHandler serves the resolve and claim endpoints.
type SettlementHandler struct {
	settlementSvc *service.SettlementService
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlementSvc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// resolveRequest is the JSON body for POST /api/markets/:id/resolve.
type resolveRequest struct {
	Winner domain.Outcome `json:"winner" binding:"required"`
}

// Resolve godoc
// POST /api/markets/:id/resolve
// The authenticated caller must be the market's recorded resolver.
func (h *SettlementHandler) Resolve(c *gin.Context) {
	marketID, err := parseMarketID(c)
	if err != nil {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_BAD_REQUEST", err.Error())
		return
	}

	market, err := h.settlementSvc.ResolveMarket(
		c.Request.Context(), marketID, middleware.GetUserID(c), req.Winner)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Claim godoc
// POST /api/markets/:id/claim
// Pays the authenticated caller's winnings from the market's vault.
func (h *SettlementHandler) Claim(c *gin.Context) {
	marketID, err := parseMarketID(c)
	if err != nil {
		return
	}
	payout, err := h.settlementSvc.ClaimWinnings(
		c.Request.Context(), marketID, middleware.GetUserID(c))
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id": marketID,
		"payout":    payout,
	})
}
