package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quorumbet/parimutuel/internal/api/middleware"
	"github.com/quorumbet/parimutuel/internal/domain"
	"github.com/quorumbet/parimutuel/internal/service"
)

// BetHandler serves stake placement and bet query endpoints.
type BetHandler struct {
	betSvc *service.BetService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(betSvc *service.BetService) *BetHandler {
	return &BetHandler{betSvc: betSvc}
}

// placeBetRequest is the JSON body for POST /api/markets/:id/bets.
type placeBetRequest struct {
	Amount  uint64         `json:"amount" binding:"required"`
	Outcome domain.Outcome `json:"outcome" binding:"required"`
}

// Place godoc
// POST /api/markets/:id/bets
func (h *BetHandler) Place(c *gin.Context) {
	marketID, err := parseMarketID(c)
	if err != nil {
		return
	}
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_BAD_REQUEST", err.Error())
		return
	}

	bet, err := h.betSvc.PlaceBet(c.Request.Context(), domain.PlaceBetRequest{
		MarketID: marketID,
		Bettor:   middleware.GetUserID(c),
		Amount:   req.Amount,
		Outcome:  req.Outcome,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, bet)
}

// ListByMarket godoc
// GET /api/markets/:id/bets
func (h *BetHandler) ListByMarket(c *gin.Context) {
	marketID, err := parseMarketID(c)
	if err != nil {
		return
	}
	bets, err := h.betSvc.ListBets(c.Request.Context(), marketID)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, bets)
}

// GetMine godoc
// GET /api/markets/:id/bets/my
func (h *BetHandler) GetMine(c *gin.Context) {
	marketID, err := parseMarketID(c)
	if err != nil {
		return
	}
	bet, err := h.betSvc.GetBet(c.Request.Context(), marketID, middleware.GetUserID(c))
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}

// GetHistory godoc
// GET /api/bets/history?page=1&limit=20
// Served from the database mirror; closed markets stay visible here.
func (h *BetHandler) GetHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	bets, err := h.betSvc.GetHistory(c.Request.Context(), middleware.GetUserID(c), limit, (page-1)*limit)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondList(c, bets, len(bets), page, limit)
}
