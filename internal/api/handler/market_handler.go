package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quorumbet/parimutuel/internal/api/middleware"
	"github.com/quorumbet/parimutuel/internal/domain"
	"github.com/quorumbet/parimutuel/internal/service"
)

// MarketHandler serves market lifecycle and query endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// createMarketRequest is the JSON body for POST /api/markets.
type createMarketRequest struct {
	MarketID       uint64    `json:"market_id" binding:"required"`
	Title          string    `json:"title" binding:"required"`
	Description    string    `json:"description"`
	Resolver       uuid.UUID `json:"resolver" binding:"required"`
	ResolutionTime time.Time `json:"resolution_time" binding:"required"`
}

// Create godoc
// POST /api/markets
// The authenticated caller becomes the market's creator.
func (h *MarketHandler) Create(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_BAD_REQUEST", err.Error())
		return
	}

	market, err := h.marketSvc.CreateMarket(c.Request.Context(), domain.CreateMarketRequest{
		MarketID:       req.MarketID,
		Title:          req.Title,
		Description:    req.Description,
		Creator:        middleware.GetUserID(c),
		Resolver:       req.Resolver,
		ResolutionTime: req.ResolutionTime,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}

// List godoc
// GET /api/markets?page=1&limit=20
func (h *MarketHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	summaries := h.marketSvc.ListMarkets(c.Request.Context())
	total := len(summaries)

	// The ledger holds every live market in memory; paginate the snapshot.
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	respondList(c, summaries[start:end], total, page, limit)
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, err := parseMarketID(c)
	if err != nil {
		return
	}
	market, err := h.marketSvc.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// GetSummary godoc
// GET /api/markets/:id/summary
func (h *MarketHandler) GetSummary(c *gin.Context) {
	id, err := parseMarketID(c)
	if err != nil {
		return
	}
	summary, err := h.marketSvc.GetSummary(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// GetVault godoc
// GET /api/markets/:id/vault
func (h *MarketHandler) GetVault(c *gin.Context) {
	id, err := parseMarketID(c)
	if err != nil {
		return
	}
	balance, err := h.marketSvc.VaultBalance(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id": id,
		"balance":   balance,
	})
}

// Close godoc
// POST /api/markets/:id/close
// Only the market's creator may close; the swept residual is returned.
func (h *MarketHandler) Close(c *gin.Context) {
	id, err := parseMarketID(c)
	if err != nil {
		return
	}
	residual, err := h.marketSvc.CloseMarket(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id": id,
		"residual":  residual,
	})
}

// History godoc
// GET /api/reports/markets?page=1&limit=20
// Served from the database mirror; unlike List, resolved and closed markets
// stay visible here.
func (h *MarketHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	markets, total, err := h.marketSvc.MarketHistory(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondList(c, markets, total, page, limit)
}

// VolumeReport godoc
// GET /api/reports/volume?from=2026-08-01T00:00:00Z&to=2026-08-02T00:00:00Z
// Aggregated stake volume from the database mirror. Defaults to the trailing
// 24 hours when the range is omitted.
func (h *MarketHandler) VolumeReport(c *gin.Context) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_BAD_REQUEST", "from: expected RFC3339 timestamp")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_BAD_REQUEST", "to: expected RFC3339 timestamp")
			return
		}
	}
	if !from.Before(to) {
		respondError(c, http.StatusBadRequest, "ERR_BAD_REQUEST", "from must precede to")
		return
	}

	report, err := h.marketSvc.VolumeReport(c.Request.Context(), from, to)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// parseMarketID reads the :id path parameter. On failure it writes the 400
// response itself and returns a non-nil error.
func parseMarketID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return 0, err
	}
	return id, nil
}
