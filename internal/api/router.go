// Package api builds the HTTP surface of the settlement service.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quorumbet/parimutuel/internal/api/handler"
	"github.com/quorumbet/parimutuel/internal/api/middleware"
	"github.com/quorumbet/parimutuel/internal/config"
	"github.com/quorumbet/parimutuel/internal/service"
	"github.com/quorumbet/parimutuel/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	MarketSvc     *service.MarketService
	BetSvc        *service.BetService
	SettlementSvc *service.SettlementService
	Hub           *ws.Hub
	Cfg           *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	marketH := handler.NewMarketHandler(deps.MarketSvc)
	betH := handler.NewBetHandler(deps.BetSvc)
	settleH := handler.NewSettlementHandler(deps.SettlementSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware([]byte(deps.Cfg.JWT.AccessSecret))

	// ── Rate limiters ─────────────────────────────────────────────────────────
	writeRL := middleware.WriteRateLimit(deps.Cfg.RateLimit.WriteRPS)
	readRL := middleware.ReadRateLimit(deps.Cfg.RateLimit.ReadRPS)

	api := r.Group("/api")
	{
		// ── Markets (reads public) ───────────────────────────────────────────
		markets := api.Group("/markets")
		markets.Use(readRL)
		{
			markets.GET("", marketH.List)
			markets.GET("/:id", marketH.GetByID)
			markets.GET("/:id/summary", marketH.GetSummary)
			markets.GET("/:id/vault", marketH.GetVault)
			markets.GET("/:id/bets", betH.ListByMarket)
		}

		// ── Ledger writes (authenticated) ────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW, writeRL)
		{
			authed.POST("/markets", marketH.Create)
			authed.POST("/markets/:id/bets", betH.Place)
			authed.POST("/markets/:id/resolve", settleH.Resolve)
			authed.POST("/markets/:id/claim", settleH.Claim)
			authed.POST("/markets/:id/close", marketH.Close)

			authed.GET("/markets/:id/bets/my", betH.GetMine)
			authed.GET("/bets/history", betH.GetHistory)

			// ── Reporting (mirror-backed; includes closed markets) ───────────
			authed.GET("/reports/markets", marketH.History)
			authed.GET("/reports/volume", marketH.VolumeReport)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://quorumbet.io":     true,
				"https://www.quorumbet.io": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
