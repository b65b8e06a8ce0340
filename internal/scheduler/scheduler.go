// Package scheduler manages the two background goroutines of the settlement
// service:
//  1. expiryLoop – watches market deadlines and announces expiry to WS clients.
//  2. auditLoop  – periodically re-checks vault conservation on every market.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quorumbet/parimutuel/internal/domain"
	"github.com/quorumbet/parimutuel/internal/ledger"
	"github.com/quorumbet/parimutuel/internal/metrics"
	"github.com/quorumbet/parimutuel/internal/ws"
)

// WsHub defines the broadcast operations the Scheduler needs from the
// WebSocket hub. Declared here so the scheduler package does not depend on
// the hub implementation.
type WsHub interface {
	BroadcastMarketExpired(m *domain.Market)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the background loops against the ledger engine. Call
// Start(ctx) once from main(); cancel the context to shut it down gracefully.
type Scheduler struct {
	engine        *ledger.Engine
	hub           WsHub
	expirySweep   time.Duration
	auditInterval time.Duration
	logger        *zap.Logger

	announced map[uint64]bool // markets whose expiry has been broadcast
}

// NewScheduler creates a Scheduler. hub may be nil.
func NewScheduler(engine *ledger.Engine, hub *ws.Hub, expirySweep, auditInterval time.Duration, logger *zap.Logger) *Scheduler {
	var h WsHub
	if hub != nil {
		h = hub
	}
	return &Scheduler{
		engine:        engine,
		hub:           h,
		expirySweep:   expirySweep,
		auditInterval: auditInterval,
		logger:        logger,
		announced:     make(map[uint64]bool),
	}
}

// Start launches the background goroutines. It returns immediately; all
// loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.expiryLoop(ctx)
	go s.auditLoop(ctx)
	s.logger.Info("scheduler started",
		zap.Duration("expiry_sweep", s.expirySweep),
		zap.Duration("audit_interval", s.auditInterval),
	)
}

// ──────────────────────────────────────────────────────────────────────────────
// expiryLoop
// ──────────────────────────────────────────────────────────────────────────────

// expiryLoop scans the ledger every sweep interval and announces each market
// whose deadline has just passed. Expiry itself is derived, not stored — the
// engine rejects late bets with or without this loop; the broadcast only
// tells clients to stop offering the market.
func (s *Scheduler) expiryLoop(ctx context.Context) {
	defer s.recoverAndLog("expiryLoop")

	ticker := time.NewTicker(s.expirySweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiryLoop: shutting down")
			return
		case <-ticker.C:
		}

		now := time.Now().UTC()
		live := s.engine.ListMarkets()
		metrics.LiveMarkets.Set(float64(len(live)))

		seen := make(map[uint64]bool, len(live))
		for i := range live {
			m := &live[i]
			seen[m.ID] = true
			if m.IsResolved() || !m.IsExpired(now) || s.announced[m.ID] {
				continue
			}
			s.announced[m.ID] = true
			if s.hub != nil {
				s.hub.BroadcastMarketExpired(m)
			}
			s.logger.Info("market expired",
				zap.Uint64("market_id", m.ID),
				zap.Uint64("total_bets", m.TotalBets),
			)
		}
		// Closed markets leave the ledger; forget them.
		for id := range s.announced {
			if !seen[id] {
				delete(s.announced, id)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// auditLoop
// ──────────────────────────────────────────────────────────────────────────────

// auditLoop re-runs the conservation check on a timer. A violation means the
// engine has a defect; it is logged loudly and counted, never repaired in
// place.
func (s *Scheduler) auditLoop(ctx context.Context) {
	defer s.recoverAndLog("auditLoop")

	ticker := time.NewTicker(s.auditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auditLoop: shutting down")
			return
		case <-ticker.C:
		}

		for _, r := range s.engine.AuditConservation() {
			if r.OK {
				continue
			}
			metrics.ConservationViolations.Inc()
			s.logger.Error("conservation violated",
				zap.Uint64("market_id", r.MarketID),
				zap.Uint64("vault", r.Vault),
				zap.Uint64("staked", r.Staked),
				zap.Uint64("paid_out", r.PaidOut),
			)
		}
	}
}

// recoverAndLog converts a panic in a loop goroutine into an error log so one
// crashing loop cannot take the process down silently.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("scheduler loop panicked",
			zap.String("loop", loop),
			zap.Any("panic", r),
		)
	}
}
