// Package service orchestrates the ledger engine with its side channels. The
// engine commit is the operation; the database mirror, cache, Kafka events and
// WS broadcasts are post-commit effects that must never fail or reorder an
// already-applied operation. Every collaborator except the engine is optional.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quorumbet/parimutuel/internal/cache"
	"github.com/quorumbet/parimutuel/internal/domain"
	"github.com/quorumbet/parimutuel/internal/events"
	"github.com/quorumbet/parimutuel/internal/ledger"
	"github.com/quorumbet/parimutuel/internal/metrics"
	"github.com/quorumbet/parimutuel/internal/repository"
	"github.com/quorumbet/parimutuel/internal/ws"
)

// sideEffectTimeout bounds each post-commit write so a slow mirror cannot
// stall request handling.
const sideEffectTimeout = 3 * time.Second

// ErrMirrorDisabled is returned by read paths that need the database mirror
// when the service runs without one (DATABASE_DSN unset).
var ErrMirrorDisabled = errors.New("database mirror not configured")

// MarketService handles market creation, closing, and read paths.
type MarketService struct {
	engine      *ledger.Engine
	marketRepo  *repository.MarketRepository
	marketCache *cache.MarketCache
	publisher   *events.Publisher
	hub         *ws.Hub
	logger      *zap.Logger
}

// NewMarketService creates a MarketService. All collaborators except engine
// and logger may be nil.
func NewMarketService(
	engine *ledger.Engine,
	marketRepo *repository.MarketRepository,
	marketCache *cache.MarketCache,
	publisher *events.Publisher,
	hub *ws.Hub,
	logger *zap.Logger,
) *MarketService {
	return &MarketService{
		engine:      engine,
		marketRepo:  marketRepo,
		marketCache: marketCache,
		publisher:   publisher,
		hub:         hub,
		logger:      logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateMarket
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket registers a market in the ledger, then mirrors it to the
// database, publishes the lifecycle event, and broadcasts to WS clients.
func (s *MarketService) CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (*domain.Market, error) {
	m, err := s.engine.CreateMarket(req)
	if err != nil {
		metrics.OperationErrors.WithLabelValues("create_market", errClass(err)).Inc()
		return nil, err
	}
	metrics.MarketsCreated.Inc()
	metrics.LiveMarkets.Inc()

	s.afterCommit(func(ctx context.Context) {
		if s.marketRepo != nil {
			if err := s.marketRepo.Create(ctx, m); err != nil {
				s.logger.Error("market mirror write failed",
					zap.Uint64("market_id", m.ID), zap.Error(err))
			}
		}
		s.publisher.Publish(ctx, events.TopicMarketCreated, events.MarketKeyFor(m.ID),
			events.MarketCreated{
				MarketID:       m.ID,
				Title:          m.Title,
				Creator:        m.Creator.String(),
				Resolver:       m.Resolver.String(),
				ResolutionTime: m.ResolutionTime,
				TsUnixMs:       time.Now().UnixMilli(),
			})
		s.hub.BroadcastMarketCreated(m)
	})
	return m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// CloseMarket
// ──────────────────────────────────────────────────────────────────────────────

// CloseMarket removes a settled market and sweeps the residual vault balance
// to the creator. Returns the swept amount.
func (s *MarketService) CloseMarket(ctx context.Context, marketID uint64, caller uuid.UUID) (uint64, error) {
	residual, err := s.engine.CloseMarket(marketID, caller)
	if err != nil {
		metrics.OperationErrors.WithLabelValues("close_market", errClass(err)).Inc()
		return 0, err
	}
	metrics.MarketsClosed.Inc()
	metrics.LiveMarkets.Dec()

	s.afterCommit(func(ctx context.Context) {
		if s.marketRepo != nil {
			if err := s.marketRepo.Close(ctx, marketID, residual, time.Now().UTC()); err != nil {
				s.logger.Error("market close mirror failed",
					zap.Uint64("market_id", marketID), zap.Error(err))
			}
		}
		if s.marketCache != nil {
			if err := s.marketCache.Invalidate(ctx, marketID); err != nil {
				s.logger.Warn("cache invalidation failed",
					zap.Uint64("market_id", marketID), zap.Error(err))
			}
		}
		s.publisher.Publish(ctx, events.TopicMarketClosed, events.MarketKeyFor(marketID),
			events.MarketClosed{
				MarketID: marketID,
				Residual: residual,
				TsUnixMs: time.Now().UnixMilli(),
			})
		s.hub.BroadcastMarketClosed(marketID)
	})
	return residual, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetMarket returns the current market record from the ledger. Markets the
// ledger has already freed (resolved and closed) are served from the database
// mirror when one is configured.
func (s *MarketService) GetMarket(ctx context.Context, marketID uint64) (*domain.Market, error) {
	m, err := s.engine.GetMarket(marketID)
	if err != nil && errors.Is(err, domain.ErrMarketNotFound) && s.marketRepo != nil {
		return s.marketRepo.GetByID(ctx, marketID)
	}
	return m, err
}

// GetSummary returns the market's summary view, served from cache when warm.
func (s *MarketService) GetSummary(ctx context.Context, marketID uint64) (*domain.MarketSummary, error) {
	if s.marketCache != nil {
		if cached, err := s.marketCache.GetSummary(ctx, marketID); err == nil {
			return cached, nil
		}
	}
	m, err := s.engine.GetMarket(marketID)
	if err != nil {
		return nil, err
	}
	summary := m.ToSummary(time.Now().UTC())
	if s.marketCache != nil {
		if err := s.marketCache.SetSummary(ctx, &summary); err != nil {
			s.logger.Warn("summary cache write failed",
				zap.Uint64("market_id", marketID), zap.Error(err))
		}
	}
	return &summary, nil
}

// ListMarkets returns summaries of every live market.
func (s *MarketService) ListMarkets(ctx context.Context) []domain.MarketSummary {
	now := time.Now().UTC()
	markets := s.engine.ListMarkets()
	summaries := make([]domain.MarketSummary, 0, len(markets))
	for i := range markets {
		summaries = append(summaries, markets[i].ToSummary(now))
	}
	return summaries
}

// VaultBalance returns the market's current escrow balance.
func (s *MarketService) VaultBalance(ctx context.Context, marketID uint64) (uint64, error) {
	return s.engine.VaultBalance(marketID)
}

// MarketHistory returns markets from the database mirror, newest first,
// including resolved and closed ones the ledger no longer holds.
func (s *MarketService) MarketHistory(ctx context.Context, limit, offset int) ([]*domain.Market, int, error) {
	if s.marketRepo == nil {
		return nil, 0, ErrMirrorDisabled
	}
	return s.marketRepo.List(ctx, limit, offset)
}

// VolumeReport aggregates stake volume over a date range from the mirror.
func (s *MarketService) VolumeReport(ctx context.Context, from, to time.Time) (*repository.VolumeReport, error) {
	if s.marketRepo == nil {
		return nil, ErrMirrorDisabled
	}
	return s.marketRepo.GetVolumeReport(ctx, from, to)
}

// ──────────────────────────────────────────────────────────────────────────────
// Shared helpers
// ──────────────────────────────────────────────────────────────────────────────

// afterCommit runs fn on its own goroutine with a bounded context. The engine
// has already committed; fn only feeds the read models.
func (s *MarketService) afterCommit(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// errClass maps a ledger error to its taxonomy label for metrics.
func errClass(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsAuthorization(err):
		return "authorization"
	case domain.IsStateConflict(err):
		return "state"
	case domain.IsBusinessRule(err):
		return "business"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}
