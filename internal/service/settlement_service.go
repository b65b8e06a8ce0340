package service

import (
	"context"
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

// SettlementService handles the two settlement operations: recording the
// winning outcome and paying out claims.
type SettlementService struct {
	engine      *ledger.Engine
	marketRepo  *repository.MarketRepository
	betRepo     *repository.BetRepository
	marketCache *cache.MarketCache
	publisher   *events.Publisher
	hub         *ws.Hub
	logger      *zap.Logger
}

// NewSettlementService creates a SettlementService. All collaborators except
// engine and logger may be nil.
func NewSettlementService(
	engine *ledger.Engine,
	marketRepo *repository.MarketRepository,
	betRepo *repository.BetRepository,
	marketCache *cache.MarketCache,
	publisher *events.Publisher,
	hub *ws.Hub,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		engine:      engine,
		marketRepo:  marketRepo,
		betRepo:     betRepo,
		marketCache: marketCache,
		publisher:   publisher,
		hub:         hub,
		logger:      logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// ResolveMarket
// ──────────────────────────────────────────────────────────────────────────────

// ResolveMarket records the winning outcome. Only the market's recorded
// resolver may call it, only once the deadline has passed, and only once.
func (s *SettlementService) ResolveMarket(ctx context.Context, marketID uint64, resolver uuid.UUID, winner domain.Outcome) (*domain.Market, error) {
	m, err := s.engine.ResolveMarket(marketID, resolver, winner)
	if err != nil {
		metrics.OperationErrors.WithLabelValues("resolve_market", errClass(err)).Inc()
		return nil, err
	}
	metrics.MarketsResolved.WithLabelValues(string(winner)).Inc()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if s.marketRepo != nil {
			at := time.Now().UTC()
			if m.ResolvedAt != nil {
				at = *m.ResolvedAt
			}
			if err := s.marketRepo.Resolve(ctx, marketID, winner, at); err != nil {
				s.logger.Error("resolve mirror write failed",
					zap.Uint64("market_id", marketID), zap.Error(err))
			}
		}
		if s.marketCache != nil {
			if err := s.marketCache.Invalidate(ctx, marketID); err != nil {
				s.logger.Warn("cache invalidation failed",
					zap.Uint64("market_id", marketID), zap.Error(err))
			}
		}
		s.publisher.Publish(ctx, events.TopicMarketResolved, events.MarketKeyFor(marketID),
			events.MarketResolved{
				MarketID: marketID,
				Winner:   string(winner),
				PoolYes:  m.TotalYesAmount,
				PoolNo:   m.TotalNoAmount,
				TsUnixMs: time.Now().UnixMilli(),
			})
		s.hub.BroadcastMarketResolved(m)
	}()
	return m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ClaimWinnings
// ──────────────────────────────────────────────────────────────────────────────

// ClaimWinnings pays the staker's parimutuel share out of the market's vault.
// Returns the net amount transferred.
func (s *SettlementService) ClaimWinnings(ctx context.Context, marketID uint64, bettor uuid.UUID) (uint64, error) {
	payout, err := s.engine.ClaimWinnings(marketID, bettor)
	if err != nil {
		metrics.OperationErrors.WithLabelValues("claim_winnings", errClass(err)).Inc()
		return 0, err
	}
	metrics.WinningsClaimed.Inc()

	bet, betErr := s.engine.GetBet(marketID, bettor)
	vault, _ := s.engine.VaultBalance(marketID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if s.betRepo != nil && betErr == nil {
			if err := s.betRepo.MarkClaimed(ctx, bet); err != nil {
				s.logger.Error("claim mirror write failed",
					zap.Uint64("market_id", marketID),
					zap.String("bettor", bettor.String()),
					zap.Error(err))
			}
		}
		if s.marketRepo != nil {
			if err := s.marketRepo.UpdateVault(ctx, marketID, vault); err != nil {
				s.logger.Error("vault mirror write failed",
					zap.Uint64("market_id", marketID), zap.Error(err))
			}
		}
		s.publisher.Publish(ctx, events.TopicWinningsClaimed, events.MarketKeyFor(marketID),
			events.WinningsClaimed{
				MarketID: marketID,
				Bettor:   bettor.String(),
				Payout:   payout,
				TsUnixMs: time.Now().UnixMilli(),
			})
	}()
	return payout, nil
}
