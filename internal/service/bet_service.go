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

// BetService handles stake placement and bet read paths.
type BetService struct {
	engine      *ledger.Engine
	betRepo     *repository.BetRepository
	marketRepo  *repository.MarketRepository
	marketCache *cache.MarketCache
	publisher   *events.Publisher
	hub         *ws.Hub
	logger      *zap.Logger
}

// NewBetService creates a BetService. All collaborators except engine and
// logger may be nil.
func NewBetService(
	engine *ledger.Engine,
	betRepo *repository.BetRepository,
	marketRepo *repository.MarketRepository,
	marketCache *cache.MarketCache,
	publisher *events.Publisher,
	hub *ws.Hub,
	logger *zap.Logger,
) *BetService {
	return &BetService{
		engine:      engine,
		betRepo:     betRepo,
		marketRepo:  marketRepo,
		marketCache: marketCache,
		publisher:   publisher,
		hub:         hub,
		logger:      logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet commits the stake to the ledger, then mirrors the bet and the
// updated pools, invalidates the summary cache, publishes the event, and
// broadcasts fresh odds.
func (s *BetService) PlaceBet(ctx context.Context, req domain.PlaceBetRequest) (*domain.Bet, error) {
	bet, err := s.engine.PlaceBet(req)
	if err != nil {
		metrics.OperationErrors.WithLabelValues("place_bet", errClass(err)).Inc()
		return nil, err
	}
	metrics.BetsPlaced.WithLabelValues(string(bet.Outcome)).Inc()
	metrics.StakedVolume.Add(float64(bet.Amount))

	// Snapshot the market once for all side effects.
	m, err := s.engine.GetMarket(req.MarketID)
	if err != nil {
		// The market was closed between commit and snapshot; the bet stands.
		s.logger.Warn("market snapshot after bet failed",
			zap.Uint64("market_id", req.MarketID), zap.Error(err))
		return bet, nil
	}
	vault, _ := s.engine.VaultBalance(req.MarketID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if s.betRepo != nil {
			if err := s.betRepo.Create(ctx, bet); err != nil {
				s.logger.Error("bet mirror write failed",
					zap.Uint64("market_id", bet.MarketID),
					zap.String("bettor", bet.Bettor.String()),
					zap.Error(err))
			}
		}
		if s.marketRepo != nil {
			if err := s.marketRepo.UpdatePools(ctx, m, vault); err != nil {
				s.logger.Error("pool mirror write failed",
					zap.Uint64("market_id", m.ID), zap.Error(err))
			}
		}
		if s.marketCache != nil {
			if err := s.marketCache.Invalidate(ctx, m.ID); err != nil {
				s.logger.Warn("cache invalidation failed",
					zap.Uint64("market_id", m.ID), zap.Error(err))
			}
		}
		s.publisher.Publish(ctx, events.TopicBetPlaced, events.MarketKeyFor(m.ID),
			events.BetPlaced{
				MarketID: m.ID,
				Bettor:   bet.Bettor.String(),
				Amount:   bet.Amount,
				Outcome:  string(bet.Outcome),
				PoolYes:  m.TotalYesAmount,
				PoolNo:   m.TotalNoAmount,
				TsUnixMs: time.Now().UnixMilli(),
			})
		s.hub.BroadcastBetPlaced(m, bet)
	}()
	return bet, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetBet returns the staker's bet on the market. Closed markets leave the
// ledger, so a miss there falls back to the database mirror where the bet
// survives as an audit record.
func (s *BetService) GetBet(ctx context.Context, marketID uint64, bettor uuid.UUID) (*domain.Bet, error) {
	bet, err := s.engine.GetBet(marketID, bettor)
	if err != nil && errors.Is(err, domain.ErrMarketNotFound) && s.betRepo != nil {
		return s.betRepo.Get(ctx, marketID, bettor)
	}
	return bet, err
}

// ListBets returns every bet on the market, in placement order. Falls back
// to the mirror for markets the ledger has already freed.
func (s *BetService) ListBets(ctx context.Context, marketID uint64) ([]*domain.Bet, error) {
	bets, err := s.engine.ListBets(marketID)
	if err != nil && errors.Is(err, domain.ErrMarketNotFound) && s.betRepo != nil {
		return s.betRepo.GetByMarket(ctx, marketID)
	}
	return bets, err
}

// GetHistory returns a staker's bet history from the database mirror,
// paginated, newest first. Requires the mirror to be configured.
func (s *BetService) GetHistory(ctx context.Context, bettor uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	if s.betRepo == nil {
		return nil, ErrMirrorDisabled
	}
	return s.betRepo.GetByBettor(ctx, bettor, limit, offset)
}
