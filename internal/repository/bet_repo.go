package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// BetRepository handles all database operations for bets.
type BetRepository struct {
	db *sqlx.DB
}

// NewBetRepository creates a new BetRepository.
func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

// Create inserts a new bet row.
func (r *BetRepository) Create(ctx context.Context, b *domain.Bet) error {
	query := `
		INSERT INTO bets
			(market_id, bettor, amount, outcome, placed_at, claimed)
		VALUES
			(:market_id, :bettor, :amount, :outcome, :placed_at, FALSE)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("bet_repo.Create: %w", err)
	}
	return nil
}

// Get fetches the (market, staker) bet.
func (r *BetRepository) Get(ctx context.Context, marketID uint64, bettor uuid.UUID) (*domain.Bet, error) {
	var b domain.Bet
	err := r.db.GetContext(ctx, &b,
		`SELECT * FROM bets WHERE market_id = $1 AND bettor = $2`,
		marketID, bettor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.Get: %w", err)
	}
	return &b, nil
}

// GetByMarket returns all bets in a market, in placement order.
func (r *BetRepository) GetByMarket(ctx context.Context, marketID uint64) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE market_id = $1 ORDER BY placed_at ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetByMarket: %w", err)
	}
	return bets, nil
}

// GetByBettor returns a staker's bet history, paginated, newest first.
func (r *BetRepository) GetByBettor(ctx context.Context, bettor uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE bettor = $1 ORDER BY placed_at DESC LIMIT $2 OFFSET $3`,
		bettor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetByBettor: %w", err)
	}
	return bets, nil
}

// MarkClaimed records the claim on the bet row. Only unclaimed rows update, so
// a replayed write cannot alter an already recorded payout.
func (r *BetRepository) MarkClaimed(ctx context.Context, b *domain.Bet) error {
	query := `
		UPDATE bets
		SET claimed    = TRUE,
		    claimed_at = $1,
		    payout     = $2
		WHERE market_id = $3 AND bettor = $4 AND claimed = FALSE`
	res, err := r.db.ExecContext(ctx, query, b.ClaimedAt, b.Payout, b.MarketID, b.Bettor)
	if err != nil {
		return fmt.Errorf("bet_repo.MarkClaimed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBetNotFound
	}
	return nil
}
