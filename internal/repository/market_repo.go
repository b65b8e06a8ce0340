// Package repository mirrors the ledger's markets and bets into PostgreSQL.
// The database is a read model for reporting and recovery; the ledger engine
// remains the source of truth, so every write here happens after the engine
// has committed.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// MarketRepository handles all database operations for markets.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market row with a zero vault balance.
func (r *MarketRepository) Create(ctx context.Context, m *domain.Market) error {
	query := `
		INSERT INTO markets
			(market_id, title, description, creator, resolver, resolution_time,
			 created_at, total_yes_amount, total_no_amount, total_bets,
			 vault_balance, is_active)
		VALUES
			(:market_id, :title, :description, :creator, :resolver, :resolution_time,
			 :created_at, :total_yes_amount, :total_no_amount, :total_bets,
			 0, :is_active)`
	_, err := r.db.NamedExecContext(ctx, query, m)
	if err != nil {
		return fmt.Errorf("market_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a market by its primary key.
func (r *MarketRepository) GetByID(ctx context.Context, marketID uint64) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m,
		`SELECT market_id, title, description, creator, resolver, resolution_time,
		        created_at, resolved_at, winning_outcome, total_yes_amount,
		        total_no_amount, total_bets, is_active
		 FROM markets WHERE market_id = $1`, marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	return &m, nil
}

// UpdatePools writes the market's pool counters and vault balance after a bet.
func (r *MarketRepository) UpdatePools(ctx context.Context, m *domain.Market, vault uint64) error {
	query := `
		UPDATE markets
		SET total_yes_amount = $1,
		    total_no_amount  = $2,
		    total_bets       = $3,
		    vault_balance    = $4
		WHERE market_id = $5`
	res, err := r.db.ExecContext(ctx, query,
		m.TotalYesAmount, m.TotalNoAmount, m.TotalBets, vault, m.ID)
	if err != nil {
		return fmt.Errorf("market_repo.UpdatePools: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotFound
	}
	return nil
}

// Resolve records the winning outcome and deactivates the market row.
func (r *MarketRepository) Resolve(ctx context.Context, marketID uint64, winner domain.Outcome, at time.Time) error {
	query := `
		UPDATE markets
		SET winning_outcome = $1,
		    resolved_at     = $2,
		    is_active       = FALSE
		WHERE market_id = $3 AND winning_outcome IS NULL`
	res, err := r.db.ExecContext(ctx, query, string(winner), at, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotFound
	}
	return nil
}

// UpdateVault writes the vault balance after a claim debit.
func (r *MarketRepository) UpdateVault(ctx context.Context, marketID uint64, vault uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE markets SET vault_balance = $1 WHERE market_id = $2`,
		vault, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.UpdateVault: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotFound
	}
	return nil
}

// Close records the close: the row is kept for history with the swept residual.
func (r *MarketRepository) Close(ctx context.Context, marketID uint64, residual uint64, at time.Time) error {
	query := `
		UPDATE markets
		SET is_active      = FALSE,
		    vault_balance  = 0,
		    swept_residual = $1,
		    closed_at      = $2
		WHERE market_id = $3 AND closed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, residual, at, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Close: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotFound
	}
	return nil
}

// List returns a paginated slice of all mirrored markets, newest first.
// Closed markets are included: the mirror is the only place their history
// survives once the ledger frees them. Returns (markets, totalCount, error).
func (r *MarketRepository) List(ctx context.Context, limit, offset int) ([]*domain.Market, int, error) {
	var markets []*domain.Market
	var total int

	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM markets`); err != nil {
		return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
	}
	if err := r.db.SelectContext(ctx, &markets,
		`SELECT market_id, title, description, creator, resolver, resolution_time,
		        created_at, resolved_at, winning_outcome, total_yes_amount,
		        total_no_amount, total_bets, is_active
		 FROM markets
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset); err != nil {
		return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
	}
	return markets, total, nil
}

// VolumeReport holds aggregated wagering volume for a date range.
type VolumeReport struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	TotalYesPool  string    `json:"total_yes_pool"`
	TotalNoPool   string    `json:"total_no_pool"`
	TotalVolume   string    `json:"total_volume"`
	SweptResidual string    `json:"swept_residual"`
	MarketCount   int       `json:"market_count"`
	BetCount      int       `json:"bet_count"`
}

// GetVolumeReport aggregates market and bet data for a date range.
// Sums are returned as text to preserve full uint64 precision in JSON.
func (r *MarketRepository) GetVolumeReport(ctx context.Context, from, to time.Time) (*VolumeReport, error) {
	type row struct {
		TotalYes string `db:"total_yes"`
		TotalNo  string `db:"total_no"`
		Swept    string `db:"swept"`
		Count    int    `db:"count"`
	}
	var mdata row
	err := r.db.GetContext(ctx, &mdata, `
		SELECT
			COALESCE(SUM(total_yes_amount), 0)::text AS total_yes,
			COALESCE(SUM(total_no_amount), 0)::text  AS total_no,
			COALESCE(SUM(swept_residual), 0)::text   AS swept,
			COUNT(*)                                  AS count
		FROM markets
		WHERE created_at >= $1 AND created_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetVolumeReport markets: %w", err)
	}

	var betCount int
	err = r.db.GetContext(ctx, &betCount, `
		SELECT COUNT(*) FROM bets
		WHERE placed_at >= $1 AND placed_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetVolumeReport bets: %w", err)
	}

	var totalVolume string
	err = r.db.GetContext(ctx, &totalVolume, `
		SELECT COALESCE(SUM(total_yes_amount + total_no_amount), 0)::text
		FROM markets
		WHERE created_at >= $1 AND created_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetVolumeReport volume: %w", err)
	}

	return &VolumeReport{
		From:          from,
		To:            to,
		TotalYesPool:  mdata.TotalYes,
		TotalNoPool:   mdata.TotalNo,
		TotalVolume:   totalVolume,
		SweptResidual: mdata.Swept,
		MarketCount:   mdata.Count,
		BetCount:      betCount,
	}, nil
}
