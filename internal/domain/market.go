// Package domain defines the core entities of the parimutuel settlement
// protocol: binary-outcome markets, one-shot stakes, and the integer pool
// arithmetic that keeps the escrow vault conserved.
package domain

import (
	"math/bits"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// Outcome represents the side of a binary market a staker backs.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// IsValid returns true if the outcome is a recognised side.
func (o Outcome) IsValid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Opposite returns the other side of the market.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Protocol defaults. All three are overridable through config.
const (
	// MaxTitleLength bounds a market title, in bytes.
	MaxTitleLength = 100

	// MaxDescriptionLength bounds a market description, in bytes.
	MaxDescriptionLength = 500

	// MinBetAmount is the smallest accepted stake, in base units.
	MinBetAmount uint64 = 1_000_000
)

// MarketStatus is a derived lifecycle label, never persisted: expiry is a
// comparison against the clock, not a stored flag.
type MarketStatus string

const (
	StatusActive   MarketStatus = "active"   // accepting bets
	StatusExpired  MarketStatus = "expired"  // deadline passed, awaiting the resolver
	StatusResolved MarketStatus = "resolved" // outcome recorded, claims open
)

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market is a single binary-outcome proposition. The two pool counters and the
// resolution fields form one consistency domain together with the market's
// vault; the ledger engine mutates them only under the per-market lock.
type Market struct {
	ID             uint64     `json:"id"               db:"market_id"`
	Title          string     `json:"title"            db:"title"`
	Description    string     `json:"description"      db:"description"`
	Creator        uuid.UUID  `json:"creator"          db:"creator"`
	Resolver       uuid.UUID  `json:"resolver"         db:"resolver"`
	ResolutionTime time.Time  `json:"resolution_time"  db:"resolution_time"`
	CreatedAt      time.Time  `json:"created_at"       db:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at"      db:"resolved_at"`
	WinningOutcome *Outcome   `json:"winning_outcome"  db:"winning_outcome"`
	TotalYesAmount uint64     `json:"total_yes_amount" db:"total_yes_amount"`
	TotalNoAmount  uint64     `json:"total_no_amount"  db:"total_no_amount"`
	TotalBets      uint64     `json:"total_bets"       db:"total_bets"`
	IsActive       bool       `json:"is_active"        db:"is_active"`
}

// IsResolved returns true once the winning outcome has been recorded.
func (m *Market) IsResolved() bool {
	return m.WinningOutcome != nil
}

// IsExpired returns true when now is at or past the resolution deadline.
func (m *Market) IsExpired(now time.Time) bool {
	return !now.Before(m.ResolutionTime)
}

// CanAcceptBets returns true while the market is live and unexpired.
func (m *Market) CanAcceptBets(now time.Time) bool {
	return m.IsActive && !m.IsResolved() && !m.IsExpired(now)
}

// Status derives the lifecycle label from the resolution fields and the clock.
func (m *Market) Status(now time.Time) MarketStatus {
	switch {
	case m.IsResolved():
		return StatusResolved
	case m.IsExpired(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// TotalPool returns the sum of both side pools with overflow checking.
func (m *Market) TotalPool() (uint64, error) {
	return CheckedAdd(m.TotalYesAmount, m.TotalNoAmount)
}

// WinningPool returns the cumulative stake on the recorded winning side, or 0
// when the market is unresolved.
func (m *Market) WinningPool() uint64 {
	if m.WinningOutcome == nil {
		return 0
	}
	return m.SidePool(*m.WinningOutcome)
}

// SidePool returns the cumulative stake on one side.
func (m *Market) SidePool(o Outcome) uint64 {
	if o == OutcomeYes {
		return m.TotalYesAmount
	}
	return m.TotalNoAmount
}

// AddStake adds amount to the side's pool counter and bumps the bet count.
// Either both counters update or neither does: the new values are computed
// with overflow checks before anything is assigned.
func (m *Market) AddStake(o Outcome, amount uint64) error {
	newSide, err := CheckedAdd(m.SidePool(o), amount)
	if err != nil {
		return err
	}
	newBets, err := CheckedAdd(m.TotalBets, 1)
	if err != nil {
		return err
	}
	if o == OutcomeYes {
		m.TotalYesAmount = newSide
	} else {
		m.TotalNoAmount = newSide
	}
	m.TotalBets = newBets
	return nil
}

// Resolve records the winning outcome. It is the only place the resolution
// fields are assigned; once set they are never reassigned, so a second call
// always fails with ErrMarketAlreadyResolved.
func (m *Market) Resolve(winner Outcome, at time.Time) error {
	if m.IsResolved() {
		return ErrMarketAlreadyResolved
	}
	w := winner
	t := at
	m.WinningOutcome = &w
	m.ResolvedAt = &t
	m.IsActive = false
	return nil
}

// CalculatePayout computes the parimutuel payout for a stake on the given
// side:
//
//	payout = amount × (totalYes + totalNo) / winningPool
//
// with a 128-bit intermediate product and floor division, so the sum of every
// winner's payout never exceeds the pool. Returns 0 for an unresolved market,
// a losing side, or an empty winning pool.
func (m *Market) CalculatePayout(amount uint64, side Outcome) (uint64, error) {
	if !m.IsResolved() || side != *m.WinningOutcome {
		return 0, nil
	}
	pool, err := m.TotalPool()
	if err != nil {
		return 0, err
	}
	winning := m.WinningPool()
	if winning == 0 {
		return 0, nil
	}
	return MulDiv(amount, pool, winning)
}

// ──────────────────────────────────────────────────────────────────────────────
// Checked integer arithmetic
// ──────────────────────────────────────────────────────────────────────────────

// CheckedAdd returns a+b, failing instead of wrapping.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b, failing closed on underflow. Underflow here means a
// conservation bug, never bad client input.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

// MulDiv returns floor(a×b/d) using a full 128-bit intermediate product.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrArithmeticOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		// Quotient would not fit in 64 bits.
		return 0, ErrArithmeticOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketSummary — read model for WS broadcasts and list endpoints
// ──────────────────────────────────────────────────────────────────────────────

// ImpliedOdds returns the payout multiplier a stake on the given side would
// currently receive (total pool / side pool). Returns decimal.Zero while the
// side pool is empty.
func (m *Market) ImpliedOdds(o Outcome) decimal.Decimal {
	side := m.SidePool(o)
	if side == 0 {
		return decimal.Zero
	}
	pool, err := m.TotalPool()
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromUint64(pool).Div(decimal.NewFromUint64(side))
}

// PoolPercent returns the share of the total pool staked on one side (0–100).
func (m *Market) PoolPercent(o Outcome) decimal.Decimal {
	pool, err := m.TotalPool()
	if err != nil || pool == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(m.SidePool(o)).
		Div(decimal.NewFromUint64(pool)).
		Mul(decimal.NewFromInt(100))
}

// MarketSummary is a derived, read-only view of a Market.
type MarketSummary struct {
	ID             uint64          `json:"id"`
	Title          string          `json:"title"`
	Status         MarketStatus    `json:"status"`
	YesOdds        decimal.Decimal `json:"yes_odds"`
	NoOdds         decimal.Decimal `json:"no_odds"`
	YesPercent     decimal.Decimal `json:"yes_percent"`
	NoPercent      decimal.Decimal `json:"no_percent"`
	TotalYesAmount uint64          `json:"total_yes_amount"`
	TotalNoAmount  uint64          `json:"total_no_amount"`
	TotalBets      uint64          `json:"total_bets"`
	ResolutionTime time.Time       `json:"resolution_time"`
	TimeLeftSec    int64           `json:"time_left_sec"`
	WinningOutcome *Outcome        `json:"winning_outcome,omitempty"`
}

// ToSummary builds a MarketSummary as of now.
func (m *Market) ToSummary(now time.Time) MarketSummary {
	left := m.ResolutionTime.Sub(now)
	if left < 0 {
		left = 0
	}
	return MarketSummary{
		ID:             m.ID,
		Title:          m.Title,
		Status:         m.Status(now),
		YesOdds:        m.ImpliedOdds(OutcomeYes),
		NoOdds:         m.ImpliedOdds(OutcomeNo),
		YesPercent:     m.PoolPercent(OutcomeYes),
		NoPercent:      m.PoolPercent(OutcomeNo),
		TotalYesAmount: m.TotalYesAmount,
		TotalNoAmount:  m.TotalNoAmount,
		TotalBets:      m.TotalBets,
		ResolutionTime: m.ResolutionTime,
		TimeLeftSec:    int64(left.Seconds()),
		WinningOutcome: m.WinningOutcome,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Request value objects
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarketRequest carries the validated inputs for market creation. The
// caller becomes the recorded creator; the resolver is the sole identity
// allowed to settle the market.
type CreateMarketRequest struct {
	MarketID       uint64
	Title          string
	Description    string
	Creator        uuid.UUID
	Resolver       uuid.UUID
	ResolutionTime time.Time
}

// PlaceBetRequest carries the validated inputs for placing a bet.
type PlaceBetRequest struct {
	MarketID uint64
	Bettor   uuid.UUID
	Amount   uint64
	Outcome  Outcome
}
