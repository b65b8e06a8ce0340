package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Bet
// ──────────────────────────────────────────────────────────────────────────────

// Bet is one staker's one-time stake on a chosen side of a market. Its
// identity is the (market id, bettor) pair — a staker gets at most one bet per
// market. A bet is never deleted; after settlement it remains as the audit
// record of the stake and its claim.
type Bet struct {
	MarketID  uint64     `json:"market_id"           db:"market_id"`
	Bettor    uuid.UUID  `json:"bettor"              db:"bettor"`
	Amount    uint64     `json:"amount"              db:"amount"`
	Outcome   Outcome    `json:"outcome"             db:"outcome"`
	PlacedAt  time.Time  `json:"placed_at"           db:"placed_at"`
	Claimed   bool       `json:"claimed"             db:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	Payout    *uint64    `json:"payout,omitempty"     db:"payout"`
}

// CalculateWinnings returns the gross payout this bet is owed, or 0 when the
// bet has already been claimed.
func (b *Bet) CalculateWinnings(m *Market) (uint64, error) {
	if b.Claimed {
		return 0, nil
	}
	return m.CalculatePayout(b.Amount, b.Outcome)
}

// MarkClaimed flips the claimed flag. The transition is monotonic: a second
// call fails with ErrNoWinningsToClaim and leaves the record untouched.
func (b *Bet) MarkClaimed(payout uint64, at time.Time) error {
	if b.Claimed {
		return ErrNoWinningsToClaim
	}
	p := payout
	t := at
	b.Claimed = true
	b.ClaimedAt = &t
	b.Payout = &p
	return nil
}
