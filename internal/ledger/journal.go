package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// The journal is the engine's append-only record of every successfully
// applied operation. Replaying it against the same Params rebuilds the exact
// ledger state, which is what the deterministic-replay tests lean on.

// Op identifies one of the five protocol operations.
type Op string

const (
	OpCreateMarket  Op = "create_market"
	OpPlaceBet      Op = "place_bet"
	OpResolveMarket Op = "resolve_market"
	OpClaimWinnings Op = "claim_winnings"
	OpCloseMarket   Op = "close_market"
)

// ResolveRecord captures a resolution's inputs.
type ResolveRecord struct {
	MarketID uint64         `json:"market_id"`
	Resolver uuid.UUID      `json:"resolver"`
	Winner   domain.Outcome `json:"winner"`
}

// ClaimRecord captures a claim's inputs.
type ClaimRecord struct {
	MarketID uint64    `json:"market_id"`
	Bettor   uuid.UUID `json:"bettor"`
}

// CloseRecord captures a close's inputs.
type CloseRecord struct {
	MarketID uint64    `json:"market_id"`
	Caller   uuid.UUID `json:"caller"`
}

// Entry is one applied operation. Exactly one of the payload pointers is set,
// matching Op.
type Entry struct {
	Op Op        `json:"op"`
	At time.Time `json:"at"`

	Create  *domain.CreateMarketRequest `json:"create,omitempty"`
	Bet     *domain.PlaceBetRequest     `json:"bet,omitempty"`
	Resolve *ResolveRecord              `json:"resolve,omitempty"`
	Claim   *ClaimRecord                `json:"claim,omitempty"`
	Close   *CloseRecord                `json:"close,omitempty"`
}

// Journal is an append-only, concurrency-safe operation log.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
}

// NewJournal creates an empty Journal.
func NewJournal() *Journal {
	return &Journal{}
}

// record appends an entry. Called by the engine only after the operation has
// fully applied.
func (j *Journal) record(e Entry) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

// Entries returns a copy of the log in application order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the number of recorded operations.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Replay rebuilds an engine by re-running every entry against a clock pinned
// to the entry's original timestamp. Entries were only recorded for applied
// operations, so any error during replay means the log or the params do not
// match the engine that produced them.
func Replay(entries []Entry, params Params) (*Engine, error) {
	var cursor time.Time
	eng := NewEngine(params, func() time.Time { return cursor }, nil)

	for i, e := range entries {
		cursor = e.At
		var err error
		switch e.Op {
		case OpCreateMarket:
			_, err = eng.CreateMarket(*e.Create)
		case OpPlaceBet:
			_, err = eng.PlaceBet(*e.Bet)
		case OpResolveMarket:
			_, err = eng.ResolveMarket(e.Resolve.MarketID, e.Resolve.Resolver, e.Resolve.Winner)
		case OpClaimWinnings:
			_, err = eng.ClaimWinnings(e.Claim.MarketID, e.Claim.Bettor)
		case OpCloseMarket:
			_, err = eng.CloseMarket(e.Close.MarketID, e.Close.Caller)
		default:
			err = fmt.Errorf("unknown op %q", e.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("ledger.Replay: entry %d (%s): %w", i, e.Op, err)
		}
	}
	return eng, nil
}
