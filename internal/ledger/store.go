package ledger

import (
	"sync"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-market state
// ──────────────────────────────────────────────────────────────────────────────

// marketState bundles everything inside one market's consistency domain: the
// market record, its vault balance, and its bet set. All of it is mutated
// under ms.mu, so an operation on one market never blocks another market.
type marketState struct {
	mu     sync.Mutex
	market domain.Market
	vault  uint64
	bets   map[StorageKey]*domain.Bet
	order  []StorageKey // placement order, for deterministic listing

	// closed is set under mu by CloseMarket before the state leaves the store.
	// An operation that looked the state up just before the close must observe
	// it once it wins the lock, so a swept vault is never mistaken for a live
	// one.
	closed bool

	// Lifetime flow counters, used by the conservation audit:
	// vault == staked − paidOut must hold at every observable point.
	staked  uint64
	paidOut uint64
}

// creditVault adds amount to the escrow balance, failing instead of wrapping.
func (ms *marketState) creditVault(amount uint64) error {
	next := ms.vault + amount
	if next < ms.vault {
		return domain.ErrArithmeticOverflow
	}
	ms.vault = next
	ms.staked += amount
	return nil
}

// debitVault removes amount from the escrow balance. It fails closed: the
// balance can never go below zero. The payout arithmetic guarantees the debit
// always fits, so a failure here is an internal defect, not a user error.
func (ms *marketState) debitVault(amount uint64) error {
	if amount > ms.vault {
		return domain.ErrArithmeticOverflow
	}
	ms.vault -= amount
	ms.paidOut += amount
	return nil
}

// marketCopy returns a detached copy safe to hand to callers.
func (ms *marketState) marketCopy() *domain.Market {
	m := ms.market
	return &m
}

// ──────────────────────────────────────────────────────────────────────────────
// Keyed store
// ──────────────────────────────────────────────────────────────────────────────

// store is the content-addressed market map. The outer lock only guards the
// map itself; each entry carries its own mutex.
type store struct {
	mu      sync.RWMutex
	markets map[StorageKey]*marketState
}

func newStore() *store {
	return &store{markets: make(map[StorageKey]*marketState)}
}

// get returns the state for a market key, or nil when absent.
func (s *store) get(key StorageKey) *marketState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markets[key]
}

// put inserts a new market state. Fails when the key is already taken.
func (s *store) put(key StorageKey, ms *marketState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.markets[key]; exists {
		return domain.ErrMarketAlreadyExists
	}
	s.markets[key] = ms
	return nil
}

// remove deletes a market state from the map.
func (s *store) remove(key StorageKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markets, key)
}

// all returns the current set of market states. The slice is a snapshot of the
// map; the states themselves are live and must be locked before reading.
func (s *store) all() []*marketState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]*marketState, 0, len(s.markets))
	for _, ms := range s.markets {
		states = append(states, ms)
	}
	return states
}
