// Package ledger implements the settlement core of the parimutuel protocol:
// an in-memory, content-addressed state store mutated exclusively through five
// atomic operations — create, placeBet, resolve, claim, close. Every
// operation either fully applies all of its writes or leaves the ledger
// untouched; there is no observable intermediate state. Operations on the
// same market serialize on that market's lock, operations on distinct markets
// run in parallel.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// Clock supplies the current time for every precondition check. Injected so
// tests and journal replay run against a deterministic clock.
type Clock func() time.Time

// ──────────────────────────────────────────────────────────────────────────────
// Params
// ──────────────────────────────────────────────────────────────────────────────

// Params are the protocol constants the engine enforces.
type Params struct {
	// MinBetAmount is the smallest accepted stake, in base units.
	MinBetAmount uint64

	// MaxTitleLength and MaxDescriptionLength bound the market text fields,
	// in bytes.
	MaxTitleLength       int
	MaxDescriptionLength int

	// FeeBps is the platform fee taken from each claimed payout, in basis
	// points. The fee is not transferred anywhere on claim — it simply stays
	// in the vault and is swept to the creator on close. 0 disables it.
	FeeBps uint64
}

// DefaultParams returns the protocol defaults.
func DefaultParams() Params {
	return Params{
		MinBetAmount:         domain.MinBetAmount,
		MaxTitleLength:       domain.MaxTitleLength,
		MaxDescriptionLength: domain.MaxDescriptionLength,
		FeeBps:               0,
	}
}

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10_000

// ──────────────────────────────────────────────────────────────────────────────
// Engine
// ──────────────────────────────────────────────────────────────────────────────

// Engine owns the authoritative market/bet/vault state and exposes the five
// protocol operations. It is safe for concurrent use.
type Engine struct {
	store   *store
	clock   Clock
	params  Params
	journal *Journal
	logger  *zap.Logger
}

// NewEngine creates an Engine. clock may be nil (wall clock, UTC); logger may
// be nil (no-op).
func NewEngine(params Params, clock Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   newStore(),
		clock:   clock,
		params:  params,
		journal: NewJournal(),
		logger:  logger,
	}
}

// Params returns the protocol constants the engine was built with.
func (e *Engine) Params() Params { return e.params }

// Journal returns the engine's operation journal.
func (e *Engine) Journal() *Journal { return e.journal }

// ──────────────────────────────────────────────────────────────────────────────
// CreateMarket
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket registers a new market under its externally supplied id and
// allocates its zero-balance vault. The caller becomes the recorded creator;
// req.Resolver becomes the sole identity allowed to resolve.
func (e *Engine) CreateMarket(req domain.CreateMarketRequest) (*domain.Market, error) {
	now := e.clock()

	if len(req.Title) > e.params.MaxTitleLength {
		return nil, domain.ErrTitleTooLong
	}
	if len(req.Description) > e.params.MaxDescriptionLength {
		return nil, domain.ErrDescriptionTooLong
	}
	if !req.ResolutionTime.After(now) {
		return nil, domain.ErrInvalidResolutionTime
	}

	ms := &marketState{
		market: domain.Market{
			ID:             req.MarketID,
			Title:          req.Title,
			Description:    req.Description,
			Creator:        req.Creator,
			Resolver:       req.Resolver,
			ResolutionTime: req.ResolutionTime,
			CreatedAt:      now,
			IsActive:       true,
		},
		bets: make(map[StorageKey]*domain.Bet),
	}

	if err := e.store.put(MarketKey(req.MarketID), ms); err != nil {
		return nil, err
	}
	e.journal.record(Entry{Op: OpCreateMarket, At: now, Create: &req})

	e.logger.Debug("market created",
		zap.Uint64("market_id", req.MarketID),
		zap.String("resolver", req.Resolver.String()),
		zap.Time("resolution_time", req.ResolutionTime),
	)
	return ms.marketCopy(), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet records a staker's one-time stake on a side of a live market and
// moves the stake into the market's vault. The bet record, both pool
// counters, the bet count and the vault credit land as one atomic step: every
// precondition and overflow check runs before the first write.
func (e *Engine) PlaceBet(req domain.PlaceBetRequest) (*domain.Bet, error) {
	if !req.Outcome.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}

	ms := e.store.get(MarketKey(req.MarketID))
	if ms == nil {
		return nil, domain.ErrMarketNotFound
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil, domain.ErrMarketNotFound
	}
	now := e.clock()
	if !ms.market.CanAcceptBets(now) {
		return nil, domain.ErrMarketExpired
	}
	if req.Amount < e.params.MinBetAmount {
		return nil, domain.ErrBetAmountTooLow
	}

	key := BetKey(req.MarketID, req.Bettor)
	if _, exists := ms.bets[key]; exists {
		return nil, domain.ErrUserAlreadyBet
	}

	// Vault headroom check before any mutation; AddStake does its own checks
	// and assigns nothing on failure.
	if ms.vault+req.Amount < ms.vault {
		return nil, domain.ErrArithmeticOverflow
	}
	if err := ms.market.AddStake(req.Outcome, req.Amount); err != nil {
		return nil, err
	}
	_ = ms.creditVault(req.Amount) // cannot fail: headroom checked above

	bet := &domain.Bet{
		MarketID: req.MarketID,
		Bettor:   req.Bettor,
		Amount:   req.Amount,
		Outcome:  req.Outcome,
		PlacedAt: now,
	}
	ms.bets[key] = bet
	ms.order = append(ms.order, key)

	e.journal.record(Entry{Op: OpPlaceBet, At: now, Bet: &req})

	e.logger.Debug("bet placed",
		zap.Uint64("market_id", req.MarketID),
		zap.String("bettor", req.Bettor.String()),
		zap.Uint64("amount", req.Amount),
		zap.String("outcome", string(req.Outcome)),
	)
	out := *bet
	return &out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ResolveMarket
// ──────────────────────────────────────────────────────────────────────────────

// ResolveMarket records the winning side. Only the recorded resolver may call
// it, only at or after the resolution deadline, and only once — this is the
// single irreversible branch point of the protocol.
func (e *Engine) ResolveMarket(marketID uint64, resolver uuid.UUID, winner domain.Outcome) (*domain.Market, error) {
	if !winner.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}

	ms := e.store.get(MarketKey(marketID))
	if ms == nil {
		return nil, domain.ErrMarketNotFound
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil, domain.ErrMarketNotFound
	}
	if resolver != ms.market.Resolver {
		return nil, domain.ErrUnauthorizedResolver
	}
	now := e.clock()
	if !ms.market.IsExpired(now) {
		return nil, domain.ErrMarketNotExpired
	}
	if err := ms.market.Resolve(winner, now); err != nil {
		return nil, err
	}

	e.journal.record(Entry{Op: OpResolveMarket, At: now, Resolve: &ResolveRecord{
		MarketID: marketID,
		Resolver: resolver,
		Winner:   winner,
	}})

	e.logger.Info("market resolved",
		zap.Uint64("market_id", marketID),
		zap.String("winner", string(winner)),
	)
	return ms.marketCopy(), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ClaimWinnings
// ──────────────────────────────────────────────────────────────────────────────

// ClaimWinnings pays a winning staker their parimutuel share out of the vault
// and marks the bet claimed. Returns the net amount transferred. Repeat
// claims fail ErrNoWinningsToClaim; losing-side claims fail
// ErrUserBetOnLosingOutcome.
func (e *Engine) ClaimWinnings(marketID uint64, bettor uuid.UUID) (uint64, error) {
	ms := e.store.get(MarketKey(marketID))
	if ms == nil {
		return 0, domain.ErrMarketNotFound
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	// The lookup above raced a concurrent CloseMarket if closed is set: the
	// vault has been swept, so the stale state must read as gone, not as a
	// conservation failure.
	if ms.closed {
		return 0, domain.ErrMarketNotFound
	}
	if !ms.market.IsResolved() {
		return 0, domain.ErrMarketNotResolved
	}

	bet, ok := ms.bets[BetKey(marketID, bettor)]
	if !ok {
		return 0, domain.ErrBetNotFound
	}
	if bet.Claimed {
		return 0, domain.ErrNoWinningsToClaim
	}
	if bet.Outcome != *ms.market.WinningOutcome {
		return 0, domain.ErrUserBetOnLosingOutcome
	}

	winnings, err := bet.CalculateWinnings(&ms.market)
	if err != nil {
		return 0, err
	}
	if winnings == 0 {
		return 0, domain.ErrNoWinningsToClaim
	}

	payout, err := e.netPayout(winnings)
	if err != nil {
		return 0, err
	}

	// Debit first: it is the only step that can still fail, and a failure
	// here must leave the bet unclaimed.
	if err := ms.debitVault(payout); err != nil {
		return 0, err
	}
	now := e.clock()
	if err := bet.MarkClaimed(payout, now); err != nil {
		// Unreachable given the claimed check above; restore the vault so a
		// defect cannot leak funds.
		ms.vault += payout
		ms.paidOut -= payout
		return 0, err
	}

	e.journal.record(Entry{Op: OpClaimWinnings, At: now, Claim: &ClaimRecord{
		MarketID: marketID,
		Bettor:   bettor,
	}})

	e.logger.Info("winnings claimed",
		zap.Uint64("market_id", marketID),
		zap.String("bettor", bettor.String()),
		zap.Uint64("payout", payout),
	)
	return payout, nil
}

// netPayout applies the platform fee to gross winnings. The fee portion is
// never debited; it stays in the vault for the close sweep.
func (e *Engine) netPayout(winnings uint64) (uint64, error) {
	if e.params.FeeBps == 0 {
		return winnings, nil
	}
	fee, err := domain.MulDiv(winnings, e.params.FeeBps, feeDenominator)
	if err != nil {
		return 0, err
	}
	return domain.CheckedSub(winnings, fee)
}

// ──────────────────────────────────────────────────────────────────────────────
// CloseMarket
// ──────────────────────────────────────────────────────────────────────────────

// CloseMarket removes a settled market from the ledger and sweeps whatever is
// left in its vault — floor residue, unclaimed payouts, fees — to the
// creator. Only the creator may close, and only once the market is resolved
// or has expired without ever taking a bet. Returns the swept residual.
func (e *Engine) CloseMarket(marketID uint64, caller uuid.UUID) (uint64, error) {
	key := MarketKey(marketID)
	ms := e.store.get(key)
	if ms == nil {
		return 0, domain.ErrMarketNotFound
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return 0, domain.ErrMarketNotFound
	}
	if caller != ms.market.Creator {
		return 0, domain.ErrUnauthorizedCreator
	}
	now := e.clock()
	expiredIdle := ms.market.IsExpired(now) && ms.market.TotalBets == 0
	if !ms.market.IsResolved() && !expiredIdle {
		return 0, domain.ErrMarketStillActive
	}

	residual := ms.vault
	ms.vault = 0
	ms.paidOut += residual
	ms.closed = true
	e.store.remove(key)

	e.journal.record(Entry{Op: OpCloseMarket, At: now, Close: &CloseRecord{
		MarketID: marketID,
		Caller:   caller,
	}})

	e.logger.Info("market closed",
		zap.Uint64("market_id", marketID),
		zap.Uint64("residual", residual),
	)
	return residual, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetMarket returns a copy of the market record.
func (e *Engine) GetMarket(marketID uint64) (*domain.Market, error) {
	ms := e.store.get(MarketKey(marketID))
	if ms == nil {
		return nil, domain.ErrMarketNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, domain.ErrMarketNotFound
	}
	return ms.marketCopy(), nil
}

// GetBet returns a copy of the caller's bet on the market.
func (e *Engine) GetBet(marketID uint64, bettor uuid.UUID) (*domain.Bet, error) {
	ms := e.store.get(MarketKey(marketID))
	if ms == nil {
		return nil, domain.ErrMarketNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, domain.ErrMarketNotFound
	}
	bet, ok := ms.bets[BetKey(marketID, bettor)]
	if !ok {
		return nil, domain.ErrBetNotFound
	}
	out := *bet
	return &out, nil
}

// ListBets returns copies of every bet on the market, in placement order.
func (e *Engine) ListBets(marketID uint64) ([]*domain.Bet, error) {
	ms := e.store.get(MarketKey(marketID))
	if ms == nil {
		return nil, domain.ErrMarketNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, domain.ErrMarketNotFound
	}
	bets := make([]*domain.Bet, 0, len(ms.order))
	for _, k := range ms.order {
		b := *ms.bets[k]
		bets = append(bets, &b)
	}
	return bets, nil
}

// ListMarkets returns copies of every live market record.
func (e *Engine) ListMarkets() []domain.Market {
	states := e.store.all()
	markets := make([]domain.Market, 0, len(states))
	for _, ms := range states {
		ms.mu.Lock()
		if !ms.closed {
			markets = append(markets, ms.market)
		}
		ms.mu.Unlock()
	}
	return markets
}

// VaultBalance returns the market's current escrow balance.
func (e *Engine) VaultBalance(marketID uint64) (uint64, error) {
	ms := e.store.get(MarketKey(marketID))
	if ms == nil {
		return 0, domain.ErrMarketNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return 0, domain.ErrMarketNotFound
	}
	return ms.vault, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Conservation audit
// ──────────────────────────────────────────────────────────────────────────────

// ConservationReport is one market's funds-flow accounting.
type ConservationReport struct {
	MarketID uint64 `json:"market_id"`
	Vault    uint64 `json:"vault"`
	Staked   uint64 `json:"staked"`
	PaidOut  uint64 `json:"paid_out"`
	OK       bool   `json:"ok"`
}

// AuditConservation checks vault == staked − paidOut for every live market.
// A failing report indicates an engine defect, never bad client input.
func (e *Engine) AuditConservation() []ConservationReport {
	states := e.store.all()
	reports := make([]ConservationReport, 0, len(states))
	for _, ms := range states {
		ms.mu.Lock()
		if ms.closed {
			ms.mu.Unlock()
			continue
		}
		reports = append(reports, ConservationReport{
			MarketID: ms.market.ID,
			Vault:    ms.vault,
			Staked:   ms.staked,
			PaidOut:  ms.paidOut,
			OK:       ms.vault == ms.staked-ms.paidOut,
		})
		ms.mu.Unlock()
	}
	return reports
}
