package ledger_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quorumbet/parimutuel/internal/domain"
	"github.com/quorumbet/parimutuel/internal/ledger"
)

// testClock is a settable clock shared by an engine and its test.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T) (*ledger.Engine, *testClock) {
	t.Helper()
	clk := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	params := ledger.DefaultParams()
	params.MinBetAmount = 1 // keep stake figures in tests readable
	return ledger.NewEngine(params, clk.Now, nil), clk
}

func mustCreate(t *testing.T, eng *ledger.Engine, clk *testClock, id uint64, creator, resolver uuid.UUID) *domain.Market {
	t.Helper()
	m, err := eng.CreateMarket(domain.CreateMarketRequest{
		MarketID:       id,
		Title:          "BTC above 100k by April",
		Description:    "Settles YES if BTC trades above 100k before the deadline.",
		Creator:        creator,
		Resolver:       resolver,
		ResolutionTime: clk.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return m
}

func mustBet(t *testing.T, eng *ledger.Engine, id uint64, bettor uuid.UUID, amount uint64, side domain.Outcome) *domain.Bet {
	t.Helper()
	b, err := eng.PlaceBet(domain.PlaceBetRequest{
		MarketID: id,
		Bettor:   bettor,
		Amount:   amount,
		Outcome:  side,
	})
	if err != nil {
		t.Fatalf("PlaceBet(%s, %d): %v", side, amount, err)
	}
	return b
}

// ── CreateMarket ──────────────────────────────────────────────────────────────

func TestCreateMarket_Validation(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()

	_, err := eng.CreateMarket(domain.CreateMarketRequest{
		MarketID:       1,
		Title:          strings.Repeat("x", domain.MaxTitleLength+1),
		Creator:        creator,
		Resolver:       resolver,
		ResolutionTime: clk.Now().Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrTitleTooLong) {
		t.Errorf("long title err = %v, want ErrTitleTooLong", err)
	}

	_, err = eng.CreateMarket(domain.CreateMarketRequest{
		MarketID:       1,
		Title:          "ok",
		Description:    strings.Repeat("x", domain.MaxDescriptionLength+1),
		Creator:        creator,
		Resolver:       resolver,
		ResolutionTime: clk.Now().Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrDescriptionTooLong) {
		t.Errorf("long description err = %v, want ErrDescriptionTooLong", err)
	}

	_, err = eng.CreateMarket(domain.CreateMarketRequest{
		MarketID:       1,
		Title:          "ok",
		Creator:        creator,
		Resolver:       resolver,
		ResolutionTime: clk.Now(), // not strictly in the future
	})
	if !errors.Is(err, domain.ErrInvalidResolutionTime) {
		t.Errorf("past deadline err = %v, want ErrInvalidResolutionTime", err)
	}
}

func TestCreateMarket_DuplicateID(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)

	_, err := eng.CreateMarket(domain.CreateMarketRequest{
		MarketID:       1,
		Title:          "duplicate",
		Creator:        creator,
		Resolver:       resolver,
		ResolutionTime: clk.Now().Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrMarketAlreadyExists) {
		t.Fatalf("duplicate id err = %v, want ErrMarketAlreadyExists", err)
	}
}

func TestCreateMarket_StartsEmpty(t *testing.T) {
	eng, clk := newTestEngine(t)
	m := mustCreate(t, eng, clk, 7, uuid.New(), uuid.New())
	if m.TotalYesAmount != 0 || m.TotalNoAmount != 0 || m.TotalBets != 0 {
		t.Errorf("new market pools = %d/%d bets=%d, want all zero",
			m.TotalYesAmount, m.TotalNoAmount, m.TotalBets)
	}
	if !m.IsActive {
		t.Error("new market should be active")
	}
	vault, err := eng.VaultBalance(7)
	if err != nil || vault != 0 {
		t.Errorf("new vault = %d, %v; want 0, nil", vault, err)
	}
}

// ── PlaceBet ──────────────────────────────────────────────────────────────────

func TestPlaceBet_MovesStakeIntoVault(t *testing.T) {
	eng, clk := newTestEngine(t)
	mustCreate(t, eng, clk, 1, uuid.New(), uuid.New())

	mustBet(t, eng, 1, uuid.New(), 700, domain.OutcomeYes)
	mustBet(t, eng, 1, uuid.New(), 300, domain.OutcomeNo)

	m, err := eng.GetMarket(1)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if m.TotalYesAmount != 700 || m.TotalNoAmount != 300 || m.TotalBets != 2 {
		t.Errorf("pools = %d/%d bets=%d, want 700/300 bets=2",
			m.TotalYesAmount, m.TotalNoAmount, m.TotalBets)
	}
	vault, _ := eng.VaultBalance(1)
	if vault != 1000 {
		t.Errorf("vault = %d, want 1000", vault)
	}
}

func TestPlaceBet_SingleBetPerStaker(t *testing.T) {
	eng, clk := newTestEngine(t)
	mustCreate(t, eng, clk, 1, uuid.New(), uuid.New())
	bettor := uuid.New()
	mustBet(t, eng, 1, bettor, 500, domain.OutcomeYes)

	// Second bet by the same staker fails even on the same side.
	_, err := eng.PlaceBet(domain.PlaceBetRequest{
		MarketID: 1, Bettor: bettor, Amount: 500, Outcome: domain.OutcomeYes,
	})
	if !errors.Is(err, domain.ErrUserAlreadyBet) {
		t.Fatalf("second bet err = %v, want ErrUserAlreadyBet", err)
	}

	// Rejected bet leaves state unchanged.
	m, _ := eng.GetMarket(1)
	vault, _ := eng.VaultBalance(1)
	if m.TotalYesAmount != 500 || m.TotalBets != 1 || vault != 500 {
		t.Errorf("state after rejected bet: yes=%d bets=%d vault=%d, want 500/1/500",
			m.TotalYesAmount, m.TotalBets, vault)
	}
}

func TestPlaceBet_NoLateEntry(t *testing.T) {
	eng, clk := newTestEngine(t)
	mustCreate(t, eng, clk, 1, uuid.New(), uuid.New())

	clk.Advance(time.Hour) // exactly at the deadline
	_, err := eng.PlaceBet(domain.PlaceBetRequest{
		MarketID: 1, Bettor: uuid.New(), Amount: 500, Outcome: domain.OutcomeYes,
	})
	if !errors.Is(err, domain.ErrMarketExpired) {
		t.Fatalf("bet at deadline err = %v, want ErrMarketExpired", err)
	}
}

func TestPlaceBet_BelowMinimum(t *testing.T) {
	clk := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	eng := ledger.NewEngine(ledger.DefaultParams(), clk.Now, nil)
	mustCreate(t, eng, clk, 1, uuid.New(), uuid.New())

	_, err := eng.PlaceBet(domain.PlaceBetRequest{
		MarketID: 1, Bettor: uuid.New(), Amount: domain.MinBetAmount - 1, Outcome: domain.OutcomeNo,
	})
	if !errors.Is(err, domain.ErrBetAmountTooLow) {
		t.Fatalf("tiny bet err = %v, want ErrBetAmountTooLow", err)
	}
}

func TestPlaceBet_InvalidOutcomeAndMissingMarket(t *testing.T) {
	eng, clk := newTestEngine(t)
	mustCreate(t, eng, clk, 1, uuid.New(), uuid.New())

	_, err := eng.PlaceBet(domain.PlaceBetRequest{
		MarketID: 1, Bettor: uuid.New(), Amount: 500, Outcome: domain.Outcome("MAYBE"),
	})
	if !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Errorf("bad outcome err = %v, want ErrInvalidOutcome", err)
	}
	_, err = eng.PlaceBet(domain.PlaceBetRequest{
		MarketID: 99, Bettor: uuid.New(), Amount: 500, Outcome: domain.OutcomeYes,
	})
	if !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("missing market err = %v, want ErrMarketNotFound", err)
	}
}

// ── ResolveMarket ─────────────────────────────────────────────────────────────

func TestResolveMarket_ResolverExclusivity(t *testing.T) {
	eng, clk := newTestEngine(t)
	resolver := uuid.New()
	mustCreate(t, eng, clk, 1, uuid.New(), resolver)
	clk.Advance(time.Hour)

	_, err := eng.ResolveMarket(1, uuid.New(), domain.OutcomeYes)
	if !errors.Is(err, domain.ErrUnauthorizedResolver) {
		t.Fatalf("stranger resolve err = %v, want ErrUnauthorizedResolver", err)
	}
	m, _ := eng.GetMarket(1)
	if m.IsResolved() {
		t.Error("rejected resolve must leave winningOutcome unset")
	}

	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("resolver resolve: %v", err)
	}
}

func TestResolveMarket_BeforeDeadline(t *testing.T) {
	eng, clk := newTestEngine(t)
	resolver := uuid.New()
	mustCreate(t, eng, clk, 1, uuid.New(), resolver)

	_, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes)
	if !errors.Is(err, domain.ErrMarketNotExpired) {
		t.Fatalf("early resolve err = %v, want ErrMarketNotExpired", err)
	}
}

func TestResolveMarket_Idempotency(t *testing.T) {
	eng, clk := newTestEngine(t)
	resolver := uuid.New()
	mustCreate(t, eng, clk, 1, uuid.New(), resolver)
	clk.Advance(time.Hour)

	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	_, err := eng.ResolveMarket(1, resolver, domain.OutcomeNo)
	if !errors.Is(err, domain.ErrMarketAlreadyResolved) {
		t.Fatalf("second resolve err = %v, want ErrMarketAlreadyResolved", err)
	}
	m, _ := eng.GetMarket(1)
	if *m.WinningOutcome != domain.OutcomeYes {
		t.Errorf("winning outcome changed to %s after rejected resolve", *m.WinningOutcome)
	}
}

// ── ClaimWinnings ─────────────────────────────────────────────────────────────

func TestClaimWinnings_PayoutExample(t *testing.T) {
	// pool_yes = 700 (stakes 100 + 600), pool_no = 300, winner = YES.
	// payout(100) = floor(100 × 1000 / 700) = 142
	// payout(600) = floor(600 × 1000 / 700) = 857
	// 142 + 857 = 999 ≤ 1000; the 1-unit floor residue stays for close.
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)

	small, big, loser := uuid.New(), uuid.New(), uuid.New()
	mustBet(t, eng, 1, small, 100, domain.OutcomeYes)
	mustBet(t, eng, 1, big, 600, domain.OutcomeYes)
	mustBet(t, eng, 1, loser, 300, domain.OutcomeNo)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}

	got, err := eng.ClaimWinnings(1, small)
	if err != nil || got != 142 {
		t.Fatalf("small claim = %d, %v; want 142, nil", got, err)
	}
	got, err = eng.ClaimWinnings(1, big)
	if err != nil || got != 857 {
		t.Fatalf("big claim = %d, %v; want 857, nil", got, err)
	}

	vault, _ := eng.VaultBalance(1)
	if vault != 1 {
		t.Errorf("vault after claims = %d, want residual 1", vault)
	}

	residual, err := eng.CloseMarket(1, creator)
	if err != nil || residual != 1 {
		t.Fatalf("CloseMarket = %d, %v; want 1, nil", residual, err)
	}
	if _, err := eng.GetMarket(1); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("market still present after close: %v", err)
	}
}

func TestClaimWinnings_Rejections(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)

	winner, loser := uuid.New(), uuid.New()
	mustBet(t, eng, 1, winner, 700, domain.OutcomeYes)
	mustBet(t, eng, 1, loser, 300, domain.OutcomeNo)

	// Claim before resolution.
	if _, err := eng.ClaimWinnings(1, winner); !errors.Is(err, domain.ErrMarketNotResolved) {
		t.Errorf("early claim err = %v, want ErrMarketNotResolved", err)
	}

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}

	// Losing-side claim.
	if _, err := eng.ClaimWinnings(1, loser); !errors.Is(err, domain.ErrUserBetOnLosingOutcome) {
		t.Errorf("losing claim err = %v, want ErrUserBetOnLosingOutcome", err)
	}

	// No bet at all.
	if _, err := eng.ClaimWinnings(1, uuid.New()); !errors.Is(err, domain.ErrBetNotFound) {
		t.Errorf("stranger claim err = %v, want ErrBetNotFound", err)
	}

	// Double claim.
	if _, err := eng.ClaimWinnings(1, winner); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := eng.ClaimWinnings(1, winner); !errors.Is(err, domain.ErrNoWinningsToClaim) {
		t.Errorf("repeat claim err = %v, want ErrNoWinningsToClaim", err)
	}
	vault, _ := eng.VaultBalance(1)
	if vault != 0 {
		t.Errorf("vault after single winner claim = %d, want 0", vault)
	}
}

func TestClaimWinnings_MarksBetClaimed(t *testing.T) {
	eng, clk := newTestEngine(t)
	resolver := uuid.New()
	mustCreate(t, eng, clk, 1, uuid.New(), resolver)
	winner, loser := uuid.New(), uuid.New()
	mustBet(t, eng, 1, winner, 700, domain.OutcomeYes)
	mustBet(t, eng, 1, loser, 300, domain.OutcomeNo)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if _, err := eng.ClaimWinnings(1, winner); err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}

	wb, err := eng.GetBet(1, winner)
	if err != nil || !wb.Claimed || wb.Payout == nil || *wb.Payout != 1000 {
		t.Errorf("winner bet = %+v, %v; want claimed with payout 1000", wb, err)
	}
	lb, err := eng.GetBet(1, loser)
	if err != nil || lb.Claimed {
		t.Errorf("loser bet = %+v, %v; want unclaimed", lb, err)
	}
}

func TestClaimWinnings_PlatformFee(t *testing.T) {
	// 2% fee: winner's gross 1000 → fee 20 → net 980. The fee stays in the
	// vault and is swept to the creator on close.
	clk := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	params := ledger.DefaultParams()
	params.MinBetAmount = 1
	params.FeeBps = 200
	eng := ledger.NewEngine(params, clk.Now, nil)

	creator, resolver := uuid.New(), uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)
	winner, loser := uuid.New(), uuid.New()
	mustBet(t, eng, 1, winner, 700, domain.OutcomeYes)
	mustBet(t, eng, 1, loser, 300, domain.OutcomeNo)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	got, err := eng.ClaimWinnings(1, winner)
	if err != nil || got != 980 {
		t.Fatalf("net claim = %d, %v; want 980, nil", got, err)
	}
	residual, err := eng.CloseMarket(1, creator)
	if err != nil || residual != 20 {
		t.Fatalf("swept fee = %d, %v; want 20, nil", residual, err)
	}
}

// ── CloseMarket ───────────────────────────────────────────────────────────────

func TestCloseMarket_Preconditions(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)
	mustBet(t, eng, 1, uuid.New(), 500, domain.OutcomeYes)

	// Not the creator.
	if _, err := eng.CloseMarket(1, uuid.New()); !errors.Is(err, domain.ErrUnauthorizedCreator) {
		t.Errorf("stranger close err = %v, want ErrUnauthorizedCreator", err)
	}
	// Still live.
	if _, err := eng.CloseMarket(1, creator); !errors.Is(err, domain.ErrMarketStillActive) {
		t.Errorf("live close err = %v, want ErrMarketStillActive", err)
	}
	// Expired with open bets: still not closable until resolved.
	clk.Advance(time.Hour)
	if _, err := eng.CloseMarket(1, creator); !errors.Is(err, domain.ErrMarketStillActive) {
		t.Errorf("expired-with-bets close err = %v, want ErrMarketStillActive", err)
	}
	// Resolved: closable.
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeNo); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if _, err := eng.CloseMarket(1, creator); err != nil {
		t.Fatalf("close after resolve: %v", err)
	}
}

func TestCloseMarket_ExpiredIdleMarket(t *testing.T) {
	// A market that expired without a single bet can be reclaimed by the
	// creator without going through resolution.
	eng, clk := newTestEngine(t)
	creator := uuid.New()
	mustCreate(t, eng, clk, 1, creator, uuid.New())
	clk.Advance(time.Hour)

	residual, err := eng.CloseMarket(1, creator)
	if err != nil || residual != 0 {
		t.Fatalf("idle close = %d, %v; want 0, nil", residual, err)
	}
}

func TestCloseMarket_SweepsUnclaimedFunds(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)
	mustBet(t, eng, 1, uuid.New(), 700, domain.OutcomeYes)
	mustBet(t, eng, 1, uuid.New(), 300, domain.OutcomeNo)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	// Nobody claims; the whole pool is swept.
	residual, err := eng.CloseMarket(1, creator)
	if err != nil || residual != 1000 {
		t.Fatalf("swept = %d, %v; want 1000, nil", residual, err)
	}
}

// ── Round trip & conservation ─────────────────────────────────────────────────

func TestRoundTrip(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	winner, loser := uuid.New(), uuid.New()

	mustCreate(t, eng, clk, 1, creator, resolver)
	mustBet(t, eng, 1, winner, 300, domain.OutcomeNo)
	mustBet(t, eng, 1, loser, 700, domain.OutcomeYes)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeNo); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	got, err := eng.ClaimWinnings(1, winner)
	if err != nil || got != 1000 {
		t.Fatalf("claim = %d, %v; want 1000, nil", got, err)
	}

	vault, _ := eng.VaultBalance(1)
	if vault != 0 {
		t.Errorf("vault before close = %d, want 0", vault)
	}
	wb, _ := eng.GetBet(1, winner)
	lb, _ := eng.GetBet(1, loser)
	if !wb.Claimed || lb.Claimed {
		t.Errorf("claimed flags: winner=%v loser=%v, want true/false", wb.Claimed, lb.Claimed)
	}

	if _, err := eng.CloseMarket(1, creator); err != nil {
		t.Fatalf("CloseMarket: %v", err)
	}
}

func TestAuditConservation(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	winner := uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)
	mustCreate(t, eng, clk, 2, creator, resolver)
	mustBet(t, eng, 1, winner, 600, domain.OutcomeYes)
	mustBet(t, eng, 1, uuid.New(), 400, domain.OutcomeNo)
	mustBet(t, eng, 2, uuid.New(), 999, domain.OutcomeNo)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if _, err := eng.ClaimWinnings(1, winner); err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}

	for _, r := range eng.AuditConservation() {
		if !r.OK {
			t.Errorf("conservation violated for market %d: vault=%d staked=%d paidOut=%d",
				r.MarketID, r.Vault, r.Staked, r.PaidOut)
		}
	}
}

// ── Listing ───────────────────────────────────────────────────────────────────

func TestListBets_PlacementOrder(t *testing.T) {
	eng, clk := newTestEngine(t)
	mustCreate(t, eng, clk, 1, uuid.New(), uuid.New())

	first, second, third := uuid.New(), uuid.New(), uuid.New()
	mustBet(t, eng, 1, first, 100, domain.OutcomeYes)
	mustBet(t, eng, 1, second, 200, domain.OutcomeNo)
	mustBet(t, eng, 1, third, 300, domain.OutcomeYes)

	bets, err := eng.ListBets(1)
	if err != nil {
		t.Fatalf("ListBets: %v", err)
	}
	if len(bets) != 3 {
		t.Fatalf("len(bets) = %d, want 3", len(bets))
	}
	want := []uuid.UUID{first, second, third}
	for i, b := range bets {
		if b.Bettor != want[i] {
			t.Errorf("bets[%d].Bettor = %s, want %s", i, b.Bettor, want[i])
		}
	}
}
