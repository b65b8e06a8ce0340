package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// ── Market lifecycle ──────────────────────────────────────────────────────────

func TestMarket_Status(t *testing.T) {
	now := time.Now().UTC()
	m := &domain.Market{
		ResolutionTime: now.Add(time.Hour),
		IsActive:       true,
	}
	if got := m.Status(now); got != domain.StatusActive {
		t.Errorf("Status() before deadline = %s, want %s", got, domain.StatusActive)
	}
	if got := m.Status(now.Add(2 * time.Hour)); got != domain.StatusExpired {
		t.Errorf("Status() after deadline = %s, want %s", got, domain.StatusExpired)
	}
	if err := m.Resolve(domain.OutcomeYes, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := m.Status(now.Add(3 * time.Hour)); got != domain.StatusResolved {
		t.Errorf("Status() after resolve = %s, want %s", got, domain.StatusResolved)
	}
}

func TestMarket_IsExpired_AtExactDeadline(t *testing.T) {
	deadline := time.Now().UTC()
	m := &domain.Market{ResolutionTime: deadline}
	// Expiry is inclusive: at the deadline the market no longer accepts bets.
	if !m.IsExpired(deadline) {
		t.Error("market should be expired exactly at the resolution time")
	}
	if m.IsExpired(deadline.Add(-time.Nanosecond)) {
		t.Error("market should not be expired before the resolution time")
	}
}

func TestMarket_CanAcceptBets(t *testing.T) {
	now := time.Now().UTC()
	m := &domain.Market{
		ResolutionTime: now.Add(time.Hour),
		IsActive:       true,
	}
	if !m.CanAcceptBets(now) {
		t.Error("live unexpired market should accept bets")
	}
	if m.CanAcceptBets(now.Add(time.Hour)) {
		t.Error("expired market should not accept bets")
	}
	if err := m.Resolve(domain.OutcomeNo, now.Add(time.Hour)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.CanAcceptBets(now) {
		t.Error("resolved market should not accept bets")
	}
}

func TestMarket_Resolve_OnlyOnce(t *testing.T) {
	now := time.Now().UTC()
	m := &domain.Market{ResolutionTime: now.Add(-time.Minute), IsActive: true}

	if err := m.Resolve(domain.OutcomeYes, now); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if m.WinningOutcome == nil || *m.WinningOutcome != domain.OutcomeYes {
		t.Fatalf("WinningOutcome = %v, want YES", m.WinningOutcome)
	}
	if m.IsActive {
		t.Error("resolved market should be inactive")
	}

	err := m.Resolve(domain.OutcomeNo, now.Add(time.Minute))
	if !errors.Is(err, domain.ErrMarketAlreadyResolved) {
		t.Fatalf("second Resolve err = %v, want ErrMarketAlreadyResolved", err)
	}
	if *m.WinningOutcome != domain.OutcomeYes {
		t.Errorf("WinningOutcome changed to %s after rejected resolve", *m.WinningOutcome)
	}
}

// ── Pool accounting ───────────────────────────────────────────────────────────

func TestMarket_AddStake(t *testing.T) {
	m := &domain.Market{}
	if err := m.AddStake(domain.OutcomeYes, 700); err != nil {
		t.Fatalf("AddStake(YES): %v", err)
	}
	if err := m.AddStake(domain.OutcomeNo, 300); err != nil {
		t.Fatalf("AddStake(NO): %v", err)
	}
	if m.TotalYesAmount != 700 || m.TotalNoAmount != 300 {
		t.Errorf("pools = %d/%d, want 700/300", m.TotalYesAmount, m.TotalNoAmount)
	}
	if m.TotalBets != 2 {
		t.Errorf("TotalBets = %d, want 2", m.TotalBets)
	}
	pool, err := m.TotalPool()
	if err != nil {
		t.Fatalf("TotalPool: %v", err)
	}
	if pool != 1000 {
		t.Errorf("TotalPool = %d, want 1000", pool)
	}
}

func TestMarket_AddStake_OverflowLeavesCountersUntouched(t *testing.T) {
	m := &domain.Market{TotalYesAmount: ^uint64(0) - 5, TotalBets: 3}
	err := m.AddStake(domain.OutcomeYes, 10)
	if !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Fatalf("err = %v, want ErrArithmeticOverflow", err)
	}
	if m.TotalYesAmount != ^uint64(0)-5 {
		t.Errorf("side pool mutated on failed AddStake: %d", m.TotalYesAmount)
	}
	if m.TotalBets != 3 {
		t.Errorf("TotalBets mutated on failed AddStake: %d", m.TotalBets)
	}
}

// ── Outcome ───────────────────────────────────────────────────────────────────

func TestOutcome_IsValid(t *testing.T) {
	if !domain.OutcomeYes.IsValid() {
		t.Error("YES should be valid")
	}
	if !domain.OutcomeNo.IsValid() {
		t.Error("NO should be valid")
	}
	if domain.Outcome("MAYBE").IsValid() {
		t.Error("MAYBE should not be valid")
	}
}

func TestOutcome_Opposite(t *testing.T) {
	if domain.OutcomeYes.Opposite() != domain.OutcomeNo {
		t.Error("Opposite(YES) should be NO")
	}
	if domain.OutcomeNo.Opposite() != domain.OutcomeYes {
		t.Error("Opposite(NO) should be YES")
	}
}

// ── Odds / summary ────────────────────────────────────────────────────────────

func TestMarket_ImpliedOdds(t *testing.T) {
	m := &domain.Market{TotalYesAmount: 1000, TotalNoAmount: 500}
	// YES odds = 1500/1000 = 1.5, NO odds = 1500/500 = 3
	wantYes := decimal.NewFromFloat(1.5)
	if !m.ImpliedOdds(domain.OutcomeYes).Equal(wantYes) {
		t.Errorf("ImpliedOdds(YES) = %s, want %s", m.ImpliedOdds(domain.OutcomeYes), wantYes)
	}
	wantNo := decimal.NewFromInt(3)
	if !m.ImpliedOdds(domain.OutcomeNo).Equal(wantNo) {
		t.Errorf("ImpliedOdds(NO) = %s, want %s", m.ImpliedOdds(domain.OutcomeNo), wantNo)
	}
}

func TestMarket_ImpliedOdds_EmptySide(t *testing.T) {
	m := &domain.Market{TotalYesAmount: 0, TotalNoAmount: 500}
	if !m.ImpliedOdds(domain.OutcomeYes).IsZero() {
		t.Errorf("odds for empty side = %s, want 0", m.ImpliedOdds(domain.OutcomeYes))
	}
}

func TestMarket_PoolPercent_SumsTo100(t *testing.T) {
	m := &domain.Market{TotalYesAmount: 700, TotalNoAmount: 300}
	sum := m.PoolPercent(domain.OutcomeYes).Add(m.PoolPercent(domain.OutcomeNo))
	if !sum.Round(4).Equal(decimal.NewFromInt(100)) {
		t.Errorf("percent sum = %s, want 100", sum)
	}
}

func TestMarket_ToSummary(t *testing.T) {
	now := time.Now().UTC()
	m := &domain.Market{
		ID:             42,
		Title:          "BTC above 100k by March",
		ResolutionTime: now.Add(90 * time.Second),
		TotalYesAmount: 700,
		TotalNoAmount:  300,
		TotalBets:      2,
		IsActive:       true,
	}
	s := m.ToSummary(now)
	if s.ID != 42 || s.Status != domain.StatusActive {
		t.Errorf("summary = %+v", s)
	}
	if s.TimeLeftSec != 90 {
		t.Errorf("TimeLeftSec = %d, want 90", s.TimeLeftSec)
	}
	expired := m.ToSummary(now.Add(5 * time.Minute))
	if expired.TimeLeftSec != 0 {
		t.Errorf("expired TimeLeftSec = %d, want 0", expired.TimeLeftSec)
	}
}

// ── Bet helpers ───────────────────────────────────────────────────────────────

func TestBet_MarkClaimed_Monotonic(t *testing.T) {
	now := time.Now().UTC()
	b := &domain.Bet{
		MarketID: 1,
		Bettor:   uuid.New(),
		Amount:   700,
		Outcome:  domain.OutcomeYes,
	}
	if err := b.MarkClaimed(999, now); err != nil {
		t.Fatalf("first MarkClaimed: %v", err)
	}
	if !b.Claimed || b.Payout == nil || *b.Payout != 999 {
		t.Errorf("bet after claim = %+v", b)
	}
	err := b.MarkClaimed(1, now.Add(time.Second))
	if !errors.Is(err, domain.ErrNoWinningsToClaim) {
		t.Fatalf("second MarkClaimed err = %v, want ErrNoWinningsToClaim", err)
	}
	if *b.Payout != 999 {
		t.Errorf("payout changed to %d after rejected claim", *b.Payout)
	}
}

func TestBet_CalculateWinnings_ClaimedIsZero(t *testing.T) {
	now := time.Now().UTC()
	m := &domain.Market{TotalYesAmount: 700, TotalNoAmount: 300}
	if err := m.Resolve(domain.OutcomeYes, now); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b := &domain.Bet{Amount: 700, Outcome: domain.OutcomeYes}

	got, err := b.CalculateWinnings(m)
	if err != nil || got != 1000 {
		t.Fatalf("CalculateWinnings = %d, %v; want 1000, nil", got, err)
	}
	if err := b.MarkClaimed(got, now); err != nil {
		t.Fatalf("MarkClaimed: %v", err)
	}
	got, err = b.CalculateWinnings(m)
	if err != nil || got != 0 {
		t.Errorf("CalculateWinnings after claim = %d, %v; want 0, nil", got, err)
	}
}

// ── Text bounds sanity ────────────────────────────────────────────────────────

func TestTextBoundsConstants(t *testing.T) {
	title := strings.Repeat("a", domain.MaxTitleLength)
	if len(title) != 100 {
		t.Errorf("MaxTitleLength = %d, want 100", domain.MaxTitleLength)
	}
	if domain.MaxDescriptionLength != 500 {
		t.Errorf("MaxDescriptionLength = %d, want 500", domain.MaxDescriptionLength)
	}
	if domain.MinBetAmount != 1_000_000 {
		t.Errorf("MinBetAmount = %d, want 1000000", domain.MinBetAmount)
	}
}
