package ledger_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quorumbet/parimutuel/internal/domain"
	"github.com/quorumbet/parimutuel/internal/ledger"
)

func TestJournal_RecordsAppliedOperationsOnly(t *testing.T) {
	eng, clk := newTestEngine(t)
	creator, resolver := uuid.New(), uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)
	mustBet(t, eng, 1, uuid.New(), 500, domain.OutcomeYes)

	// Rejected operations must not reach the journal.
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err == nil {
		t.Fatal("resolve before deadline should fail")
	}
	if _, err := eng.CloseMarket(1, uuid.New()); err == nil {
		t.Fatal("stranger close should fail")
	}

	entries := eng.Journal().Entries()
	if len(entries) != 2 {
		t.Fatalf("journal length = %d, want 2", len(entries))
	}
	if entries[0].Op != ledger.OpCreateMarket || entries[1].Op != ledger.OpPlaceBet {
		t.Errorf("journal ops = %s, %s; want create_market, place_bet",
			entries[0].Op, entries[1].Op)
	}
}

func TestReplay_RebuildsIdenticalState(t *testing.T) {
	clk := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	params := ledger.DefaultParams()
	params.MinBetAmount = 1
	eng := ledger.NewEngine(params, clk.Now, nil)

	creator, resolver := uuid.New(), uuid.New()
	small, big, loser := uuid.New(), uuid.New(), uuid.New()

	mustCreate(t, eng, clk, 1, creator, resolver)
	mustCreate(t, eng, clk, 2, creator, resolver)
	mustBet(t, eng, 1, small, 100, domain.OutcomeYes)
	mustBet(t, eng, 1, big, 600, domain.OutcomeYes)
	mustBet(t, eng, 1, loser, 300, domain.OutcomeNo)
	mustBet(t, eng, 2, small, 250, domain.OutcomeNo)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if _, err := eng.ClaimWinnings(1, small); err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}

	replayed, err := ledger.Replay(eng.Journal().Entries(), params)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	for _, id := range []uint64{1, 2} {
		want, err := eng.GetMarket(id)
		if err != nil {
			t.Fatalf("GetMarket(%d): %v", id, err)
		}
		got, err := replayed.GetMarket(id)
		if err != nil {
			t.Fatalf("replayed GetMarket(%d): %v", id, err)
		}
		if got.TotalYesAmount != want.TotalYesAmount ||
			got.TotalNoAmount != want.TotalNoAmount ||
			got.TotalBets != want.TotalBets ||
			got.IsActive != want.IsActive ||
			got.IsResolved() != want.IsResolved() {
			t.Errorf("market %d diverged:\n  live:     %+v\n  replayed: %+v", id, want, got)
		}
		if want.IsResolved() && *got.WinningOutcome != *want.WinningOutcome {
			t.Errorf("market %d winner diverged: live=%s replayed=%s",
				id, *want.WinningOutcome, *got.WinningOutcome)
		}

		wantVault, _ := eng.VaultBalance(id)
		gotVault, _ := replayed.VaultBalance(id)
		if gotVault != wantVault {
			t.Errorf("vault %d diverged: live=%d replayed=%d", id, wantVault, gotVault)
		}

		wantBets, _ := eng.ListBets(id)
		gotBets, _ := replayed.ListBets(id)
		if len(gotBets) != len(wantBets) {
			t.Fatalf("bet count for market %d diverged: live=%d replayed=%d",
				id, len(wantBets), len(gotBets))
		}
		for i := range wantBets {
			if gotBets[i].Bettor != wantBets[i].Bettor ||
				gotBets[i].Amount != wantBets[i].Amount ||
				gotBets[i].Claimed != wantBets[i].Claimed {
				t.Errorf("bet %d on market %d diverged:\n  live:     %+v\n  replayed: %+v",
					i, id, wantBets[i], gotBets[i])
			}
		}
	}
}

func TestReplay_IncludesClose(t *testing.T) {
	clk := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	params := ledger.DefaultParams()
	params.MinBetAmount = 1
	eng := ledger.NewEngine(params, clk.Now, nil)

	creator, resolver := uuid.New(), uuid.New()
	winner := uuid.New()
	mustCreate(t, eng, clk, 1, creator, resolver)
	mustBet(t, eng, 1, winner, 700, domain.OutcomeYes)
	mustBet(t, eng, 1, uuid.New(), 300, domain.OutcomeNo)

	clk.Advance(time.Hour)
	if _, err := eng.ResolveMarket(1, resolver, domain.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if _, err := eng.ClaimWinnings(1, winner); err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}
	if _, err := eng.CloseMarket(1, creator); err != nil {
		t.Fatalf("CloseMarket: %v", err)
	}

	replayed, err := ledger.Replay(eng.Journal().Entries(), params)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if _, err := replayed.GetMarket(1); err == nil {
		t.Error("closed market should be absent after replay")
	}
}
