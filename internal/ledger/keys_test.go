package ledger_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/quorumbet/parimutuel/internal/ledger"
)

func TestStorageKeys_Deterministic(t *testing.T) {
	if ledger.MarketKey(42) != ledger.MarketKey(42) {
		t.Error("MarketKey should be a pure function of the market id")
	}
	bettor := uuid.New()
	if ledger.BetKey(42, bettor) != ledger.BetKey(42, bettor) {
		t.Error("BetKey should be a pure function of (market id, bettor)")
	}
	if ledger.VaultKey(42) != ledger.VaultKey(42) {
		t.Error("VaultKey should be a pure function of the market id")
	}
}

func TestStorageKeys_Distinct(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	if ledger.MarketKey(1) == ledger.MarketKey(2) {
		t.Error("distinct market ids must derive distinct keys")
	}
	if ledger.BetKey(1, a) == ledger.BetKey(1, b) {
		t.Error("distinct bettors must derive distinct bet keys")
	}
	if ledger.BetKey(1, a) == ledger.BetKey(2, a) {
		t.Error("the same bettor on distinct markets must derive distinct bet keys")
	}

	// The three namespaces never collide for the same market.
	mk := ledger.MarketKey(1)
	if mk == ledger.VaultKey(1) || mk == ledger.BetKey(1, a) {
		t.Error("market, vault and bet keys must live in separate namespaces")
	}
}

func TestStorageKey_String(t *testing.T) {
	s := ledger.MarketKey(1).String()
	if len(s) != 64 {
		t.Errorf("hex key length = %d, want 64", len(s))
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("key %q is not lowercase hex", s)
		}
	}
}
