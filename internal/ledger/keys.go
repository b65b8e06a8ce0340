package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
)

// Storage keys are derived, not assigned: every record's address is a pure
// function of the market id (and, for bets, the staker identity). Anyone
// holding the same inputs computes the same key, so the store needs no
// secondary indexes and replay is deterministic.

// StorageKey is the fixed-size content address of a ledger record.
type StorageKey [32]byte

// String returns the key as lowercase hex.
func (k StorageKey) String() string {
	return hex.EncodeToString(k[:])
}

// Derivation seeds. One namespace per record kind.
var (
	marketSeed = []byte("market")
	betSeed    = []byte("bet")
	vaultSeed  = []byte("vault")
)

// MarketKey derives the storage key for a market from its numeric id.
func MarketKey(marketID uint64) StorageKey {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], marketID)
	return derive(marketSeed, id[:])
}

// VaultKey derives the storage key of a market's escrow vault.
func VaultKey(marketID uint64) StorageKey {
	mk := MarketKey(marketID)
	return derive(vaultSeed, mk[:])
}

// BetKey derives the storage key of the (market, staker) bet record.
func BetKey(marketID uint64, bettor uuid.UUID) StorageKey {
	mk := MarketKey(marketID)
	return derive(betSeed, mk[:], bettor[:])
}

func derive(parts ...[]byte) StorageKey {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var k StorageKey
	copy(k[:], h.Sum(nil))
	return k
}
