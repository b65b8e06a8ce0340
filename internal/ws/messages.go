// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeMarketCreated  MsgType = "market_created"
	MsgTypeBetPlaced      MsgType = "bet_placed"
	MsgTypeMarketResolved MsgType = "market_resolved"
	MsgTypeMarketExpired  MsgType = "market_expired"
	MsgTypeMarketClosed   MsgType = "market_closed"
	MsgTypeError          MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketCreatedMessage — broadcast when a new market opens for bets.
// ──────────────────────────────────────────────────────────────────────────────

// MarketCreatedMessage carries the identity and deadline of a fresh market.
type MarketCreatedMessage struct {
	Type           MsgType   `json:"type"`
	MarketID       uint64    `json:"market_id"`
	Title          string    `json:"title"`
	ResolutionTime time.Time `json:"resolution_time"`
	Timestamp      time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetPlacedMessage — broadcast after a bet is accepted so odds refresh for all.
// ──────────────────────────────────────────────────────────────────────────────

// BetPlacedMessage notifies all clients that the pool ratios have changed.
type BetPlacedMessage struct {
	Type       MsgType         `json:"type"`
	MarketID   uint64          `json:"market_id"`
	Outcome    domain.Outcome  `json:"outcome"`
	Amount     uint64          `json:"amount"`
	NewYesOdds decimal.Decimal `json:"new_yes_odds"`
	NewNoOdds  decimal.Decimal `json:"new_no_odds"`
	PoolYes    uint64          `json:"pool_yes"`
	PoolNo     uint64          `json:"pool_no"`
	TotalBets  uint64          `json:"total_bets"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketResolvedMessage — broadcast when a market is settled.
// ──────────────────────────────────────────────────────────────────────────────

// MarketResolvedMessage tells clients which side won so winners can claim.
type MarketResolvedMessage struct {
	Type      MsgType        `json:"type"`
	MarketID  uint64         `json:"market_id"`
	Winner    domain.Outcome `json:"winner"`
	PoolYes   uint64         `json:"pool_yes"`
	PoolNo    uint64         `json:"pool_no"`
	Timestamp time.Time      `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketExpiredMessage — broadcast when the deadline passes.
// ──────────────────────────────────────────────────────────────────────────────

// MarketExpiredMessage tells clients the market stopped accepting bets and is
// waiting for its resolver.
type MarketExpiredMessage struct {
	Type           MsgType   `json:"type"`
	MarketID       uint64    `json:"market_id"`
	ResolutionTime time.Time `json:"resolution_time"`
	Timestamp      time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketClosedMessage — broadcast when a settled market leaves the ledger.
// ──────────────────────────────────────────────────────────────────────────────

// MarketClosedMessage tells clients the market and its history are final.
type MarketClosedMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  uint64    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
