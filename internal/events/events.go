// Package events publishes settlement lifecycle events to Kafka so downstream
// consumers (notifications, analytics) can react without polling the API.
package events

import "time"

// Topic names, one per lifecycle transition.
const (
	TopicMarketCreated   = "market_created"
	TopicBetPlaced       = "bet_placed"
	TopicMarketResolved  = "market_resolved"
	TopicWinningsClaimed = "winnings_claimed"
	TopicMarketClosed    = "market_closed"
)

// MarketCreated is emitted when a market is registered.
type MarketCreated struct {
	MarketID       uint64    `json:"market_id"`
	Title          string    `json:"title"`
	Creator        string    `json:"creator"`
	Resolver       string    `json:"resolver"`
	ResolutionTime time.Time `json:"resolution_time"`
	TsUnixMs       int64     `json:"ts_unix_ms"`
}

// BetPlaced is emitted when a stake lands in a market's vault.
type BetPlaced struct {
	MarketID uint64 `json:"market_id"`
	Bettor   string `json:"bettor"`
	Amount   uint64 `json:"amount"`
	Outcome  string `json:"outcome"`
	PoolYes  uint64 `json:"pool_yes"`
	PoolNo   uint64 `json:"pool_no"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// MarketResolved is emitted when the winning outcome is recorded.
type MarketResolved struct {
	MarketID uint64 `json:"market_id"`
	Winner   string `json:"winner"`
	PoolYes  uint64 `json:"pool_yes"`
	PoolNo   uint64 `json:"pool_no"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// WinningsClaimed is emitted when a payout leaves the vault.
type WinningsClaimed struct {
	MarketID uint64 `json:"market_id"`
	Bettor   string `json:"bettor"`
	Payout   uint64 `json:"payout"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// MarketClosed is emitted when a settled market is removed from the ledger.
type MarketClosed struct {
	MarketID uint64 `json:"market_id"`
	Residual uint64 `json:"residual"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
