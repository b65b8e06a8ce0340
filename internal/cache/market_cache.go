// Package cache keeps hot market summaries in Redis so list and detail reads
// skip the engine. Entries are short-lived and invalidated on every write, so
// a stale read is bounded by the TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quorumbet/parimutuel/internal/domain"
)

// ConnectRedis opens and pings a Redis client.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cache.ConnectRedis: %w", err)
	}
	return rdb, nil
}

// ErrMiss is returned when the requested summary is not cached.
var ErrMiss = errors.New("cache miss")

// MarketCache stores serialized MarketSummary values keyed by market id.
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache with the given entry TTL.
func NewMarketCache(rdb *redis.Client, ttl time.Duration) *MarketCache {
	return &MarketCache{rdb: rdb, ttl: ttl}
}

func summaryKey(marketID uint64) string {
	return fmt.Sprintf("market:summary:%d", marketID)
}

// GetSummary returns the cached summary, or ErrMiss.
func (c *MarketCache) GetSummary(ctx context.Context, marketID uint64) (*domain.MarketSummary, error) {
	raw, err := c.rdb.Get(ctx, summaryKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache.GetSummary: %w", err)
	}
	var s domain.MarketSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("cache.GetSummary unmarshal: %w", err)
	}
	return &s, nil
}

// SetSummary caches the summary for the configured TTL.
func (c *MarketCache) SetSummary(ctx context.Context, s *domain.MarketSummary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cache.SetSummary marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, summaryKey(s.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache.SetSummary: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary after a write to the market.
func (c *MarketCache) Invalidate(ctx context.Context, marketID uint64) error {
	if err := c.rdb.Del(ctx, summaryKey(marketID)).Err(); err != nil {
		return fmt.Errorf("cache.Invalidate: %w", err)
	}
	return nil
}
