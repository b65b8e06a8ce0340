// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        // e.g. "8080"
	Env          string        // "development" | "production"
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
}

// DBConfig holds PostgreSQL connection settings. The database is a read-model
// mirror of the ledger; leave DSN empty to run without it.
type DBConfig struct {
	DSN             string        // full postgres DSN; "" disables the mirror
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT verification settings.
type JWTConfig struct {
	AccessSecret string        // must be set
	AccessTTL    time.Duration // default 15m
}

// MarketConfig holds the protocol constants enforced by the ledger engine.
type MarketConfig struct {
	MinBetAmount  uint64        // smallest accepted stake, in base units; default 1_000_000
	MaxTitleLen   int           // default 100
	MaxDescLen    int           // default 500
	FeeBps        uint64        // platform fee on claimed payouts, basis points; default 0
	ExpirySweep   time.Duration // scheduler interval for the expiry watcher; default 5s
	AuditInterval time.Duration // scheduler interval for the conservation audit; default 1m
}

// RedisConfig holds cache settings. Leave Addr empty to disable caching.
type RedisConfig struct {
	Addr     string        // e.g. "localhost:6379"; "" disables the cache
	Password string
	DB       int
	TTL      time.Duration // market summary TTL, default 2s
}

// KafkaConfig holds event-publishing settings. Leave Brokers empty to disable.
type KafkaConfig struct {
	Brokers string // comma-separated broker list; "" disables publishing
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Port string // e.g. "9090"; "" disables the metrics server
}

// RateLimitConfig holds the per-IP request allowances for the two API tiers.
type RateLimitConfig struct {
	ReadRPS  int // public read endpoints; default 100
	WriteRPS int // authenticated ledger writes; default 30
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	JWT       JWTConfig
	Market    MarketConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}
	if c.Market.MinBetAmount == 0 {
		errs = append(errs, errors.New("MARKET_MIN_BET_AMOUNT must be positive"))
	}
	if c.Market.MaxTitleLen <= 0 || c.Market.MaxDescLen <= 0 {
		errs = append(errs, fmt.Errorf(
			"market text bounds must be positive, got title=%d description=%d",
			c.Market.MaxTitleLen, c.Market.MaxDescLen,
		))
	}
	// Fee ceiling: 10000 bps would confiscate the whole payout.
	if c.Market.FeeBps >= 10_000 {
		errs = append(errs, fmt.Errorf(
			"MARKET_FEE_BPS must be below 10000, got %d", c.Market.FeeBps,
		))
	}
	if c.RateLimit.ReadRPS <= 0 || c.RateLimit.WriteRPS <= 0 {
		errs = append(errs, fmt.Errorf(
			"rate limits must be positive, got read=%d write=%d",
			c.RateLimit.ReadRPS, c.RateLimit.WriteRPS,
		))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:         getEnv("SERVER_PORT", "8080"),
		Env:          getEnv("ENVIRONMENT", "development"),
		ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB = DBConfig{
		DSN:             os.Getenv("DATABASE_DSN"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		AccessTTL:    getDuration("JWT_ACCESS_TTL", 15*time.Minute),
	}

	// ── Market ────────────────────────────────────────────────────────────────
	minBet, err := getUint64("MARKET_MIN_BET_AMOUNT", 1_000_000)
	if err != nil {
		return nil, fmt.Errorf("MARKET_MIN_BET_AMOUNT: %w", err)
	}
	maxTitle, err := getInt("MARKET_MAX_TITLE_LEN", 100)
	if err != nil {
		return nil, fmt.Errorf("MARKET_MAX_TITLE_LEN: %w", err)
	}
	maxDesc, err := getInt("MARKET_MAX_DESC_LEN", 500)
	if err != nil {
		return nil, fmt.Errorf("MARKET_MAX_DESC_LEN: %w", err)
	}
	feeBps, err := getUint64("MARKET_FEE_BPS", 0)
	if err != nil {
		return nil, fmt.Errorf("MARKET_FEE_BPS: %w", err)
	}
	cfg.Market = MarketConfig{
		MinBetAmount:  minBet,
		MaxTitleLen:   maxTitle,
		MaxDescLen:    maxDesc,
		FeeBps:        feeBps,
		ExpirySweep:   getDuration("MARKET_EXPIRY_SWEEP", 5*time.Second),
		AuditInterval: getDuration("MARKET_AUDIT_INTERVAL", time.Minute),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
		TTL:      getDuration("REDIS_MARKET_TTL", 2*time.Second),
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	cfg.Kafka = KafkaConfig{
		Brokers: getEnv("KAFKA_BROKERS", ""),
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	cfg.Metrics = MetricsConfig{
		Port: getEnv("METRICS_PORT", "9090"),
	}

	// ── Rate limits ───────────────────────────────────────────────────────────
	readRPS, err := getInt("RATE_LIMIT_READ_RPS", 100)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_READ_RPS: %w", err)
	}
	writeRPS, err := getInt("RATE_LIMIT_WRITE_RPS", 30)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_WRITE_RPS: %w", err)
	}
	cfg.RateLimit = RateLimitConfig{
		ReadRPS:  readRPS,
		WriteRPS: writeRPS,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getUint64(key string, defaultVal uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unsigned integer %q", v)
	}
	return n, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
