// Package main is the entry point for the quorumbet settlement API server.
// It wires the ledger engine, its read-model mirrors, the WebSocket hub and
// the background scheduler, then serves the HTTP API until shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/quorumbet/parimutuel/internal/api"
	"github.com/quorumbet/parimutuel/internal/cache"
	"github.com/quorumbet/parimutuel/internal/config"
	"github.com/quorumbet/parimutuel/internal/events"
	"github.com/quorumbet/parimutuel/internal/ledger"
	"github.com/quorumbet/parimutuel/internal/logger"
	"github.com/quorumbet/parimutuel/internal/metrics"
	"github.com/quorumbet/parimutuel/internal/repository"
	"github.com/quorumbet/parimutuel/internal/scheduler"
	"github.com/quorumbet/parimutuel/internal/service"
	"github.com/quorumbet/parimutuel/internal/ws"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.MustLoad()

	log, err := logger.New("settlement-api", cfg.Server.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting settlement server",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	// ── 2. Database mirror (optional) ─────────────────────────────────────────
	var db *sqlx.DB
	if cfg.DB.DSN != "" {
		db, err = sqlx.Connect("postgres", cfg.DB.DSN)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

		if err = runMigrations(db, "migrations"); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		log.Info("database connected, migrations applied")
	} else {
		log.Warn("DATABASE_DSN not set, running without the database mirror")
	}

	// ── 3. Ledger engine ──────────────────────────────────────────────────────
	engine := ledger.NewEngine(ledger.Params{
		MinBetAmount:         cfg.Market.MinBetAmount,
		MaxTitleLength:       cfg.Market.MaxTitleLen,
		MaxDescriptionLength: cfg.Market.MaxDescLen,
		FeeBps:               cfg.Market.FeeBps,
	}, nil, log)

	// ── 4. Repositories ───────────────────────────────────────────────────────
	var marketRepo *repository.MarketRepository
	var betRepo *repository.BetRepository
	if db != nil {
		marketRepo = repository.NewMarketRepository(db)
		betRepo = repository.NewBetRepository(db)
	}

	// ── 5. Cache (optional) ───────────────────────────────────────────────────
	var marketCache *cache.MarketCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		marketCache = cache.NewMarketCache(rdb, cfg.Redis.TTL)
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	// ── 6. Event publisher (optional) ─────────────────────────────────────────
	var publisher *events.Publisher
	if cfg.Kafka.Brokers != "" {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, log)
		log.Info("kafka publisher ready", zap.String("brokers", cfg.Kafka.Brokers))
	}

	// ── 7. WebSocket hub ──────────────────────────────────────────────────────
	var allowedOrigins []string
	if ori := os.Getenv("WS_ALLOWED_ORIGINS"); ori != "" {
		for _, o := range strings.Split(ori, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub([]byte(cfg.JWT.AccessSecret), allowedOrigins)
	metrics.RegisterConnectedClients(func() float64 {
		return float64(hub.ConnectedCount())
	})

	// ── 8. Services ───────────────────────────────────────────────────────────
	marketSvc := service.NewMarketService(engine, marketRepo, marketCache, publisher, hub, log)
	betSvc := service.NewBetService(engine, betRepo, marketRepo, marketCache, publisher, hub, log)
	settlementSvc := service.NewSettlementService(engine, marketRepo, betRepo, marketCache, publisher, hub, log)

	// ── 9. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run()
	log.Info("websocket hub started")

	// ── 10. Scheduler ─────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(engine, hub, cfg.Market.ExpirySweep, cfg.Market.AuditInterval, log)
	sched.Start(ctx)

	// ── 11. Metrics sidecar ───────────────────────────────────────────────────
	var metricsSrv *http.Server
	if cfg.Metrics.Port != "" {
		metricsSrv = metrics.StartMetricsServer(cfg.Metrics.Port, func(ctx context.Context) error {
			if db != nil {
				return db.PingContext(ctx)
			}
			return nil
		})
		log.Info("metrics server listening", zap.String("port", cfg.Metrics.Port))
	}

	// ── 12. HTTP router ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		MarketSvc:     marketSvc,
		BetSvc:        betSvc,
		SettlementSvc: settlementSvc,
		Hub:           hub,
		Cfg:           cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", zap.Error(err))
			stop() // trigger graceful shutdown
		}
	}()

	// ── 13. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	if metricsSrv != nil {
		if err = metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics shutdown error", zap.Error(err))
		}
	}
	if err = publisher.Close(); err != nil {
		log.Error("kafka shutdown error", zap.Error(err))
	}
	if db != nil {
		db.Close()
	}
	log.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
	}
	return nil
}
