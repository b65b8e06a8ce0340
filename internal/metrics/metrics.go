// Package metrics exposes Prometheus instrumentation for the settlement
// service and a small sidecar HTTP server for /metrics and /healthz.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarketsCreated counts successful market registrations.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_markets_created_total",
		Help: "Markets registered in the ledger.",
	})

	// BetsPlaced counts accepted stakes by side.
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_bets_placed_total",
		Help: "Stakes accepted into market vaults.",
	}, []string{"outcome"})

	// MarketsResolved counts resolutions by winning side.
	MarketsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_markets_resolved_total",
		Help: "Markets resolved to a winning outcome.",
	}, []string{"winner"})

	// WinningsClaimed counts successful payouts.
	WinningsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_winnings_claimed_total",
		Help: "Payouts debited from market vaults.",
	})

	// MarketsClosed counts market removals.
	MarketsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_markets_closed_total",
		Help: "Settled markets removed from the ledger.",
	})

	// OperationErrors counts rejected operations by operation and error class.
	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_operation_errors_total",
		Help: "Rejected ledger operations.",
	}, []string{"operation", "class"})

	// StakedVolume accumulates the total base units staked across all markets.
	StakedVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_staked_volume_base_units_total",
		Help: "Cumulative stake volume across all markets, in base units.",
	})

	// LiveMarkets tracks the number of markets currently in the ledger.
	LiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_live_markets",
		Help: "Markets currently held in the ledger.",
	})

	// ConservationViolations counts failed conservation audits. Any nonzero
	// value is an engine defect.
	ConservationViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_conservation_violations_total",
		Help: "Markets whose vault diverged from staked minus paid out.",
	})
)

// RegisterConnectedClients exposes the WebSocket hub's live connection count
// as a gauge. Call once at startup; the function is sampled on every scrape.
func RegisterConnectedClients(count func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "settlement_ws_connected_clients",
		Help: "Currently connected WebSocket clients.",
	}, count)
}

// HealthFunc reports service health for /healthz.
type HealthFunc func(ctx context.Context) error

// StartMetricsServer runs a lightweight HTTP server for /metrics and /healthz
// on its own port. Returns the server so main can shut it down.
func StartMetricsServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
