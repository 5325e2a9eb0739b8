// Package metrics provides Prometheus instrumentation for the escrow engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WagersCreatedTotal counts wagers accepted into escrow.
	WagersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerx_wagers_created_total",
		Help: "Total number of wagers created",
	})

	// WagersAcceptedTotal counts pending wagers activated by a counterparty.
	WagersAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerx_wagers_accepted_total",
		Help: "Total number of wagers accepted into the active state",
	})

	// WagersResolvedTotal counts resolutions, partitioned by whether a
	// charity cut was disbursed.
	WagersResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerx_wagers_resolved_total",
		Help: "Total number of wagers resolved",
	}, []string{"charity"})

	// WagersCancelledTotal counts cancellations.
	WagersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerx_wagers_cancelled_total",
		Help: "Total number of wagers cancelled and refunded",
	})

	// EscrowCustody tracks the ledger's custody balance in smallest units.
	EscrowCustody = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerx_escrow_custody_units",
		Help: "Value currently held in escrow custody",
	})

	// CharityDonatedTotal accumulates value diverted to charity addresses.
	CharityDonatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerx_charity_donated_units_total",
		Help: "Cumulative value disbursed to charity addresses",
	})

	// RelaySubmissionsTotal counts relayed creations by outcome.
	RelaySubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerx_relay_submissions_total",
		Help: "Relayed wager submissions",
	}, []string{"status"})

	// OracleCallbacksTotal counts oracle resolution callbacks by outcome.
	OracleCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerx_oracle_callbacks_total",
		Help: "Oracle resolution callbacks processed",
	}, []string{"status"})

	// WebSocketClients tracks connected event-stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wagerx_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; wager ids keep cardinality low.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
