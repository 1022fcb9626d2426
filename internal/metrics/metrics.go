// Package metrics provides Prometheus instrumentation for simulation batches
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts finished runs, partitioned by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runway_runs_total",
		Help: "Total number of simulated runs",
	}, []string{"outcome"})

	// RunDuration tracks the wall time of a single run.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "runway_run_duration_seconds",
		Help:    "Run simulation time in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
	})

	// PeriodsTotal counts simulated months over all runs.
	PeriodsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "runway_periods_total",
		Help: "Total number of simulated periods",
	})

	// BatchesTotal counts batches by status.
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runway_batches_total",
		Help: "Total number of simulation batches",
	}, []string{"status"})

	// LastSurvival is the survival probability of the latest batch.
	LastSurvival = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "runway_last_batch_survival_ratio",
		Help: "Survival probability of the most recent batch",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runway_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "runway_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"method", "path"})
)

// ObserveRun records one finished run.
func ObserveRun(survived bool, periods int, elapsed time.Duration) {
	outcome := "ruined"
	if survived {
		outcome = "survived"
	}
	RunsTotal.WithLabelValues(outcome).Inc()
	PeriodsTotal.Add(float64(periods))
	RunDuration.Observe(elapsed.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics labelled by the matched chi route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
