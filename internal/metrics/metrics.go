// Package metrics defines the Prometheus collectors for oracle calls,
// optimizer runs and the HTTP surface, and exposes a scrape handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	OracleCallsTotal     *prometheus.CounterVec
	OracleLatency        *prometheus.HistogramVec
	OptimizerRunsTotal   *prometheus.CounterVec
	OptimizerEvaluations *prometheus.HistogramVec
	OptimizerBestEnergy  *prometheus.GaugeVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		OracleCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vqe_oracle_calls_total",
				Help: "Expectation oracle calls by backend and outcome (ok, error).",
			},
			[]string{"backend", "outcome"},
		),
		OracleLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vqe_oracle_latency_seconds",
				Help:    "Expectation oracle latency in seconds.",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 10},
			},
			[]string{"backend"},
		),
		OptimizerRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vqe_optimizer_runs_total",
				Help: "Optimizer runs by method and outcome (converged, budget, iteration_limit, error).",
			},
			[]string{"method", "outcome"},
		),
		OptimizerEvaluations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vqe_optimizer_evaluations",
				Help:    "Recorded cost evaluations per optimizer run.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"method"},
		),
		OptimizerBestEnergy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vqe_optimizer_best_energy",
				Help: "Best energy of the most recent run per method.",
			},
			[]string{"method"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30},
			},
			[]string{"method", "path"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.OracleCallsTotal,
		m.OracleLatency,
		m.OptimizerRunsTotal,
		m.OptimizerEvaluations,
		m.OptimizerBestEnergy,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// ObserveOracle records one oracle call.
func (m *Metrics) ObserveOracle(backend string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OracleCallsTotal.WithLabelValues(backend, outcome).Inc()
	m.OracleLatency.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// ObserveRun records one finished optimizer run. bestEnergy is ignored when
// outcome is "error".
func (m *Metrics) ObserveRun(method, outcome string, evaluations int, bestEnergy float64) {
	m.OptimizerRunsTotal.WithLabelValues(method, outcome).Inc()
	if outcome == "error" {
		return
	}
	m.OptimizerEvaluations.WithLabelValues(method).Observe(float64(evaluations))
	m.OptimizerBestEnergy.WithLabelValues(method).Set(bestEnergy)
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts and times requests. Paths are the matched chi route
// pattern when available so IDs do not explode label cardinality.
func (m *Metrics) Middleware(routePattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if routePattern != nil {
				if p := routePattern(r); p != "" {
					path = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
