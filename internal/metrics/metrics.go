// Package metrics provides Prometheus instrumentation for the health scanner.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "defi_health_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "defi_health_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	// UpstreamRequests counts calls to third-party APIs by service and status.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "defi_health_upstream_requests_total",
		Help: "Requests made to upstream data providers",
	}, []string{"service", "status"})

	// HealthScores records every computed project health score.
	HealthScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "defi_health_score",
		Help:    "Distribution of computed project health scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	// RebalanceOutcomes counts rebalance attempts by outcome.
	RebalanceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "defi_health_rebalance_outcomes_total",
		Help: "Rebalance attempts by outcome",
	}, []string{"outcome"})

	// SwapsExecuted counts submitted swaps by result.
	SwapsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "defi_health_swaps_total",
		Help: "Swaps submitted to the execution agent",
	}, []string{"result"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics. Routes are labeled by their mux template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
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
