package ledgerxgo

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerxgo_aggregate_rebuilds_total",
		Help: "Full ledger scans performed to build an aggregate map.",
	}, []string{"aggregate"})

	cacheDeltas = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerxgo_aggregate_deltas_total",
		Help: "Incremental updates applied to a warm aggregate map.",
	}, []string{"aggregate"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerxgo_http_requests_total",
		Help: "HTTP requests served, by route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerxgo_http_request_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
