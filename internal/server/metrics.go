package server

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
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ovpnadmin",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	metricRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ovpnadmin",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	metricAuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ovpnadmin",
		Name:      "auth_failures_total",
		Help:      "Rejected bearer tokens by reason.",
	}, []string{"reason"})
	metricRevokedTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ovpnadmin",
		Name:      "revoked_tokens",
		Help:      "Logged-out tokens that have not expired yet.",
	})
)

// routePattern keeps label cardinality bounded: client names never become labels.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func observeRequest(method, route string, status int, d time.Duration) {
	metricRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	metricRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if a.Tokens != nil {
		metricRevokedTokens.Set(float64(a.Tokens.RevokedCount()))
	}
	promhttp.Handler().ServeHTTP(w, r)
}
