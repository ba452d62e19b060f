package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanledger_purchases_total",
			Help: "Total number of purchase attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	WalletDebitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanledger_wallet_debits_total",
			Help: "Total number of wallet debits",
		},
	)

	WalletTopUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanledger_wallet_topups_total",
			Help: "Total number of wallet top-ups",
		},
	)

	GrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanledger_grants_total",
			Help: "Total number of access grants created or extended",
		},
		[]string{"type", "mode"},
	)

	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanledger_events_emitted_total",
			Help: "Total number of events emitted to the hub",
		},
		[]string{"type"},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanledger_events_dropped_total",
			Help: "Total number of events dropped by slow subscribers",
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanledger_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPurchase(kind, outcome string) {
	PurchasesTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordWalletDebit() {
	WalletDebitsTotal.Inc()
}

func RecordWalletTopUp() {
	WalletTopUpsTotal.Inc()
}

func RecordGrant(grantType, mode string) {
	GrantsTotal.WithLabelValues(grantType, mode).Inc()
}

func RecordEventEmitted(eventType string) {
	EventsEmittedTotal.WithLabelValues(eventType).Inc()
}

func RecordEventDropped() {
	EventsDroppedTotal.Inc()
}

func RecordRateLimited() {
	RateLimitedTotal.Inc()
}
