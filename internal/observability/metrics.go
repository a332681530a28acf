package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "busdesk", Name: "backend_requests_total", Help: "Platform API calls by operation and outcome"},
		[]string{"op", "outcome"},
	)
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "busdesk",
			Name:      "backend_request_duration_seconds",
			Help:      "Platform API call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	MalformedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "busdesk", Name: "malformed_entries_total", Help: "Response entries dropped while decoding"},
		[]string{"op"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "busdesk", Name: "cache_lookups_total", Help: "Resource cache lookups by cache and result"},
		[]string{"cache", "result"},
	)

	NoticesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "busdesk", Name: "notices_total", Help: "Operator notices by severity"},
		[]string{"severity"},
	)
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "busdesk", Name: "sessions_active", Help: "Open console sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "busdesk", Name: "http_requests_total", Help: "Console API requests by route and status"},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "busdesk",
			Name:      "http_request_duration_seconds",
			Help:      "Console API latency by route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TxRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "busdesk", Name: "journal_tx_retries_total", Help: "Journal transactions retried after a serialization failure"})
)
