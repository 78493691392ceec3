package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathercal_provider_calls_total",
			Help: "Total weather provider API calls",
		},
		[]string{"provider", "endpoint", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weathercal_provider_latency_seconds",
			Help:    "Weather provider API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	ReportCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathercal_report_cache_total",
			Help: "Weather report lookups by cache outcome",
		},
		[]string{"outcome"},
	)

	LocationFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathercal_location_fallbacks_total",
			Help: "Location strategies that failed and fell through to the next one",
		},
		[]string{"strategy"},
	)
)
