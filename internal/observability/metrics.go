// Package observability provides Prometheus metrics for monitoring the
// ingestion pipeline and token-lifecycle engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric the core exposes.
type Metrics struct {
	// Processor metrics
	EventsAccepted   prometheus.Counter
	EventsDeduped    prometheus.Counter
	ValidationErrors prometheus.Counter
	DatabaseErrors   prometheus.Counter
	Backpressure     prometheus.Counter
	QueueDepth       prometheus.Gauge

	// Tracker metrics
	TokensTracked        prometheus.Gauge
	NewTokensGauge       prometheus.Gauge
	RecentlyActiveGauge  prometheus.Gauge
	InactiveGauge        prometheus.Gauge
	LowVolumeGauge       prometheus.Gauge
	RuggedCandidateGauge prometheus.Gauge
	AlertsTriggeredTotal prometheus.Counter

	// Cleanup metrics
	CleanupRunsTotal    prometheus.Counter
	CleanupRemovedTotal *prometheus.CounterVec
	CleanupSavedTotal   *prometheus.CounterVec
	CleanupDuration     prometheus.Histogram

	// Trend metrics
	TrendsComputed *prometheus.CounterVec
	TrendsEmitted  *prometheus.CounterVec

	// Platform detector metrics
	PlatformDetections *prometheus.CounterVec
	PlatformCacheHits  prometheus.Counter
	PlatformCacheMiss  prometheus.Counter

	// Feed metrics
	FeedReconnects    prometheus.Counter
	FeedFramesDropped prometheus.Counter

	// Sink metrics
	SinkWriteDuration *prometheus.HistogramVec
	SinkWriteErrors   *prometheus.CounterVec
}

// New creates a Metrics instance with every metric registered under
// namespace ("token_tracker" if empty).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_tracker"
	}

	return &Metrics{
		EventsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "processor", Name: "events_accepted_total",
			Help: "Total number of feed events accepted into a batch",
		}),
		EventsDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "processor", Name: "events_deduped_total",
			Help: "Total number of feed events dropped as duplicates",
		}),
		ValidationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "processor", Name: "validation_errors_total",
			Help: "Total number of events rejected by validation",
		}),
		DatabaseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "processor", Name: "database_errors_total",
			Help: "Total number of batch sink writes that failed",
		}),
		Backpressure: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "processor", Name: "backpressure_total",
			Help: "Total number of submits rejected due to a full queue",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "processor", Name: "queue_depth",
			Help: "Current depth of the ingestion queue",
		}),

		TokensTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tracker", Name: "tokens_tracked",
			Help: "Current number of tracked mints",
		}),
		NewTokensGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tracker", Name: "index_new_tokens",
			Help: "Current size of the newTokens index",
		}),
		RecentlyActiveGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tracker", Name: "index_recently_active",
			Help: "Current size of the recentlyActive index",
		}),
		InactiveGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tracker", Name: "index_inactive",
			Help: "Current size of the inactive index",
		}),
		LowVolumeGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tracker", Name: "index_low_volume",
			Help: "Current size of the lowVolume index",
		}),
		RuggedCandidateGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tracker", Name: "index_rugged_candidates",
			Help: "Current size of the ruggedCandidates index",
		}),
		AlertsTriggeredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tracker", Name: "alerts_triggered_total",
			Help: "Total number of alerts that have fired",
		}),

		CleanupRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cleanup", Name: "runs_total",
			Help: "Total number of cleanup transactions that evaluated at least one candidate",
		}),
		CleanupRemovedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cleanup", Name: "removed_total",
			Help: "Total number of mints untracked, by reason",
		}, []string{"reason"}),
		CleanupSavedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cleanup", Name: "saved_total",
			Help: "Total number of candidates spared, by safety rail",
		}, []string{"rail"}),
		CleanupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cleanup", Name: "duration_seconds",
			Help: "Cleanup transaction wall-clock duration", Buckets: prometheus.DefBuckets,
		}),

		TrendsComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "trend", Name: "computed_total",
			Help: "Total number of trend recomputations, by window",
		}, []string{"window"}),
		TrendsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "trend", Name: "emitted_total",
			Help: "Total number of trend changes broadcast, by window",
		}, []string{"window"}),

		PlatformDetections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "platform", Name: "detections_total",
			Help: "Total number of platform detections, by method",
		}, []string{"method"}),
		PlatformCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "platform", Name: "cache_hits_total",
			Help: "Total number of platform detection cache hits",
		}),
		PlatformCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "platform", Name: "cache_miss_total",
			Help: "Total number of platform detection cache misses",
		}),

		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "reconnects_total",
			Help: "Total number of feed reconnect attempts",
		}),
		FeedFramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "frames_dropped_total",
			Help: "Total number of wire frames dropped as undecodable",
		}),

		SinkWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "sink", Name: "write_duration_seconds",
			Help: "Sink write latency by operation", Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		SinkWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sink", Name: "write_errors_total",
			Help: "Total number of failed sink writes by operation",
		}, []string{"op"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
