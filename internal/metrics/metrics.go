package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage counters and histograms.

var (
	// Pipeline-level
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total analysis pipeline runs",
	}, []string{"outcome"})

	PipelineRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "analyzer",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "End-to-end pipeline run duration",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Extractor
	ExtractorIdentifiersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "extractor",
		Name:      "identifiers_total",
		Help:      "Total unique transaction identifiers extracted from summaries",
	})

	ExtractorDuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "extractor",
		Name:      "duplicates_skipped_total",
		Help:      "Total duplicate transaction hashes dropped during extraction",
	})

	// Detail resolver
	ResolverCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "resolver",
		Name:      "cache_hits_total",
		Help:      "Total transaction details served from the cache store",
	})

	ResolverCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "resolver",
		Name:      "cache_misses_total",
		Help:      "Total transaction details missing from the cache store",
	})

	ResolverFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "resolver",
		Name:      "fetches_total",
		Help:      "Total upstream detail fetches by outcome",
	}, []string{"status"})

	ResolverFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "analyzer",
		Subsystem: "resolver",
		Name:      "fetch_duration_seconds",
		Help:      "Upstream detail fetch duration (excluding rate-limit waits)",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Labeler
	LabelerAddressesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "labeler",
		Name:      "addresses_collected_total",
		Help:      "Total unique addresses collected from transaction details",
	})

	LabelerCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "labeler",
		Name:      "cache_hits_total",
		Help:      "Total label lookups served without a provider call",
	}, []string{"source"})

	LabelerProviderLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "labeler",
		Name:      "provider_lookups_total",
		Help:      "Total label provider batch calls by outcome",
	}, []string{"status"})

	// Analysis dispatcher
	AnalysisTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "analysis",
		Name:      "tasks_total",
		Help:      "Total per-transaction analysis tasks by outcome",
	}, []string{"status"})

	AnalysisTaskLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "analyzer",
		Subsystem: "analysis",
		Name:      "task_duration_seconds",
		Help:      "Per-transaction analysis task duration",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	AnalysisWorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyzer",
		Subsystem: "analysis",
		Name:      "workers_busy",
		Help:      "Analysis worker goroutines currently processing a task",
	})

	// Cache store
	StoreWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "store",
		Name:      "write_failures_total",
		Help:      "Total swallowed cache store write failures by domain",
	}, []string{"domain"})

	// Provider rate limiter
	ProviderRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "provider",
		Name:      "rate_limit_waits_total",
		Help:      "Total times provider calls waited for the rate limiter",
	}, []string{"provider"})

	// Event publisher
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total analysis events published by outcome",
	}, []string{"status"})

	// HTTP API
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP API requests by route and status code",
	}, []string{"route", "code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analyzer",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP API request duration by route",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
	}, []string{"route"})

	// Database pool (postgres backend)
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyzer",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyzer",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyzer",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})
)
