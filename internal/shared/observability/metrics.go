package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	CompileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gls_compile_seconds",
		Help:    "Time spent compiling a project scope.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	CompilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gls_compiles_total",
		Help: "Total number of compilation passes, by outcome.",
	}, []string{"mode", "outcome"})

	VisitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gls_ast_visit_seconds",
		Help:    "Time spent traversing a compiled unit into the AST index.",
		Buckets: prometheus.DefBuckets,
	})

	ScopesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gls_scopes_active",
		Help: "Number of project scopes currently registered.",
	})

	ScopesCompiled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gls_scopes_compiled",
		Help: "Number of project scopes holding a current compiled unit.",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gls_dependency_graph_nodes_total",
		Help: "Total number of sources tracked across dependency graphs.",
	})

	ScanCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gls_scan_cache_entries",
		Help: "Current number of shared classpath-scan cache entries.",
	})

	ScanCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gls_scan_cache_hits_total",
		Help: "Total number of classpath-scan cache acquisitions served from cache.",
	})

	ScanCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gls_scan_cache_misses_total",
		Help: "Total number of classpath-scan cache acquisitions that ran a scan.",
	})

	RouterEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gls_router_events_total",
		Help: "Total number of file system events received by the change router.",
	})

	RouterBuildOutputSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gls_router_build_output_skipped_total",
		Help: "Total number of events discarded as generated build output.",
	})

	RouterDeferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gls_router_deferred_total",
		Help: "Total number of events recorded but deferred, either awaiting classpath resolution or rate-limited.",
	})

	PendingChanges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gls_pending_changes",
		Help: "Current number of tracked changed sources awaiting recompilation.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gls_watcher_events_total",
		Help: "Total number of raw file system events received by the watcher.",
	})
)
