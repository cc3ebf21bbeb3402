// Package metrics provides Prometheus metrics for the duet ranking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Duel path
	duelsRecorded     prometheus.Counter
	duelsRejected     prometheus.Counter
	sessionRecomputes prometheus.Counter

	// Solver
	solverIterations   prometheus.Histogram
	solverLatency      prometheus.Histogram
	solverNonConverged prometheus.Counter

	// Deduplication
	dedupeAutoMerges  prometheus.Counter
	dedupeSuggestions prometheus.Counter

	// Aggregation
	aggregateRuns        prometheus.Counter
	aggregateFailures    prometheus.Counter
	aggregateRacesLost   prometheus.Counter
	aggregateRunDuration prometheus.Histogram
	aggregateQueueDepth  prometheus.Gauge
	pendingComparisons   *prometheus.GaugeVec

	// Call serializer
	serializerQueueDepth   prometheus.Gauge
	serializerRetries      prometheus.Counter
	serializerTimeouts     prometheus.Counter
	serializerCallDuration prometheus.Histogram

	// Provider calls by outcome class (ok, rate_limited, server_error,
	// not_found, unauthorized, other)
	providerCalls *prometheus.CounterVec

	// Leaderboard reads
	leaderboardReads     prometheus.Counter
	leaderboardCacheHits prometheus.Counter
}

// Global manager registered on a custom registry so the default Go
// collectors do not pollute scrapes.
var (
	globalManager  *Manager              //nolint:gochecknoglobals // singleton metrics manager
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry
)

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Registry returns the registry the global manager registers on.
// cmd/main exposes it via promhttp.
func Registry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a metrics manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "duet",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.duelsRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duels_recorded_total",
		Help:      "Total number of duels appended to the comparison log",
	})
	m.duelsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duels_rejected_total",
		Help:      "Total number of duels rejected as malformed or referencing unknown items",
	})
	m.sessionRecomputes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_recomputes_total",
		Help:      "Total number of session-local ranking recomputes",
	})

	m.solverIterations = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solver_iterations",
		Help:      "Iterations needed by the strength solver per run",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
	})
	m.solverLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solver_latency_milliseconds",
		Help:      "Wall time of solver runs in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.solverNonConverged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solver_nonconverged_total",
		Help:      "Solver runs that hit the iteration cap before reaching tolerance",
	})

	m.dedupeAutoMerges = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_auto_merges_total",
		Help:      "Candidate items merged automatically (identity code or high similarity)",
	})
	m.dedupeSuggestions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_suggestions_total",
		Help:      "Medium-confidence merge suggestions emitted for review",
	})

	m.aggregateRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_runs_total",
		Help:      "Global recompute runs executed",
	})
	m.aggregateFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_failures_total",
		Help:      "Global recompute runs that ended in an error",
	})
	m.aggregateRacesLost = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_races_lost_total",
		Help:      "Queue attempts that lost the compare-and-set race (expected under load)",
	})
	m.aggregateRunDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_run_duration_milliseconds",
		Help:      "Wall time of global recompute runs in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.aggregateQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_queue_depth",
		Help:      "Recompute jobs waiting for the executor",
	})
	m.pendingComparisons = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pending_comparisons",
		Help:      "Duels recorded but not yet folded into the last global recompute",
	}, []string{"artist"})

	m.serializerQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "serializer_queue_depth",
		Help:      "Calls waiting in the rate-limited call channel",
	})
	m.serializerRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "serializer_retries_total",
		Help:      "Retried provider calls (429/5xx, opted-in 404s)",
	})
	m.serializerTimeouts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "serializer_timeouts_total",
		Help:      "Calls abandoned by the caller before a result was posted",
	})
	m.serializerCallDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "serializer_call_duration_milliseconds",
		Help:      "Duration of serialized provider calls including retries",
		Buckets:   m.histogramBuckets,
	})

	m.providerCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_calls_total",
		Help:      "External catalog calls by outcome class",
	}, []string{"outcome"})

	m.leaderboardReads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_reads_total",
		Help:      "Global leaderboard reads served",
	})
	m.leaderboardCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_cache_hits_total",
		Help:      "Leaderboard reads served from the TTL cache",
	})
}

// Package-level helpers operating on the global manager.

func RecordDuelRecorded()     { globalManager.duelsRecorded.Inc() }
func RecordDuelRejected()     { globalManager.duelsRejected.Inc() }
func RecordSessionRecompute() { globalManager.sessionRecomputes.Inc() }

func RecordSolverRun(iterations int, latencyMs float64, converged bool) {
	globalManager.solverIterations.Observe(float64(iterations))
	globalManager.solverLatency.Observe(latencyMs)
	if !converged {
		globalManager.solverNonConverged.Inc()
	}
}

func RecordDedupeAutoMerge()  { globalManager.dedupeAutoMerges.Inc() }
func RecordDedupeSuggestion() { globalManager.dedupeSuggestions.Inc() }

func RecordAggregateRun(durationMs float64) {
	globalManager.aggregateRuns.Inc()
	globalManager.aggregateRunDuration.Observe(durationMs)
}
func RecordAggregateFailure()  { globalManager.aggregateFailures.Inc() }
func RecordAggregateRaceLost() { globalManager.aggregateRacesLost.Inc() }

func UpdateAggregateQueueDepth(depth int) {
	globalManager.aggregateQueueDepth.Set(float64(depth))
}

func UpdatePendingComparisons(artist string, pending int) {
	globalManager.pendingComparisons.WithLabelValues(artist).Set(float64(pending))
}

func UpdateSerializerQueueDepth(depth int) {
	globalManager.serializerQueueDepth.Set(float64(depth))
}
func RecordSerializerRetry()   { globalManager.serializerRetries.Inc() }
func RecordSerializerTimeout() { globalManager.serializerTimeouts.Inc() }
func RecordSerializerCallDuration(ms float64) {
	globalManager.serializerCallDuration.Observe(ms)
}

func RecordProviderCall(outcome string) {
	globalManager.providerCalls.WithLabelValues(outcome).Inc()
}

func RecordLeaderboardRead()     { globalManager.leaderboardReads.Inc() }
func RecordLeaderboardCacheHit() { globalManager.leaderboardCacheHits.Inc() }
