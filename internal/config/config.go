// Package config defines service configuration structures and loading.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address for metrics and health.
	Addr string `koanf:"addr"`

	// SolverTolerance stops the rating iteration once the largest
	// relative strength change drops below it.
	SolverTolerance float64 `koanf:"solver_tolerance"`

	// SolverMaxIterations caps the rating iteration.
	SolverMaxIterations int `koanf:"solver_max_iterations"`

	// RecomputeEvery sets how many session duels trigger an inline
	// recompute.
	RecomputeEvery int `koanf:"recompute_every"`

	// AggregateCooldownSec is the minimum gap between global recomputes
	// of one artist, in seconds.
	AggregateCooldownSec int `koanf:"aggregate_cooldown_sec"`

	// AggregateQueueSize bounds the pending artist queue.
	AggregateQueueSize int `koanf:"aggregate_queue_size"`

	// LeaderboardCacheTTLSec sets how long leaderboard reads are served
	// from cache, in seconds.
	LeaderboardCacheTTLSec int `koanf:"leaderboard_cache_ttl_sec"`

	// MaxLeaderboardLimit caps leaderboard page sizes.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DedupeAutoMergeThreshold and DedupeSuggestionThreshold tune the
	// fuzzy matcher, on the 0..100 similarity scale.
	DedupeAutoMergeThreshold  float64 `koanf:"dedupe_auto_merge_threshold"`
	DedupeSuggestionThreshold float64 `koanf:"dedupe_suggestion_threshold"`

	// Provider client settings. An empty base URL disables enrichment.
	ProviderBaseURL string `koanf:"provider_base_url"`
	ProviderToken   string `koanf:"provider_token"`

	// Serializer settings for outbound provider calls.
	SerializerQueueSize        int     `koanf:"serializer_queue_size"`
	SerializerRatePerSec       float64 `koanf:"serializer_rate_per_sec"`
	SerializerBurst            int     `koanf:"serializer_burst"`
	SerializerMaxAttempts      int     `koanf:"serializer_max_attempts"`
	SerializerBackoffInitialMS int     `koanf:"serializer_backoff_initial_ms"`
	SerializerBackoffMaxMS     int     `koanf:"serializer_backoff_max_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		Addr:                       ":9080",
		SolverTolerance:            1e-4,
		SolverMaxIterations:        100,
		RecomputeEvery:             5,
		AggregateCooldownSec:       600,
		AggregateQueueSize:         1024,
		LeaderboardCacheTTLSec:     120,
		MaxLeaderboardLimit:        100,
		DedupeAutoMergeThreshold:   90,
		DedupeSuggestionThreshold:  70,
		SerializerQueueSize:        256,
		SerializerRatePerSec:       5,
		SerializerBurst:            1,
		SerializerMaxAttempts:      3,
		SerializerBackoffInitialMS: 2000,
		SerializerBackoffMaxMS:     30000,
	}
}
