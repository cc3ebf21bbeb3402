package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DUET_CONFIG is set
//  3. env (prefix DUET_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("DUET_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// DUET_AGGREGATE_COOLDOWN_SEC -> aggregate_cooldown_sec; underscores
	// are preserved to match the koanf tags.
	envProvider := env.Provider("DUET_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "duet_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.RecomputeEvery <= 0 {
		return fmt.Errorf("%w: recompute_every must be positive", ErrInvalidConfig)
	}
	if cfg.SolverMaxIterations <= 0 {
		return fmt.Errorf("%w: solver_max_iterations must be positive", ErrInvalidConfig)
	}
	if cfg.DedupeSuggestionThreshold > cfg.DedupeAutoMergeThreshold {
		return fmt.Errorf("%w: dedupe_suggestion_threshold above auto-merge threshold", ErrInvalidConfig)
	}
	return nil
}
