package dedupe

import "github.com/okian/duet/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAutoMergeThreshold sets the similarity ratio above which pairs merge
// automatically.
func WithAutoMergeThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 100 {
			e.autoMergeThreshold = t
		}
	}
}

// WithSuggestionThreshold sets the similarity ratio at which pairs are
// flagged for review.
func WithSuggestionThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 100 {
			e.suggestionThreshold = t
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
