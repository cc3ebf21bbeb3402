package rating

import "github.com/okian/duet/pkg/logger"

// Option applies a configuration option to the MMSolver.
type Option func(*MMSolver)

// WithTolerance sets the convergence tolerance on the maximum relative
// strength change per iteration.
func WithTolerance(tol float64) Option {
	return func(s *MMSolver) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// WithMaxIterations caps the MM iteration count. Hitting the cap is a soft
// non-convergence, not an error.
func WithMaxIterations(n int) Option {
	return func(s *MMSolver) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithLogger sets a custom logger for the solver.
func WithLogger(l logger.Logger) Option {
	return func(s *MMSolver) {
		if l != nil {
			s.logger = l
		}
	}
}
