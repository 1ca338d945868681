package engine

import "github.com/clanhall/bingo/pkg/logger"

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithRetryLimit sets how many version conflicts a tile update absorbs
// before giving up.
func WithRetryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.retryLimit = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}
