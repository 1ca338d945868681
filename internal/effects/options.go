package effects

import (
	"time"

	"github.com/clanhall/bingo/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
