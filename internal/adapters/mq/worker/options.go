package worker

import "github.com/clanhall/bingo/pkg/logger"

// Option applies a configuration option to the ShardWorker.
type Option func(*ShardWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *ShardWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *ShardWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
