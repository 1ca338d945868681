package repository

import "github.com/clanhall/bingo/pkg/logger"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}
