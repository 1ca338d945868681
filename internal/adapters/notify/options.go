package notify

import "github.com/clanhall/bingo/pkg/logger"

// Option applies a configuration option to the LogSink.
type Option func(*LogSink)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *LogSink) {
		if l != nil {
			s.logger = l
		}
	}
}
