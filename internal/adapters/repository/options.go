package repository

import (
	"time"

	"github.com/okian/jobfit/pkg/logger"
)

// Option applies a configuration option to the FSStore.
type Option func(*FSStore)

// WithCacheSize bounds the number of decoded versions kept in memory.
// 0 disables caching.
func WithCacheSize(n int) Option {
	return func(s *FSStore) {
		if n >= 0 {
			s.cacheSize = n
		}
	}
}

// WithRetention keeps at most n versions on disk after each publish.
// n <= 0 keeps every version. The active version is never removed.
func WithRetention(n int) Option {
	return func(s *FSStore) {
		s.retention = n
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *FSStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FSStore) {
		if l != nil {
			s.log = l
		}
	}
}
