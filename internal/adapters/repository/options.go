package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *TreapStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithPriority overrides the random treap priority source.
func WithPriority(prio func() uint64) Option {
	return func(s *TreapStore) {
		if prio != nil {
			s.prio = prio
		}
	}
}
