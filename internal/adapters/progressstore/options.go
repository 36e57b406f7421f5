package progressstore

import "time"

// Option applies a configuration option to the RedisStore.
type Option func(*RedisStore)

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets the expiry applied on every write. Match it to the channel
// idle timeout.
func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithWatchRetries bounds optimistic lock retries per update.
func WithWatchRetries(n int) Option {
	return func(s *RedisStore) {
		if n > 0 {
			s.watchRetries = n
		}
	}
}
