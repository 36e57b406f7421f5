package repository

import "time"

// Option applies a configuration option to the PostgresMentorStore.
type Option func(*postgresConfig)

type postgresConfig struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	migrate         bool
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(c *postgresConfig) {
		if n > 0 {
			c.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns sets the idle connection count.
func WithMaxIdleConns(n int) Option {
	return func(c *postgresConfig) {
		if n > 0 {
			c.maxIdleConns = n
		}
	}
}

// WithConnMaxLifetime recycles connections older than d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *postgresConfig) {
		if d > 0 {
			c.connMaxLifetime = d
		}
	}
}

// WithMigrations runs embedded goose migrations on open.
func WithMigrations(enabled bool) Option {
	return func(c *postgresConfig) {
		c.migrate = enabled
	}
}
