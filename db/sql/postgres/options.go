package postgres

import "time"

// Options tunes the connection and its pool. The defaults suit a single
// taskdo instance in front of a small Postgres: the request path touches
// at most two tables per call and the reminder sweep runs read-only.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Option func(*Options)

// WithDSN sets the lib/pq connection string.
func WithDSN(dsn string) Option {
	return func(o *Options) {
		if dsn != "" {
			o.DSN = dsn
		}
	}
}

// WithPoolLimits caps open and idle connections. Non-positive open and
// negative idle values keep the defaults.
func WithPoolLimits(open, idle int) Option {
	return func(o *Options) {
		if open > 0 {
			o.MaxOpenConns = open
		}
		if idle >= 0 {
			o.MaxIdleConns = idle
		}
	}
}

// WithConnMaxLifetime bounds how long a pooled connection is reused
// before being replaced.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnMaxLifetime = d
		}
	}
}

func defaultOptions() Options {
	return Options{
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 15 * time.Minute,
	}
}
