package postgres

import (
	"testing"
	"time"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(); err != ErrMissingDSN {
		t.Fatalf("Open() error = %v, want ErrMissingDSN", err)
	}
}

func TestPoolOptions(t *testing.T) {
	cfg := defaultOptions()
	for _, opt := range []Option{
		WithDSN("postgres://example"),
		WithPoolLimits(32, 8),
		WithConnMaxLifetime(time.Minute),
	} {
		opt(&cfg)
	}
	if cfg.DSN != "postgres://example" {
		t.Fatalf("DSN = %q", cfg.DSN)
	}
	if cfg.MaxOpenConns != 32 || cfg.MaxIdleConns != 8 {
		t.Fatalf("pool limits = %d/%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != time.Minute {
		t.Fatalf("ConnMaxLifetime = %v", cfg.ConnMaxLifetime)
	}

	// Out-of-range values keep the defaults.
	cfg = defaultOptions()
	WithPoolLimits(0, -1)(&cfg)
	WithConnMaxLifetime(0)(&cfg)
	def := defaultOptions()
	if cfg != def {
		t.Fatalf("options changed by no-op values: %+v", cfg)
	}
}
