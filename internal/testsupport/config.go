package testsupport

import (
	"path/filepath"
	"testing"

	"moodsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage defaults to the in-memory backend.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Storage.Backend = config.BackendMemory
	cfgVal.Storage.Path = filepath.Join(base, "data", "idempotency.db")
	cfgVal.Janitor.LockPath = filepath.Join(base, "data", "janitor.lock")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBackend selects the storage backend. File backends get a JSON path
// inside the test directory.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = backend
		switch backend {
		case config.BackendFile:
			b.cfg.Storage.Path = filepath.Join(b.baseDir, "data", "idempotency.json")
		case config.BackendSQLite:
			b.cfg.Storage.Path = filepath.Join(b.baseDir, "data", "idempotency.db")
		}
	}
}

// WithRedis points the redis backend at addr.
func WithRedis(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = config.BackendRedis
		b.cfg.Storage.RedisAddr = addr
	}
}

// WithRetentionDays overrides idempotency.retention_days.
func WithRetentionDays(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Idempotency.RetentionDays = days
	}
}

// WithDedupWindowSeconds overrides idempotency.dedup_window_seconds.
func WithDedupWindowSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Idempotency.DedupWindowSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Logging.Dir)
}
