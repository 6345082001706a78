package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"moodsync/internal/config"
	"moodsync/internal/logging"
)

var (
	// ErrNotFound reports that a key has no stored value.
	ErrNotFound = errors.New("key not found")
	// ErrClosed reports use of a store after Close.
	ErrClosed = errors.New("store closed")
	// ErrInvalidKey reports an empty or malformed key.
	ErrInvalidKey = errors.New("invalid key")
)

// Store is the key-value contract shared by every backend.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put creates or replaces the value for key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns every key beginning with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// ValidateKey checks that a key can be stored by every backend.
func ValidateKey(key string) error {
	if key == "" || len(key) > 1024 {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, " *\n") {
		return ErrInvalidKey
	}
	return nil
}

// Option adjusts backend construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report storage faults a backend
// recovers from on its own.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "kvstore")
	return o
}

// Open constructs the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	if cfg == nil {
		return nil, errors.New("kvstore: config is required")
	}
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Storage.Path)
	case config.BackendFile:
		return OpenFile(cfg.Storage.Path, opts...)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			DB:       cfg.Storage.RedisDB,
			Password: cfg.Storage.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Storage.RedisAddr, err)
		}
		return NewRedisStore(client, "moodsync"), nil
	default:
		return nil, fmt.Errorf("kvstore: unsupported backend %q", cfg.Storage.Backend)
	}
}
