package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateIdempotency(); err != nil {
		return err
	}
	if err := c.validateJanitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateRetentionDays reports whether days lies within the supported retention bounds.
func ValidateRetentionDays(days int) error {
	if days < MinRetentionDays || days > MaxRetentionDays {
		return fmt.Errorf("idempotency.retention_days must be between %d and %d, got %d", MinRetentionDays, MaxRetentionDays, days)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path must be set when storage.backend is %q", c.Storage.Backend)
		}
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("storage.redis_addr must be set when storage.backend is \"redis\"")
		}
		if c.Storage.RedisDB < 0 {
			return errors.New("storage.redis_db must be >= 0")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want sqlite, file, memory, or redis)", c.Storage.Backend)
	}
	if strings.ContainsAny(c.Storage.Namespace, " *") {
		return errors.New("storage.namespace must not contain spaces or wildcards")
	}
	return nil
}

func (c *Config) validateIdempotency() error {
	if err := ValidateRetentionDays(c.Idempotency.RetentionDays); err != nil {
		return err
	}
	if c.Idempotency.DedupWindowSeconds <= 0 {
		return errors.New("idempotency.dedup_window_seconds must be positive")
	}
	if c.Idempotency.DedupWindowSeconds > MaxDedupWindowSeconds {
		return fmt.Errorf("idempotency.dedup_window_seconds must be <= %d", MaxDedupWindowSeconds)
	}
	if strings.ContainsAny(c.Idempotency.IDPrefix, "_ ") {
		return errors.New("idempotency.id_prefix must not contain underscores or spaces")
	}
	return nil
}

func (c *Config) validateJanitor() error {
	if c.Janitor.IntervalSeconds <= 0 {
		return errors.New("janitor.interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
