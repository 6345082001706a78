package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeIdempotency()
	if err := c.normalizeJanitor(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}

	c.Storage.Path = strings.TrimSpace(c.Storage.Path)
	if c.Storage.Backend == BackendFile && (c.Storage.Path == "" || c.Storage.Path == defaultStoragePath) {
		c.Storage.Path = defaultFileStoragePath
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath
	}
	var err error
	if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}

	c.Storage.Namespace = strings.TrimSpace(c.Storage.Namespace)
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = defaultStorageNamespace
	}
	c.Storage.RedisAddr = strings.TrimSpace(c.Storage.RedisAddr)
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = defaultRedisAddr
	}
	return nil
}

func (c *Config) normalizeIdempotency() {
	c.Idempotency.IDPrefix = strings.TrimSpace(c.Idempotency.IDPrefix)
	if c.Idempotency.IDPrefix == "" {
		c.Idempotency.IDPrefix = defaultIDPrefix
	}
}

func (c *Config) normalizeJanitor() error {
	c.Janitor.LockPath = strings.TrimSpace(c.Janitor.LockPath)
	if c.Janitor.LockPath == "" {
		c.Janitor.LockPath = defaultJanitorLockPath
	}
	var err error
	if c.Janitor.LockPath, err = expandPath(c.Janitor.LockPath); err != nil {
		return fmt.Errorf("janitor.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Dir = strings.TrimSpace(c.Logging.Dir)
	if c.Logging.Dir == "" {
		return nil
	}
	var err error
	if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
