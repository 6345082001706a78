package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"moodsync/internal/config"
	"moodsync/internal/idempotency"
	"moodsync/internal/kvstore"
	"moodsync/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	logCloser  io.Closer
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// loggerFor builds the logger once; failures fall back to a no-op logger so
// output commands keep working when the log directory is unwritable.
func (c *commandContext) loggerFor(cmd *cobra.Command) *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, closer, err := logging.NewFromConfig(cfg)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "logging disabled: %v\n", err)
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
		c.logCloser = closer
	})
	return c.logger
}

func (c *commandContext) closeLogger() {
	if c.logCloser == nil {
		return
	}
	_ = c.logCloser.Close()
	c.logCloser = nil
}

// withService opens the configured store, wraps it in an idempotency service
// and closes the store and log files once fn returns. Each invocation gets a
// fresh correlation id on the command context.
func (c *commandContext) withService(cmd *cobra.Command, fn func(*idempotency.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	cmd.SetContext(logging.WithRequestID(commandCtx(cmd), uuid.NewString()))
	logger := c.loggerFor(cmd)
	defer c.closeLogger()
	store, err := kvstore.Open(commandCtx(cmd), cfg, kvstore.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	defer store.Close()

	opts := idempotency.OptionsFromConfig(cfg)
	opts.Logger = logger
	svc, err := idempotency.New(store, opts)
	if err != nil {
		return err
	}
	return fn(svc)
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
