package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"moodsync/internal/config"
	"moodsync/internal/logging"
)

// Cleaner prunes expired records and reports how many were removed.
type Cleaner interface {
	CleanupOldEntries(ctx context.Context) (int, error)
}

// Result summarizes one sweep.
type Result struct {
	RecordsDeleted int       `json:"records_deleted"`
	LogsDeleted    int       `json:"logs_deleted"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Janitor periodically sweeps an idempotency store and enforces single-instance execution.
type Janitor struct {
	cfg      *config.Config
	cleaner  Cleaner
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	last    Result
}

// New constructs a janitor for cleaner using cfg's janitor and logging sections.
func New(cfg *config.Config, cleaner Cleaner, logger *slog.Logger) (*Janitor, error) {
	if cfg == nil || cleaner == nil {
		return nil, errors.New("janitor requires config and cleaner")
	}
	if cfg.Janitor.LockPath == "" {
		return nil, errors.New("janitor.lock_path is required")
	}
	interval := cfg.JanitorInterval()
	if interval <= 0 {
		return nil, fmt.Errorf("janitor interval must be positive, got %s", interval)
	}
	return &Janitor{
		cfg:      cfg,
		cleaner:  cleaner,
		logger:   logging.NewComponentLogger(logger, "janitor"),
		interval: interval,
		now:      time.Now,
		lockPath: cfg.Janitor.LockPath,
		lock:     flock.New(cfg.Janitor.LockPath),
	}, nil
}

// SetInterval overrides the sweep interval before Start.
func (j *Janitor) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("janitor interval must be positive, got %s", interval)
	}
	if j.running.Load() {
		return errors.New("janitor already running")
	}
	j.interval = interval
	return nil
}

// Start acquires the lock, runs an immediate sweep and keeps sweeping on the
// interval until Stop or ctx cancellation.
func (j *Janitor) Start(ctx context.Context) error {
	if j.running.Load() {
		return errors.New("janitor already running")
	}

	if err := os.MkdirAll(filepath.Dir(j.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := j.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another janitor holds %s", j.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running.Store(true)
	j.logger.Info("janitor started",
		logging.String("lock", j.lockPath),
		logging.Duration("interval", j.interval),
	)

	go j.loop(runCtx, j.done)
	return nil
}

// Stop halts the sweep loop and releases the lock.
func (j *Janitor) Stop() {
	if !j.running.Load() {
		return
	}
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	<-j.done
	if err := j.lock.Unlock(); err != nil {
		logging.WarnWithContext(j.logger, "failed to release janitor lock", "janitor_unlock_failed",
			logging.String("lock", j.lockPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no janitor is running"),
		)
	}
	j.running.Store(false)
	j.logger.Info("janitor stopped")
}

// Run starts the janitor and blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	if err := j.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	j.Stop()
	return nil
}

// Running reports whether the sweep loop is active.
func (j *Janitor) Running() bool {
	return j.running.Load()
}

// LastResult returns the outcome of the most recent sweep.
func (j *Janitor) LastResult() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

func (j *Janitor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			logging.ErrorWithContext(j.logger, "retention sweep failed", "janitor_sweep_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check storage availability"),
				logging.String(logging.FieldImpact, "expired idempotency records kept until the next sweep"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one retention pass. Log pruning still runs when record cleanup
// fails.
func (j *Janitor) Sweep(ctx context.Context) (Result, error) {
	deleted, err := j.cleaner.CleanupOldEntries(ctx)

	now := j.now()
	logs := 0
	if dir := j.cfg.Logging.Dir; dir != "" {
		logs = logging.CleanupOldLogs(j.logger, now, j.cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     dir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(dir, logging.LogFileName)},
		})
	}

	result := Result{RecordsDeleted: deleted, LogsDeleted: logs, FinishedAt: now}
	j.mu.Lock()
	j.last = result
	j.mu.Unlock()

	if err != nil {
		return result, fmt.Errorf("cleanup records: %w", err)
	}
	j.logger.Debug("retention sweep complete",
		logging.Int("records_deleted", deleted),
		logging.Int("logs_deleted", logs),
	)
	return result, nil
}
