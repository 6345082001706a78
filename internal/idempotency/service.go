package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"moodsync/internal/config"
	"moodsync/internal/kvstore"
	"moodsync/internal/logging"
)

const (
	DefaultPrefix        = "mood"
	DefaultNamespace     = "idem."
	DefaultRetentionDays = 7
	DefaultDedupWindow   = 10 * time.Minute
)

// Options configures a Service. Zero values select the defaults above.
type Options struct {
	Prefix        string
	Namespace     string
	RetentionDays int
	DedupWindow   time.Duration
	Clock         func() time.Time
	Hasher        Hasher
	FallbackID    func(prefix string) string
	Logger        *slog.Logger
}

// OptionsFromConfig maps the [storage] and [idempotency] sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Prefix:        cfg.Idempotency.IDPrefix,
		Namespace:     cfg.Storage.Namespace,
		RetentionDays: cfg.Idempotency.RetentionDays,
		DedupWindow:   cfg.DedupWindow(),
	}
}

// Service is the duplicate-prevention engine. It is safe for concurrent use
// when its store is, but a check followed by a mark is not atomic.
type Service struct {
	store      kvstore.Store
	prefix     string
	namespace  string
	window     time.Duration
	retention  atomic.Int64
	now        func() time.Time
	hash       Hasher
	fallbackID func(string) string
	logger     *slog.Logger
}

// New validates opts and returns a Service backed by store.
func New(store kvstore.Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if opts.RetentionDays == 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	if err := validateRetention(opts.RetentionDays); err != nil {
		return nil, err
	}
	if opts.DedupWindow == 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.DedupWindow < 0 {
		return nil, fmt.Errorf("%w: dedup window must be positive", ErrInvalidConfig)
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.ContainsAny(prefix, "_ ") {
		return nil, fmt.Errorf("%w: id prefix %q must not contain underscores or spaces", ErrInvalidConfig, prefix)
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Hasher == nil {
		opts.Hasher = SHA256Hex
	}
	if opts.FallbackID == nil {
		opts.FallbackID = FallbackID
	}

	svc := &Service{
		store:      store,
		prefix:     prefix,
		namespace:  namespace,
		window:     opts.DedupWindow,
		now:        opts.Clock,
		hash:       opts.Hasher,
		fallbackID: opts.FallbackID,
		logger:     logging.NewComponentLogger(opts.Logger, "idempotency"),
	}
	svc.retention.Store(int64(opts.RetentionDays))
	return svc, nil
}

// SetRetentionPeriod changes how many days records are kept.
func (s *Service) SetRetentionPeriod(days int) error {
	if err := validateRetention(days); err != nil {
		return err
	}
	s.retention.Store(int64(days))
	s.logger.Info("retention period updated", logging.Int("retention_days", days))
	return nil
}

// RetentionPeriod returns the retention in days.
func (s *Service) RetentionPeriod() int {
	return int(s.retention.Load())
}

// DedupWindow returns the content-tier window.
func (s *Service) DedupWindow() time.Duration {
	return s.window
}

// Prefix returns the local id prefix.
func (s *Service) Prefix() string {
	return s.prefix
}

// Fingerprint hashes sub with the injected Hasher.
func (s *Service) Fingerprint(sub Submission) (string, error) {
	return fingerprintWith(s.hash, sub, s.now())
}

func validateRetention(days int) error {
	if err := config.ValidateRetentionDays(days); err != nil {
		return fmt.Errorf("%w: got %d", ErrInvalidRetention, days)
	}
	return nil
}

func (s *Service) key(localID string) string {
	return s.namespace + localID
}

// load reads and decodes the record for localID. A missing key returns
// (nil, nil).
func (s *Service) load(ctx context.Context, op, localID string) (*Record, error) {
	key := s.key(localID)
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(ErrStorageRead, op, key, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, wrap(ErrCorruptRecord, op, key, err)
	}
	return rec, nil
}

func (s *Service) save(ctx context.Context, op string, rec *Record) error {
	key := s.key(rec.LocalID)
	data, err := encodeRecord(rec)
	if err != nil {
		return wrap(ErrStorageWrite, op, key, err)
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return wrap(ErrStorageWrite, op, key, err)
	}
	return nil
}
