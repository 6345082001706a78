package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"moodsync/internal/logging"
)

const fileLockRetryDelay = 20 * time.Millisecond

// errCorruptDocument marks a store file that no longer parses.
var errCorruptDocument = errors.New("corrupt store document")

// FileStore implements Store as a single JSON document on disk.
//
// Every operation re-reads the document under an advisory lock so several
// processes (CLI invocations, the janitor) can share one file. A document
// that fails to parse is renamed to "<path>.corrupt-<timestamp>" and the
// store starts over empty.
type FileStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	mu     sync.Mutex
	closed atomic.Bool
}

type fileDocument struct {
	Entries map[string][]byte `json:"entries"`
}

// OpenFile prepares a file-backed store at path. The document is created
// lazily on first write.
func OpenFile(path string, opts ...Option) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	o := applyOptions(opts)
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: o.logger,
	}, nil
}

// Path returns the JSON document location.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var value []byte
	err := s.withLock(ctx, false, func(doc *fileDocument) (bool, error) {
		stored, ok := doc.Entries[key]
		if !ok {
			return false, ErrNotFound
		}
		value = append([]byte(nil), stored...)
		return false, nil
	})
	return value, err
}

// Put stores value under key and rewrites the document.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(ctx, true, func(doc *fileDocument) (bool, error) {
		doc.Entries[key] = append([]byte(nil), value...)
		return true, nil
	})
}

// Delete removes key and rewrites the document when it was present.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(ctx, true, func(doc *fileDocument) (bool, error) {
		if _, ok := doc.Entries[key]; !ok {
			return false, nil
		}
		delete(doc.Entries, key)
		return true, nil
	})
}

// Keys lists keys with prefix in ascending order.
func (s *FileStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.withLock(ctx, false, func(doc *fileDocument) (bool, error) {
		for key := range doc.Entries {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		return false, nil
	})
	sort.Strings(keys)
	return keys, err
}

// Entries returns every entry under prefix from a single read of the document.
func (s *FileStore) Entries(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	err := s.withLock(ctx, false, func(doc *fileDocument) (bool, error) {
		entries = entries[:0]
		for key, value := range doc.Entries {
			if strings.HasPrefix(key, prefix) {
				entries = append(entries, Entry{Key: key, Value: append([]byte(nil), value...)})
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// Close releases the advisory lock handle.
func (s *FileStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.lock.Close()
}

func (s *FileStore) withLock(ctx context.Context, exclusive bool, fn func(*fileDocument) (bool, error)) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.underLock(ctx, exclusive, fn)
	if errors.Is(err, errCorruptDocument) && !exclusive {
		// Moving the file aside needs the exclusive lock.
		err = s.underLock(ctx, true, fn)
	}
	return err
}

func (s *FileStore) underLock(ctx context.Context, exclusive bool, fn func(*fileDocument) (bool, error)) error {
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = s.lock.TryLockContext(ctx, fileLockRetryDelay)
	} else {
		locked, err = s.lock.TryRLockContext(ctx, fileLockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.load()
	if errors.Is(err, errCorruptDocument) && exclusive {
		if qErr := s.quarantine(err); qErr != nil {
			return qErr
		}
		doc, err = &fileDocument{Entries: make(map[string][]byte)}, nil
	}
	if err != nil {
		return err
	}
	dirty, err := fn(doc)
	if err != nil || !dirty {
		return err
	}
	return s.save(doc)
}

func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{Entries: make(map[string][]byte)}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errCorruptDocument, s.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string][]byte)
	}
	return doc, nil
}

// quarantine renames an unparseable document out of the way.
func (s *FileStore) quarantine(cause error) error {
	target := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(s.path, target); err != nil {
		return fmt.Errorf("move corrupt store file aside: %w", err)
	}
	logging.WarnWithContext(s.logger, "corrupt store file moved aside", "store_file_quarantined",
		logging.String("path", s.path),
		logging.String("moved_to", target),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "inspect the moved file to recover entries by hand"),
		logging.String(logging.FieldImpact, "duplicate history in the store was reset"),
	)
	return nil
}

// save writes the document atomically via a temp file and rename.
func (s *FileStore) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
