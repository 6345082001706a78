package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Entry is one stored key and its value.
type Entry struct {
	Key   string
	Value []byte
}

// Scanner is implemented by backends that can read a key range in one pass.
type Scanner interface {
	// Entries returns every entry whose key begins with prefix, in ascending
	// key order. Values are copies the caller may keep.
	Entries(ctx context.Context, prefix string) ([]Entry, error)
}

var (
	_ Scanner = (*MemoryStore)(nil)
	_ Scanner = (*SQLiteStore)(nil)
	_ Scanner = (*FileStore)(nil)
	_ Scanner = (*RedisStore)(nil)
)

// ReadAll returns every entry under prefix in ascending key order. Backends
// without a bulk read fall back to Keys plus one Get per key, skipping keys
// deleted in between.
func ReadAll(ctx context.Context, store Store, prefix string) ([]Entry, error) {
	if scanner, ok := store.(Scanner); ok {
		return scanner.Entries(ctx, prefix)
	}
	keys, err := store.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, err := store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}
