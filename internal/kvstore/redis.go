package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 256

// RedisStore implements Store on a Redis keyspace. Every key is stored as
// "<prefix>:<key>" so several applications can share a database.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client. An empty prefix defaults to "moodsync".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "moodsync"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	value, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key without expiry; retention is enforced by the
// idempotency garbage collector, not by Redis TTLs.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Keys scans the namespace for keys with prefix.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.redisKey(escapeGlob(prefix)) + "*"
	prefixLen := len(s.prefix) + 1

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, redisScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, key := range batch {
			if len(key) > prefixLen {
				keys = append(keys, key[prefixLen:])
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	return dedupeSorted(keys), nil
}

// Entries scans the namespace and fetches values with MGET in batches.
// Keys removed between the scan and the fetch are skipped.
func (s *RedisStore) Entries(ctx context.Context, prefix string) ([]Entry, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(keys))
	for start := 0; start < len(keys); start += redisScanCount {
		batch := keys[start:min(start+redisScanCount, len(keys))]
		redisKeys := make([]string, len(batch))
		for i, key := range batch {
			redisKeys[i] = s.redisKey(key)
		}
		values, err := s.client.MGet(ctx, redisKeys...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget: %w", err)
		}
		for i, value := range values {
			str, ok := value.(string)
			if !ok {
				continue
			}
			entries = append(entries, Entry{Key: batch[i], Value: []byte(str)})
		}
	}
	return entries, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func escapeGlob(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(value)
}

// dedupeSorted drops repeats SCAN may return across iterations.
func dedupeSorted(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	out := keys[:1]
	for _, key := range keys[1:] {
		if key != out[len(out)-1] {
			out = append(out, key)
		}
	}
	return out
}
