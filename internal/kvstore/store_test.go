package kvstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodsync/internal/config"
	"moodsync/internal/kvstore"
)

type backendFactory func(t *testing.T) kvstore.Store

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(t *testing.T) kvstore.Store {
			return kvstore.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) kvstore.Store {
			store, err := kvstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			return store
		},
		"file": func(t *testing.T) kvstore.Store {
			store, err := kvstore.OpenFile(filepath.Join(t.TempDir(), "kv.json"))
			require.NoError(t, err)
			return store
		},
		"redis": func(t *testing.T) kvstore.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return kvstore.NewRedisStore(client, "test")
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			t.Cleanup(func() { _ = store.Close() })

			_, err := store.Get(ctx, "idem.missing")
			assert.ErrorIs(t, err, kvstore.ErrNotFound)

			require.NoError(t, store.Put(ctx, "idem.b", []byte(`{"n":2}`)))
			require.NoError(t, store.Put(ctx, "idem.a", []byte(`{"n":1}`)))
			require.NoError(t, store.Put(ctx, "other.c", []byte("raw")))

			value, err := store.Get(ctx, "idem.a")
			require.NoError(t, err)
			assert.Equal(t, `{"n":1}`, string(value))

			require.NoError(t, store.Put(ctx, "idem.a", []byte(`{"n":3}`)))
			value, err = store.Get(ctx, "idem.a")
			require.NoError(t, err)
			assert.Equal(t, `{"n":3}`, string(value))

			keys, err := store.Keys(ctx, "idem.")
			require.NoError(t, err)
			assert.Equal(t, []string{"idem.a", "idem.b"}, keys)

			all, err := store.Keys(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			require.NoError(t, store.Delete(ctx, "idem.a"))
			require.NoError(t, store.Delete(ctx, "idem.a"))
			_, err = store.Get(ctx, "idem.a")
			assert.ErrorIs(t, err, kvstore.ErrNotFound)

			keys, err = store.Keys(ctx, "idem.")
			require.NoError(t, err)
			assert.Equal(t, []string{"idem.b"}, keys)

			require.NoError(t, store.Put(ctx, "idem.c", []byte(`{"n":4}`)))
			entries, err := kvstore.ReadAll(ctx, store, "idem.")
			require.NoError(t, err)
			assert.Equal(t, []kvstore.Entry{
				{Key: "idem.b", Value: []byte(`{"n":2}`)},
				{Key: "idem.c", Value: []byte(`{"n":4}`)},
			}, entries)
		})
	}
}

// keysOnly hides a backend's bulk read so ReadAll takes the Keys+Get path.
type keysOnly struct {
	kvstore.Store
}

func TestReadAllFallsBackToKeysAndGet(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "idem.b", []byte("2")))
	require.NoError(t, mem.Put(ctx, "idem.a", []byte("1")))
	require.NoError(t, mem.Put(ctx, "other.x", []byte("x")))

	entries, err := kvstore.ReadAll(ctx, keysOnly{mem}, "idem.")
	require.NoError(t, err)
	assert.Equal(t, []kvstore.Entry{
		{Key: "idem.a", Value: []byte("1")},
		{Key: "idem.b", Value: []byte("2")},
	}, entries)

	require.NoError(t, mem.Close())
	_, err = kvstore.ReadAll(ctx, keysOnly{mem}, "idem.")
	assert.ErrorIs(t, err, kvstore.ErrClosed)
}

func TestSQLiteEntriesTreatPatternCharactersLiterally(t *testing.T) {
	ctx := context.Background()
	store, err := kvstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put(ctx, "a_b.1", []byte("1")))
	require.NoError(t, store.Put(ctx, "axb.2", []byte("2")))
	require.NoError(t, store.Put(ctx, "A_B.3", []byte("3")))

	entries, err := store.Entries(ctx, "a_b")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a_b.1", entries[0].Key)
}

func TestFileStoreMovesCorruptDocumentAside(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entries": {"idem.a": `), 0o644))

	store, err := kvstore.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Get(ctx, "idem.a")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	moved, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	data, err := os.ReadFile(moved[0])
	require.NoError(t, err)
	assert.Equal(t, `{"entries": {"idem.a": `, string(data))

	require.NoError(t, store.Put(ctx, "idem.b", []byte("fresh")))
	entries, err := store.Entries(ctx, "idem.")
	require.NoError(t, err)
	assert.Equal(t, []kvstore.Entry{{Key: "idem.b", Value: []byte("fresh")}}, entries)
}

func TestFileStoreRecoversOnWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	store, err := kvstore.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put(ctx, "idem.a", []byte("1")))
	value, err := store.Get(ctx, "idem.a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(value))

	moved, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, moved, 1)
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			t.Cleanup(func() { _ = store.Close() })

			assert.ErrorIs(t, store.Put(ctx, "", []byte("x")), kvstore.ErrInvalidKey)
			_, err := store.Get(ctx, "has space")
			assert.ErrorIs(t, err, kvstore.ErrInvalidKey)
		})
	}
}

func TestStoreKeysTreatsPatternCharactersLiterally(t *testing.T) {
	for _, name := range []string{"sqlite", "redis"} {
		factory := backends()[name]
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			t.Cleanup(func() { _ = store.Close() })

			require.NoError(t, store.Put(ctx, "a_b.1", []byte("1")))
			require.NoError(t, store.Put(ctx, "axb.2", []byte("2")))
			require.NoError(t, store.Put(ctx, "a%b.3", []byte("3")))

			keys, err := store.Keys(ctx, "a_b")
			require.NoError(t, err)
			assert.Equal(t, []string{"a_b.1"}, keys)

			keys, err = store.Keys(ctx, "a%")
			require.NoError(t, err)
			assert.Equal(t, []string{"a%b.3"}, keys)
		})
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", value))
	value[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Put(ctx, "k", []byte("v")), kvstore.ErrClosed)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, kvstore.ErrClosed)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	store, err := kvstore.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "idem.x", []byte("payload")))
	require.NoError(t, store.Close())

	reopened, err := kvstore.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	value, err := reopened.Get(ctx, "idem.x")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(value))
	assert.Equal(t, path, reopened.Path())
}

func TestFileStoreSharesDocumentBetweenHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.json")

	first, err := kvstore.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	second, err := kvstore.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	require.NoError(t, first.Put(ctx, "idem.shared", []byte("one")))
	value, err := second.Get(ctx, "idem.shared")
	require.NoError(t, err)
	assert.Equal(t, "one", string(value))

	require.NoError(t, second.Delete(ctx, "idem.shared"))
	_, err = first.Get(ctx, "idem.shared")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kvstore.NewRedisStore(client, "app")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put(ctx, "idem.k", []byte("v")))
	assert.True(t, mr.Exists("app:idem.k"))

	require.NoError(t, mr.Set("elsewhere:idem.z", "ignored"))
	keys, err := store.Keys(ctx, "idem.")
	require.NoError(t, err)
	assert.Equal(t, []string{"idem.k"}, keys)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	store, err := kvstore.Open(ctx, &cfg)
	require.NoError(t, err)
	assert.IsType(t, &kvstore.MemoryStore{}, store)
	_ = store.Close()

	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.Path = filepath.Join(dir, "kv.json")
	store, err = kvstore.Open(ctx, &cfg)
	require.NoError(t, err)
	assert.IsType(t, &kvstore.FileStore{}, store)
	_ = store.Close()

	mr := miniredis.RunT(t)
	cfg.Storage.Backend = config.BackendRedis
	cfg.Storage.RedisAddr = mr.Addr()
	store, err = kvstore.Open(ctx, &cfg)
	require.NoError(t, err)
	assert.IsType(t, &kvstore.RedisStore{}, store)
	_ = store.Close()

	cfg.Storage.Backend = "bogus"
	_, err = kvstore.Open(ctx, &cfg)
	assert.Error(t, err)

	_, err = kvstore.Open(ctx, nil)
	assert.Error(t, err)
}
