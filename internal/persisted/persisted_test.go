package persisted

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storages(t *testing.T) map[string]Storage {
	t.Helper()

	memory, err := NewMemoryStorage(100)
	require.NoError(t, err)
	t.Cleanup(memory.Close)

	files, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStorage, err := NewRedisStorage("redis://"+mr.Addr(), "po:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisStorage.Close() })

	return map[string]Storage{KindMemory: memory, KindFS: files, KindRedis: redisStorage}
}

func TestStorages(t *testing.T) {
	ctx := context.Background()
	for kind, s := range storages(t) {
		t.Run(kind, func(t *testing.T) {
			doc, err := s.TryRead(ctx, "abc")
			require.NoError(t, err)
			assert.Nil(t, doc, "absent documents read as nil")

			require.NoError(t, s.Save(ctx, "abc", "{ hello }"))
			doc, err = s.TryRead(ctx, "abc")
			require.NoError(t, err)
			require.Equal(t, &Document{ID: "abc", Source: "{ hello }"}, doc)

			require.ErrorIs(t, s.Save(ctx, "../escape", "{ hello }"), ErrInvalidID)
			require.ErrorIs(t, s.Save(ctx, "", "{ hello }"), ErrInvalidID)
		})
	}
}

func TestMemoryStorageSave(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemoryStorage(10)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Save(ctx, "abc", "{ a }"))
	require.NoError(t, m.Save(ctx, "abc", "{ b }"))
	doc, err := m.TryRead(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "{ b }", doc.Source, "the latest save wins")

	disabled, err := NewMemoryStorage(0)
	require.NoError(t, err)
	require.ErrorIs(t, disabled.Save(ctx, "abc", "{ a }"), ErrNotStored)
}

func TestFileStorageFormats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.graphql"), []byte("{ dog { name } }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrapped.json"), []byte(`{"version":1,"body":"{ cat { name } }"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"version":`), 0o644))

	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	doc, err := s.TryRead(ctx, "plain")
	require.NoError(t, err)
	require.Equal(t, "{ dog { name } }", doc.Source)

	doc, err = s.TryRead(ctx, "wrapped")
	require.NoError(t, err)
	require.Equal(t, "{ cat { name } }", doc.Source)

	_, err = s.TryRead(ctx, "broken")
	require.Error(t, err)

	doc, err = s.TryRead(ctx, "../plain")
	require.NoError(t, err)
	require.Nil(t, doc)

	require.NoError(t, s.Save(ctx, "saved", "{ hello }"))
	content, err := os.ReadFile(filepath.Join(dir, "saved.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1,"body":"{ hello }"}`, string(content))
}

func TestRedisStorageTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStorage("redis://"+mr.Addr(), "po:", time.Minute)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "abc", "{ hello }"))
	require.True(t, mr.Exists("po:abc"))
	require.Equal(t, time.Minute, mr.TTL("po:abc"))

	mr.FastForward(2 * time.Minute)
	doc, err := s.TryRead(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestNew(t *testing.T) {
	s, err := New(Config{CacheSize: 10})
	require.NoError(t, err)
	require.IsType(t, &MemoryStorage{}, s)

	s, err = New(Config{Storage: KindFS, Path: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &FileStorage{}, s)

	_, err = New(Config{Storage: KindRedis, RedisURL: "::not a url"})
	require.Error(t, err)

	_, err = New(Config{Storage: "s3"})
	require.EqualError(t, err, `unknown persisted operation storage "s3"`)
}
