package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcore/internal/language"
)

func TestDocumentsRoundTrip(t *testing.T) {
	c, err := NewDocuments(100)
	require.NoError(t, err)
	defer c.Close()

	doc, err := language.ParseQuery("{ hello }")
	require.NoError(t, err)
	entry := &Document{Document: doc, Hash: "abc"}

	_, ok := c.TryGet("abc")
	require.False(t, ok)

	require.True(t, c.TryAdd("abc", entry))
	got, ok := c.TryGet("abc")
	require.True(t, ok)
	require.Same(t, entry, got)

	require.False(t, c.TryAdd("abc", &Document{Hash: "abc"}), "existing entries are kept")
	got, _ = c.TryGet("abc")
	require.Same(t, entry, got)
}

func TestUnknownKeyHasNoSideEffects(t *testing.T) {
	c, err := New[string](10)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.TryGet("missing")
	require.False(t, ok)
	require.True(t, c.TryAdd("missing", "now present"))
}

func TestDisabledCache(t *testing.T) {
	c, err := New[string](0)
	require.NoError(t, err)
	require.False(t, c.Enabled())
	require.False(t, c.TryAdd("k", "v"))
	_, ok := c.TryGet("k")
	require.False(t, ok)
	c.Clear()
	c.Close()
}

func TestEmptyKeyIsNeverStored(t *testing.T) {
	c, err := New[string](10)
	require.NoError(t, err)
	defer c.Close()
	require.False(t, c.TryAdd("", "v"))
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New[int](1000)
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("k%d", j)
				c.TryAdd(key, j)
				if v, ok := c.TryGet(key); ok {
					require.Equal(t, j, v)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestOperationKey(t *testing.T) {
	require.Equal(t, "pets-1a2b-doc+Op", OperationKey("pets", "1a2b", "doc+Op"))
	require.NotEqual(t, OperationKey("pets", "v1", "doc"), OperationKey("pets", "v2", "doc"))
}

func TestSetReplaces(t *testing.T) {
	c, err := New[string](10)
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.TryAdd("k", "a"))
	require.True(t, c.Set("k", "b"))
	got, ok := c.TryGet("k")
	require.True(t, ok)
	require.Equal(t, "b", got)

	var disabled *Cache[string]
	require.False(t, disabled.Set("k", "a"))
}

func TestCacheHoldsConfiguredSize(t *testing.T) {
	c, err := New[int](100)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 100; i++ {
		require.True(t, c.TryAdd(fmt.Sprintf("k%d", i), i))
	}
	for i := 0; i < 100; i++ {
		got, ok := c.TryGet(fmt.Sprintf("k%d", i))
		require.True(t, ok, "entry %d was evicted", i)
		require.Equal(t, i, got)
	}
}

func TestSetReplacesViaSet(t *testing.T) {
	c, err := New[string](10)
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.Set("k", "a"))
	require.True(t, c.Set("k", "b"))
	got, ok := c.TryGet("k")
	require.True(t, ok)
	require.Equal(t, "b", got)
}
