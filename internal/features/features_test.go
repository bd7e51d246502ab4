package features

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStoreParentFallback(t *testing.T) {
	name := NewKey[string]("name")
	parent := New()
	Set(parent, name, "global")

	child := New(WithParent(parent))
	v, err := Get(child, name)
	require.NoError(t, err)
	require.Equal(t, "global", v)

	Set(child, name, "local")
	require.Equal(t, "local", GetOr(child, name, ""))
	require.Equal(t, "global", GetOr(parent, name, ""), "child writes must not reach the parent")

	Delete(child, name)
	require.Equal(t, "global", GetOr(child, name, ""))
}

func TestStoreGetMissing(t *testing.T) {
	count := NewKey[int]("count")
	s := New()

	_, err := Get(s, count)
	var missing *MissingFeatureError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "count", missing.Key)

	_, ok := TryGet(s, count)
	require.False(t, ok)
	require.Equal(t, 7, GetOr(s, count, 7))

	Set(s, count, 0)
	v, err := Get(s, count)
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestStoreSetNilRemoves(t *testing.T) {
	type payload struct{ n int }
	key := NewKey[*payload]("payload")
	s := New()

	Set(s, key, &payload{n: 1})
	require.False(t, s.IsEmpty())

	Set(s, key, nil)
	_, ok := TryGet(s, key)
	require.False(t, ok)
	require.True(t, s.IsEmpty())
}

func TestStoreRevisionAndIsEmpty(t *testing.T) {
	key := NewKey[bool]("flag")
	parent := New()
	child := New(WithParent(parent))
	require.True(t, child.IsEmpty())
	require.EqualValues(t, 0, child.Revision())

	Set(parent, key, true)
	require.False(t, child.IsEmpty())
	require.EqualValues(t, 1, child.Revision())

	Set(child, key, false)
	Set(child, key, true)
	require.EqualValues(t, 3, child.Revision())
	require.EqualValues(t, 1, parent.Revision())

	Delete(child, NewKey[bool]("absent"))
	require.EqualValues(t, 3, child.Revision(), "removing an absent key is not a mutation")
}

func TestStoreOnSetRunsAfterCommit(t *testing.T) {
	key := NewKey[string]("mirror")
	mirror := map[string]any{}
	var s *Store
	s = New(WithOnSet(func(name string, value any) {
		got, _ := TryGet(s, key)
		if value == nil {
			delete(mirror, name)
			require.Empty(t, got)
			return
		}
		require.Equal(t, value, got)
		mirror[name] = value
	}))

	Set(s, key, "a")
	Set(s, key, "b")
	if diff := cmp.Diff(map[string]any{"mirror": "b"}, mirror); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}
	Delete(s, key)
	require.Empty(t, mirror)
}

func TestKeysAreDistinctByIdentity(t *testing.T) {
	a := NewKey[int]("same")
	b := NewKey[int]("same")
	s := New()
	Set(s, a, 1)
	_, ok := TryGet(s, b)
	require.False(t, ok)
}

func TestStoreEachLocalShadowsParent(t *testing.T) {
	name := NewKey[string]("name")
	flag := NewKey[bool]("flag")
	parent := New()
	Set(parent, name, "global")
	Set(parent, flag, true)
	child := New(WithParent(parent))
	Set(child, name, "local")

	seen := map[string]any{}
	child.Each(func(k string, v any) { seen[k] = v })
	if diff := cmp.Diff(map[string]any{"name": "local", "flag": true}, seen); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}
