package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const staticSDL = `
	type Query { viewer: User search: [Node] count: Int }
	interface Node { id: ID! }
	type User implements Node { id: ID! name: String }
	type Post implements Node { id: ID! title: String }
	type Subscription { ticks: Int }
`

const staticData = `{
	"Query": {
		"viewer": {"id": "u1", "name": "Ada"},
		"search": [
			{"__typename": "User", "id": "u1", "name": "Ada"},
			{"__typename": "Post", "id": "p1", "title": "Hello"}
		],
		"count": 3
	},
	"Subscription": {"ticks": [1, 2]}
}`

func loadStatic(t *testing.T) *StaticRuntime {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(staticData), 0o600))
	rt, err := LoadStaticRuntime(path)
	require.NoError(t, err)
	return rt
}

func TestStaticRuntime(t *testing.T) {
	s := buildSchema(t, staticSDL, "Query.search")
	rt := loadStatic(t)

	res := execute(t, rt, s, `{
		count
		viewer { name }
		search { id ... on User { name } ... on Post { title } }
	}`, nil)
	require.Empty(t, res.Errors)
	want := map[string]any{
		"count":  int64(3),
		"viewer": map[string]any{"name": "Ada"},
		"search": []any{
			map[string]any{"id": "u1", "name": "Ada"},
			map[string]any{"id": "p1", "title": "Hello"},
		},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestStaticRuntimeSubscription(t *testing.T) {
	s := buildSchema(t, staticSDL)
	rt := loadStatic(t)
	p, vars := prepare(t, s, `subscription { ticks }`, nil)

	stream, err := New(rt, s).Subscribe(context.Background(), p, vars)
	require.NoError(t, err)
	var got []any
	for res := range stream {
		require.Empty(t, res.Errors)
		got = append(got, res.Data["ticks"])
	}
	require.Equal(t, []any{int64(1), int64(2)}, got)
}

func TestStaticRuntimeRejectsFractionalInt(t *testing.T) {
	_, err := NewStaticRuntime(nil).SerializeLeafValue(context.Background(), "Int", 1.5)
	require.Error(t, err)
}
