package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/variables"
)

// buildSchema loads sdl and marks the "Type.field" coordinates in async as
// async fields.
func buildSchema(t *testing.T, sdl string, async ...string) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL("test", sdl)
	require.NoError(t, err)
	for _, coordinate := range async {
		typeName, fieldName, _ := strings.Cut(coordinate, ".")
		f := s.ResolveNamedType(typeName).Field(fieldName)
		require.NotNil(t, f, coordinate)
		f.SetAsync(true)
	}
	return s
}

func prepare(t *testing.T, s *schema.Schema, query string, raw map[string]any) (*operation.Prepared, variables.Values) {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	p, err := operation.Compile(s, doc, "doc", "")
	require.NoError(t, err)
	vars, err := variables.Coerce(s, p.Definition.VariableDefinitions, raw)
	require.NoError(t, err)
	return p, vars
}

func execute(t *testing.T, rt Runtime, s *schema.Schema, query string, raw map[string]any) *Result {
	t.Helper()
	p, vars := prepare(t, s, query, raw)
	return New(rt, s).Execute(context.Background(), p, vars, nil)
}

// prop resolves a key of a map source.
func prop(key string) MockResolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		return source.(map[string]any)[key], nil
	}
}

type errorView struct {
	Message string
	Path    string
}

func errorViews(list gqlerror.List) []errorView {
	out := make([]errorView, len(list))
	for i, err := range list {
		out[i] = errorView{Message: err.Message, Path: err.Path.String()}
	}
	return out
}
