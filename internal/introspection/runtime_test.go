package introspection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcore/internal/executor"
	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/schema/schematest"
	"github.com/hanpama/graphcore/internal/variables"
)

// noopRuntime implements executor.Runtime with no behaviour.
type noopRuntime struct{}

func (noopRuntime) ResolveSync(context.Context, string, string, any, map[string]any) (any, error) {
	return "hi", nil
}

func (noopRuntime) BatchResolveAsync(context.Context, []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return nil
}

func (noopRuntime) ResolveType(context.Context, string, any) (string, error) {
	return "", nil
}

func (noopRuntime) SerializeLeafValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

func run(t *testing.T, s *schema.Schema, query string) *executor.Result {
	t.Helper()
	s = WithTypes(s)
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	p, err := operation.Compile(s, doc, "doc", "")
	require.NoError(t, err)
	vars, err := variables.Coerce(s, p.Definition.VariableDefinitions, nil)
	require.NoError(t, err)
	res := executor.New(Wrap(noopRuntime{}, s), s).Execute(context.Background(), p, vars, nil)
	require.Empty(t, res.Errors)
	return res
}

func TestSchemaField(t *testing.T) {
	res := run(t, schematest.Pets(), `{
		__schema {
			queryType { name kind }
			mutationType { name }
			subscriptionType { name }
		}
		hello
	}`)

	want := map[string]any{
		"__schema": map[string]any{
			"queryType":        map[string]any{"name": "Query", "kind": "OBJECT"},
			"mutationType":     map[string]any{"name": "Mutation"},
			"subscriptionType": map[string]any{"name": "Subscription"},
		},
		"hello": "hi",
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeField(t *testing.T) {
	res := run(t, schematest.Pets(), `{
		dog: __type(name: "Dog") {
			kind
			interfaces { name }
			fields {
				name
				type { kind name ofType { name } }
				args { name defaultValue }
			}
		}
		pet: __type(name: "Pet") { possibleTypes { name } }
		missing: __type(name: "Nope") { name }
	}`)

	dog := res.Data["dog"].(map[string]any)
	require.Equal(t, "OBJECT", dog["kind"])
	require.Equal(t, []any{map[string]any{"name": "Being"}, map[string]any{"name": "Pet"}}, dog["interfaces"])

	fields := dog["fields"].([]any)
	require.Len(t, fields, 8)
	require.Equal(t, map[string]any{
		"name": "isHouseTrained",
		"type": map[string]any{"kind": "SCALAR", "name": "Boolean", "ofType": nil},
		"args": []any{map[string]any{"name": "atOtherHomes", "defaultValue": "true"}},
	}, fields[5])

	require.Equal(t, map[string]any{
		"possibleTypes": []any{map[string]any{"name": "Cat"}, map[string]any{"name": "Dog"}},
	}, res.Data["pet"])
	require.Nil(t, res.Data["missing"])
}

func TestWrappedTypeRefs(t *testing.T) {
	res := run(t, schematest.Pets(), `{
		__type(name: "Human") { fields { name type { kind name ofType { kind name ofType { kind name } } } } }
	}`)

	fields := res.Data["__type"].(map[string]any)["fields"].([]any)
	relatives := fields[2].(map[string]any)
	require.Equal(t, "relatives", relatives["name"])
	require.Equal(t, map[string]any{
		"kind": "LIST",
		"name": nil,
		"ofType": map[string]any{
			"kind":   "NON_NULL",
			"name":   nil,
			"ofType": map[string]any{"kind": "OBJECT", "name": "Human"},
		},
	}, relatives["type"])
}

func TestWithTypes(t *testing.T) {
	built := schema.NewSchema("manual").SetQueryType("Query")
	built.AddType(schema.NewType("Query", schema.TypeKindObject, "").
		AddField(schema.NewField("hello", "", schema.NamedType("String"))))

	extended := WithTypes(built)
	require.NotSame(t, built, extended)
	require.Nil(t, built.ResolveNamedType("__Schema"), "the original schema is not modified")
	require.NotNil(t, extended.ResolveNamedType("__Type"))

	sdl := schematest.Pets()
	require.Same(t, sdl, WithTypes(sdl))

	res := run(t, built, `{ __typename __schema { queryType { name } } }`)
	require.Equal(t, "Query", res.Data["__typename"])
}
