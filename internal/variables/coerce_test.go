package variables

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema/schematest"
)

var pets = schematest.Pets()

func definitions(t *testing.T, src string) ast.VariableDefinitionList {
	t.Helper()
	doc, err := language.ParseQuery(src)
	require.NoError(t, err)
	return doc.Operations[0].VariableDefinitions
}

func TestCoerce(t *testing.T) {
	defs := definitions(t, `query Q($id: ID!, $first: Int = 5, $filter: PetFilter, $names: [String!], $color: FurColor) { hello }`)

	got, err := Coerce(pets, defs, map[string]any{
		"id":     float64(12),
		"filter": map[string]any{"name": "rex", "color": "BROWN"},
		"names":  "solo",
		"color":  nil,
	})
	require.NoError(t, err)

	want := Values{
		"id":     "12",
		"first":  5,
		"filter": map[string]any{"name": "rex", "color": "BROWN", "limit": 10},
		"names":  []any{"solo"},
		"color":  nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coerced values mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerceMatchesNamesExactly(t *testing.T) {
	defs := definitions(t, `query Q($id: ID!, $first: Int) { hello }`)

	_, err := Coerce(pets, defs, map[string]any{"$id": "1"})
	var coercion *CoercionError
	require.True(t, errors.As(err, &coercion))
	require.Equal(t, `Variable "$id" of required type "ID!" was not provided.`, coercion.Errors[0].Message)

	got, err := Coerce(pets, defs, map[string]any{"id": "1", "$first": 3})
	require.NoError(t, err)
	require.Equal(t, Values{"id": "1"}, got)
}

func TestCoerceErrorsPointAtDefinition(t *testing.T) {
	defs := definitions(t, "query Q(\n  $id: ID!,\n  $first: Int\n) { hello }")

	_, err := Coerce(pets, defs, map[string]any{"first": 1.5})
	var coercion *CoercionError
	require.True(t, errors.As(err, &coercion))
	require.Len(t, coercion.Errors, 2)

	require.Equal(t, `Variable "$id" of required type "ID!" was not provided.`, coercion.Errors[0].Message)
	require.Equal(t, 2, coercion.Errors[0].Locations[0].Line)
	require.Equal(t, CodeCoercionFailed, coercion.Errors[0].Extensions["code"])

	require.Contains(t, coercion.Errors[1].Message, `Variable "$first" got invalid value 1.5; Int cannot represent non-integer value`)
	require.Equal(t, 3, coercion.Errors[1].Locations[0].Line)
}

func TestCoerceRejectsInvalidInput(t *testing.T) {
	defs := definitions(t, `query Q($filter: PetFilter, $n: Int, $color: FurColor, $flag: Boolean!) { hello }`)
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"unknown input field", map[string]any{"flag": true, "filter": map[string]any{"age": 3}}, `Field "age" is not defined by type "PetFilter".`},
		{"int out of range", map[string]any{"flag": true, "n": float64(1 << 40)}, "non 32-bit signed integer"},
		{"unknown enum value", map[string]any{"flag": true, "color": "PURPLE"}, `Value "PURPLE" does not exist in "FurColor" enum.`},
		{"null for non-null", map[string]any{"flag": nil}, `Variable "$flag" of non-null type "Boolean!" must not be null.`},
		{"wrong scalar", map[string]any{"flag": "yes"}, "Boolean cannot represent a non boolean value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(pets, defs, tt.raw)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCoerceBatchIndependence(t *testing.T) {
	defs := definitions(t, `query Q($id: ID!) { hello }`)
	sets := []map[string]any{
		{"id": "1"},
		{},
		{"id": "3"},
	}

	results, err := CoerceBatch(pets, defs, sets, false)
	require.Error(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.Equal(t, Values{"id": "1"}, results[0].Values)
	require.Error(t, results[1].Err)
	require.Nil(t, results[1].Values)
	require.NoError(t, results[2].Err)
	require.Equal(t, Values{"id": "3"}, results[2].Values)

	alone, err := Coerce(pets, defs, sets[0])
	require.NoError(t, err)
	require.Equal(t, alone, results[0].Values)
}

func TestCoerceBatchFailFast(t *testing.T) {
	defs := definitions(t, `query Q($id: ID!) { hello }`)
	results, err := CoerceBatch(pets, defs, []map[string]any{{}, {"id": "2"}}, true)
	require.Error(t, err)
	require.Error(t, results[0].Err)
	require.Nil(t, results[1].Values, "sets after the failure are not coerced")
}

func TestArgumentValues(t *testing.T) {
	doc, err := language.ParseQuery(`query Q($x: Boolean) { dog { isHouseTrained(atOtherHomes: $x) } pets(filter: { name: "a", color: TAN }) { name } }`)
	require.NoError(t, err)
	root := doc.Operations[0].SelectionSet

	dogField := root[0].(*ast.Field).SelectionSet[0].(*ast.Field)
	def := pets.ResolveNamedType("Dog").Field("isHouseTrained")

	args, err := ArgumentValues(pets, def.Arguments, dogField.Arguments, Values{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"atOtherHomes": true}, args, "unprovided variables fall back to the default")

	args, err = ArgumentValues(pets, def.Arguments, dogField.Arguments, Values{"x": false})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"atOtherHomes": false}, args)

	petsField := root[1].(*ast.Field)
	args, err = ArgumentValues(pets, pets.GetQueryType().Field("pets").Arguments, petsField.Arguments, nil)
	require.NoError(t, err)
	want := map[string]any{
		"filter": map[string]any{"name": "a", "color": "TAN", "limit": 10},
		"first":  10,
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}
