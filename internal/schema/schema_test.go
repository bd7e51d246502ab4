package schema_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/schema/schematest"
)

func TestBuildFromSDL(t *testing.T) {
	s := schematest.Pets()

	require.Equal(t, "pets", s.Name)
	require.NotEmpty(t, s.Version)
	require.Equal(t, "Query", s.ResolveRootType(ast.Query).Name)
	require.Equal(t, "Mutation", s.ResolveRootType(ast.Mutation).Name)
	require.Equal(t, "Subscription", s.ResolveRootType(ast.Subscription).Name)

	dog := s.ResolveNamedType("Dog")
	require.NotNil(t, dog)
	require.Equal(t, schema.TypeKindObject, dog.Kind)
	require.True(t, dog.Implements("Pet"))

	arg := dog.Field("isHouseTrained").Argument("atOtherHomes")
	require.True(t, arg.HasDefault)
	require.Equal(t, true, arg.DefaultValue)

	require.NotNil(t, s.ResolveDirective("skip"))
	require.NotNil(t, s.ResolveDirective("include"))
}

func TestBuildFromSDLVersionIsStable(t *testing.T) {
	a, err := schema.BuildFromSDL("a", schematest.SDL)
	require.NoError(t, err)
	b, err := schema.BuildFromSDL("b", schematest.SDL)
	require.NoError(t, err)
	require.Equal(t, a.Version, b.Version)

	c, err := schema.BuildFromSDL("c", schematest.SDL+"\nscalar Extra\n")
	require.NoError(t, err)
	require.NotEqual(t, a.Version, c.Version)
}

func TestBuildFromSDLInvalid(t *testing.T) {
	_, err := schema.BuildFromSDL("broken", "type Query { a: Missing }")
	require.Error(t, err)
}

func TestPossibleTypes(t *testing.T) {
	s := schematest.Pets()

	if diff := cmp.Diff([]string{"Cat", "Dog"}, s.PossibleObjectTypes("CatOrDog")); diff != "" {
		t.Errorf("union members mismatch (-want +got):\n%s", diff)
	}
	require.ElementsMatch(t, []string{"Cat", "Dog"}, s.PossibleObjectTypes("Pet"))
	require.ElementsMatch(t, []string{"Cat", "Dog", "Human"}, s.PossibleObjectTypes("Being"))

	require.True(t, s.IsPossibleType("Pet", "Dog"))
	require.False(t, s.IsPossibleType("Pet", "Human"))
	require.True(t, s.TypesOverlap("Pet", "CatOrDog"))
	require.False(t, s.TypesOverlap("Human", "CatOrDog"))
}

func TestFieldDefinitionMetaFields(t *testing.T) {
	s := schematest.Pets()
	query := s.GetQueryType()

	require.Equal(t, "__typename", s.FieldDefinition(s.ResolveNamedType("Dog"), "__typename").Name)
	require.NotNil(t, s.FieldDefinition(query, "__schema"))
	require.NotNil(t, s.FieldDefinition(query, "__type"))
	require.Nil(t, s.FieldDefinition(s.ResolveNamedType("Dog"), "__schema"))
	require.Nil(t, s.FieldDefinition(s.ResolveNamedType("FurColor"), "__typename"))
}

func TestTypeRefFromAST(t *testing.T) {
	ref := schema.FromAST(ast.NonNullListType(ast.NonNullNamedType("String", nil), nil))
	require.Equal(t, "[String!]!", ref.String())
	require.True(t, ref.IsList())
	require.Equal(t, "String", ref.GetNamedType())
	require.True(t, ref.Equal(schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("String"))))))
}

func TestRender(t *testing.T) {
	s := schema.NewSchema("built").SetQueryType("Query")
	s.AddType(schema.NewType("Color", schema.TypeKindEnum, "").
		AddEnumValue(schema.NewEnumValue("RED", "")).
		AddEnumValue(schema.NewEnumValue("BLUE", "").Deprecate("use RED")))
	s.AddType(schema.NewType("Query", schema.TypeKindObject, "Root query").
		AddField(schema.NewField("color", "", schema.NamedType("Color")).
			AddArgument(schema.NewInputValue("fallback", "", schema.NamedType("Color")).SetDefault(schema.EnumLiteral("RED")))))

	want := `enum Color {
  RED
  BLUE @deprecated(reason: "use RED")
}

"""
Root query
"""
type Query {
  color(fallback: Color = RED): Color
}
`
	if diff := cmp.Diff(want, schema.Render(s)); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}

	reparsed, err := schema.BuildFromSDL("reparsed", schema.Render(s))
	require.NoError(t, err)
	require.Equal(t, "Color", reparsed.GetQueryType().Field("color").Type.GetNamedType())
}
