package schema

var stringType = &Type{
	Name:        "String",
	Kind:        TypeKindScalar,
	BuiltIn:     true,
	Description: "The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
}

var intType = &Type{
	Name:        "Int",
	Kind:        TypeKindScalar,
	BuiltIn:     true,
	Description: "The `Int` scalar type represents non-fractional signed whole numeric values.",
}

var floatType = &Type{
	Name:        "Float",
	Kind:        TypeKindScalar,
	BuiltIn:     true,
	Description: "The `Float` scalar type represents signed double-precision fractional values.",
}

var booleanType = &Type{
	Name:        "Boolean",
	Kind:        TypeKindScalar,
	BuiltIn:     true,
	Description: "The `Boolean` scalar type represents `true` or `false`.",
}

var idType = &Type{
	Name:        "ID",
	Kind:        TypeKindScalar,
	BuiltIn:     true,
	Description: "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.",
}

var includeDirective = &Directive{
	Name:        "include",
	Description: "Directs the executor to include this field or fragment only when the `if` argument is true.",
	Arguments: []*InputValue{
		{
			Name:        "if",
			Description: "Included when true.",
			Type:        &TypeRef{Kind: TypeRefKindNonNull, OfType: &TypeRef{Kind: TypeRefKindNamed, Named: "Boolean"}},
		},
	},
	Locations:    []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
	IsRepeatable: false,
	BuiltIn:      true,
}

var skipDirective = &Directive{
	Name:        "skip",
	Description: "Directs the executor to skip this field or fragment when the `if` argument is true.",
	Arguments: []*InputValue{
		{
			Name:        "if",
			Description: "Skipped when true.",
			Type:        &TypeRef{Kind: TypeRefKindNonNull, OfType: &TypeRef{Kind: TypeRefKindNamed, Named: "Boolean"}},
		},
	},
	Locations:    []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
	IsRepeatable: false,
	BuiltIn:      true,
}

// Meta fields are available on selection sets without being declared by the type.
var (
	typenameMetaField = &Field{
		Name:        "__typename",
		Description: "The name of the current Object type at runtime.",
		Type:        NonNullType(NamedType("String")),
	}
	schemaMetaField = &Field{
		Name:        "__schema",
		Description: "Access the current type schema of this server.",
		Type:        NonNullType(NamedType("__Schema")),
	}
	typeMetaField = &Field{
		Name:        "__type",
		Description: "Request the type information of a single type.",
		Type:        NamedType("__Type"),
		Arguments:   []*InputValue{{Name: "name", Type: NonNullType(NamedType("String"))}},
	}
)

// FieldDefinition resolves a field on a parent type including the
// __typename meta field on composite types and __schema/__type on the query root.
func (s *Schema) FieldDefinition(parent *Type, name string) *Field {
	if parent == nil {
		return nil
	}
	if name == typenameMetaField.Name && parent.IsComposite() {
		return typenameMetaField
	}
	if parent.Name == s.QueryType {
		switch name {
		case schemaMetaField.Name:
			return schemaMetaField
		case typeMetaField.Name:
			return typeMetaField
		}
	}
	return parent.Field(name)
}
