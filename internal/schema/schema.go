package schema

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// Schema represents the complete GraphQL schema
type Schema struct {
	// Name identifies the schema for cache keys; defaults to "_Default".
	Name string
	// Version changes whenever the schema is rebuilt so that prepared
	// operations compiled against an older build are never reused.
	Version          string
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type // All named types keyed by name
	Directives       map[string]*Directive
	Description      string
}

// GetQueryType returns the root query type (may be nil if absent)
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (may be nil if absent)
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the root subscription type (may be nil if absent)
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// ResolveRootType returns the root object type for an operation kind, or nil
// when the schema does not support that kind.
func (s *Schema) ResolveRootType(op ast.Operation) *Type {
	switch op {
	case ast.Query:
		return s.GetQueryType()
	case ast.Mutation:
		return s.GetMutationType()
	case ast.Subscription:
		return s.GetSubscriptionType()
	}
	return nil
}

// ResolveNamedType returns the named type or nil.
func (s *Schema) ResolveNamedType(name string) *Type {
	if s == nil {
		return nil
	}
	return s.Types[name]
}

// ResolveDirective returns the directive definition or nil.
func (s *Schema) ResolveDirective(name string) *Directive {
	if s == nil {
		return nil
	}
	return s.Directives[name]
}

// IsPossibleType reports whether objectType can be the runtime type of a value
// typed as the (possibly abstract) type named abstract.
func (s *Schema) IsPossibleType(abstract, objectType string) bool {
	if abstract == objectType {
		return true
	}
	t := s.Types[abstract]
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeKindUnion, TypeKindInterface:
		for _, name := range s.PossibleObjectTypes(abstract) {
			if name == objectType {
				return true
			}
		}
	}
	return false
}

// PossibleObjectTypes returns the object type names a value of the named type
// may have at runtime. Interfaces are resolved through their implementations.
func (s *Schema) PossibleObjectTypes(name string) []string {
	t := s.Types[name]
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeKindObject:
		return []string{t.Name}
	case TypeKindUnion:
		return t.PossibleTypes
	case TypeKindInterface:
		if len(t.PossibleTypes) > 0 {
			return t.PossibleTypes
		}
		var out []string
		for _, candidate := range s.sortedTypes() {
			if candidate.Kind == TypeKindObject && candidate.Implements(name) {
				out = append(out, candidate.Name)
			}
		}
		return out
	}
	return nil
}

// TypesOverlap reports whether some object type is possible for both a and b.
func (s *Schema) TypesOverlap(a, b string) bool {
	if a == b {
		return true
	}
	for _, pa := range s.PossibleObjectTypes(a) {
		for _, pb := range s.PossibleObjectTypes(b) {
			if pa == pb {
				return true
			}
		}
	}
	return false
}

func (s *Schema) sortedTypes() []*Type {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Type, len(names))
	for i, name := range names {
		out[i] = s.Types[name]
	}
	return out
}

// Type is a named GraphQL type (object, interface, union, scalar, enum, input)
type Type struct {
	Name           string
	Kind           TypeKind
	Description    string
	Fields         []*Field      // For OBJECT and INTERFACE
	Interfaces     []string      // For OBJECT and INTERFACE (implemented/extended)
	PossibleTypes  []string      // For INTERFACE and UNION
	EnumValues     []*EnumValue  // For ENUM
	InputFields    []*InputValue // For INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool
	BuiltIn        bool `json:"-"`
}

// Field returns the field definition with the given name.
func (t *Type) Field(name string) *Field {
	if t == nil {
		return nil
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// InputField returns the input field definition with the given name.
func (t *Type) InputField(name string) *InputValue {
	if t == nil {
		return nil
	}
	for _, f := range t.InputFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// EnumValue returns the enum value definition with the given name.
func (t *Type) EnumValue(name string) *EnumValue {
	if t == nil {
		return nil
	}
	for _, v := range t.EnumValues {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Implements reports whether the type declares the interface.
func (t *Type) Implements(iface string) bool {
	for _, name := range t.Interfaces {
		if name == iface {
			return true
		}
	}
	return false
}

// IsComposite reports whether selections can be made on the type.
func (t *Type) IsComposite() bool {
	return t != nil && (t.Kind == TypeKindObject || t.Kind == TypeKindInterface || t.Kind == TypeKindUnion)
}

// IsLeaf reports whether the type is a scalar or an enum.
func (t *Type) IsLeaf() bool {
	return t != nil && (t.Kind == TypeKindScalar || t.Kind == TypeKindEnum)
}

// IsInput reports whether the type may be used for variables and arguments.
func (t *Type) IsInput() bool {
	return t != nil && (t.Kind == TypeKindScalar || t.Kind == TypeKindEnum || t.Kind == TypeKindInputObject)
}

// IsIntrospectionName reports whether a field or type name is reserved for introspection.
func IsIntrospectionName(name string) bool { return strings.HasPrefix(name, "__") }

// Field represents a field on an object or interface
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue // formerly ArgumentDefinitionMap
	Async             bool
	IsDeprecated      bool
	DeprecationReason string
}

// Argument returns the argument definition with the given name.
func (f *Field) Argument(name string) *InputValue {
	return findInputValue(f.Arguments, name)
}

// TypeKind represents the kind of GraphQL type
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // For List and NonNull
	Named  string   // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// Helper functions for TypeRef
func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// String renders the reference in SDL notation, e.g. [String!]!.
func (t *TypeRef) String() string { return renderTypeRef(t) }

// Equal reports whether both references have the same wrapping and named type.
func (t *TypeRef) Equal(o *TypeRef) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Named != o.Named {
		return false
	}
	return t.OfType.Equal(o.OfType)
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	HasDefault        bool
	IsDeprecated      bool
	DeprecationReason string
}

// EnumLiteral is an enum value appearing in a default value literal.
type EnumLiteral string

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue // formerly ArgumentDefinitionMap
	IsRepeatable bool
	BuiltIn      bool `json:"-"`
}

// Argument returns the argument definition with the given name.
func (d *Directive) Argument(name string) *InputValue {
	return findInputValue(d.Arguments, name)
}

// HasLocation reports whether the directive may appear at the location.
func (d *Directive) HasLocation(location string) bool {
	for _, l := range d.Locations {
		if l == location {
			return true
		}
	}
	return false
}

func findInputValue(values []*InputValue, name string) *InputValue {
	for _, v := range values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }

// FromAST converts a parsed type reference (e.g. of a variable definition).
func FromAST(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return NonNullType(FromAST(&ast.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return ListType(FromAST(t.Elem))
	}
	return nil
}
