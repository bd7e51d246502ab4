// Package introspection answers __schema and __type queries by wrapping an
// executor runtime.
package introspection

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hanpama/graphcore/internal/executor"
	"github.com/hanpama/graphcore/internal/schema"
)

// Wrap returns a Runtime resolving introspection fields against s and
// delegating everything else to base. Execute with WithTypes(s) so the
// introspection types resolve.
func Wrap(base executor.Runtime, s *schema.Schema) executor.Runtime {
	r := &runtime{base: base, schema: s}
	if sr, ok := base.(executor.SubscriptionRuntime); ok {
		return &subscriptionRuntime{runtime: r, subscriber: sr}
	}
	return r
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

type subscriptionRuntime struct {
	*runtime
	subscriber executor.SubscriptionRuntime
}

func (r *subscriptionRuntime) Subscribe(ctx context.Context, field string, args map[string]any) (<-chan any, error) {
	return r.subscriber.Subscribe(ctx, field, args)
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		if v, ok := resolveSchemaField(src, field); ok {
			return v, nil
		}
	case *schema.Type:
		if v, ok := resolveTypeField(r.schema, src, field, args); ok {
			return v, nil
		}
	case *schema.TypeRef:
		if v, ok := resolveTypeRefField(r.schema, src, field, args); ok {
			return v, nil
		}
	case *schema.Field:
		if v, ok := resolveFieldField(src, field, args); ok {
			return v, nil
		}
	case *schema.InputValue:
		if v, ok := resolveInputValueField(src, field); ok {
			return v, nil
		}
	case *schema.EnumValue:
		if v, ok := resolveEnumValueField(src, field); ok {
			return v, nil
		}
	case *schema.Directive:
		if v, ok := resolveDirectiveField(src, field, args); ok {
			return v, nil
		}
	}

	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			return r.resolveTypeQuery(args), nil
		}
	}

	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if p, ok := value.(*string); ok {
		value = *p
	}
	if schema.IsIntrospectionName(typ) {
		return fmt.Sprint(value), nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *runtime) resolveTypeQuery(args map[string]any) *schema.Type {
	name, _ := args["name"].(string)
	if name == "" {
		return nil
	}
	return r.schema.ResolveNamedType(name)
}

func byName[T any](name func(T) string) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(name(a), name(b)) }
}

func typeName(t *schema.Type) string { return t.Name }

// namedTypes looks names up in the schema, drops unknown ones and sorts the
// rest by name.
func namedTypes(sch *schema.Schema, names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if def := sch.Types[name]; def != nil {
			out = append(out, def)
		}
	}
	slices.SortFunc(out, byName(typeName))
	return out
}

// visible filters deprecated members unless the includeDeprecated argument
// is true. The result is never nil so lists serialize as [].
func visible[T any](items []T, deprecated func(T) bool, args map[string]any) []T {
	include, _ := args["includeDeprecated"].(bool)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if include || !deprecated(it) {
			out = append(out, it)
		}
	}
	return out
}

func fieldDeprecated(f *schema.Field) bool      { return f.IsDeprecated }
func inputDeprecated(a *schema.InputValue) bool { return a.IsDeprecated }
func enumDeprecated(ev *schema.EnumValue) bool  { return ev.IsDeprecated }

func deprecationReason(deprecated bool, reason string) *string {
	if !deprecated {
		return nil
	}
	return &reason
}

func hasFields(t *schema.Type) bool {
	return t.Kind == schema.TypeKindObject || t.Kind == schema.TypeKindInterface
}

func resolveSchemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "types":
		types := slices.Collect(maps.Values(sch.Types))
		slices.SortFunc(types, byName(typeName))
		return types, true
	case "queryType":
		return sch.GetQueryType(), true
	case "mutationType":
		return sch.GetMutationType(), true
	case "subscriptionType":
		return sch.GetSubscriptionType(), true
	case "directives":
		dirs := slices.Collect(maps.Values(sch.Directives))
		slices.SortFunc(dirs, byName(func(d *schema.Directive) string { return d.Name }))
		return dirs, true
	case "description":
		return optionalString(sch.Description), true
	}
	return nil, false
}

func resolveTypeField(sch *schema.Schema, t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optionalString(t.Description), true
	case "specifiedByURL":
		return t.SpecifiedByURL, true
	case "fields":
		if !hasFields(t) {
			return nil, true
		}
		return visible(t.Fields, fieldDeprecated, args), true
	case "interfaces":
		if !hasFields(t) {
			return nil, true
		}
		return namedTypes(sch, t.Interfaces), true
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, true
		}
		return namedTypes(sch, sch.PossibleObjectTypes(t.Name)), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		return visible(t.EnumValues, enumDeprecated, args), true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return visible(t.InputFields, inputDeprecated, args), true
	case "isOneOf":
		return t.OneOf, true
	case "ofType":
		// Wrappers are TypeRef nodes; a named type has no ofType.
		return nil, true
	}
	return nil, false
}

func resolveTypeRefField(sch *schema.Schema, tr *schema.TypeRef, field string, args map[string]any) (any, bool) {
	wrapped := tr.Kind == schema.TypeRefKindNonNull || tr.Kind == schema.TypeRefKindList
	switch field {
	case "kind":
		if wrapped {
			return string(tr.Kind), true
		}
		if def := sch.ResolveNamedType(tr.Named); def != nil {
			return string(def.Kind), true
		}
		return nil, true
	case "name":
		if wrapped {
			return nil, true
		}
		return tr.Named, true
	case "ofType":
		if wrapped {
			return tr.OfType, true
		}
		return nil, true
	}
	if def := sch.Types[schema.GetNamedType(tr)]; def != nil {
		return resolveTypeField(sch, def, field, args)
	}
	return nil, true
}

func resolveFieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optionalString(f.Description), true
	case "args":
		return visible(f.Arguments, inputDeprecated, args), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func resolveInputValueField(a *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return a.Name, true
	case "description":
		return optionalString(a.Description), true
	case "type":
		return a.Type, true
	case "defaultValue":
		if value, ok := a.DefaultLiteral(); ok {
			return &value, true
		}
		return nil, true
	case "isDeprecated":
		return a.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(a.IsDeprecated, a.DeprecationReason), true
	}
	return nil, false
}

func resolveEnumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return optionalString(ev.Description), true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(ev.IsDeprecated, ev.DeprecationReason), true
	}
	return nil, false
}

func resolveDirectiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optionalString(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		locs := make([]string, len(d.Locations))
		for i, l := range d.Locations {
			locs[i] = string(l)
		}
		slices.Sort(locs)
		return locs, true
	case "args":
		return visible(d.Arguments, inputDeprecated, args), true
	}
	return nil, false
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
