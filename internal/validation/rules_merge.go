package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

// selectionMerging reports sibling selections that share a response name but
// cannot be merged into one result entry.
type selectionMerging struct{ BaseVisitor }

type fieldPair struct{ a, b *ast.Field }

type mergeField struct {
	parent *schema.Type
	field  *ast.Field
	def    *schema.Field
}

type mergeGroup struct {
	responseName string
	fields       []mergeField
}

type mergeConflict struct {
	responseName string
	reason       string
	a, b         mergeField
}

func (r selectionMerging) EnterOperation(c *Context, op *ast.OperationDefinition) Action {
	r.check(c, op.SelectionSet, c.schema.ResolveRootType(op.Operation))
	return Continue
}

func (r selectionMerging) EnterField(c *Context, f *ast.Field) Action {
	if len(f.SelectionSet) > 0 {
		r.check(c, f.SelectionSet, c.NamedType(c.Type()))
	}
	return Continue
}

func (r selectionMerging) EnterInlineFragment(c *Context, f *ast.InlineFragment) Action {
	r.check(c, f.SelectionSet, c.NamedType(c.Type()))
	return Continue
}

func (selectionMerging) check(c *Context, set ast.SelectionSet, parent *schema.Type) {
	for _, group := range collectMergeFields(c, set, parent, nil) {
		for i := 0; i < len(group.fields); i++ {
			for j := i + 1; j < len(group.fields); j++ {
				conflict := findConflict(c, false, group.responseName, group.fields[i], group.fields[j])
				if conflict == nil || seenPair(c, conflict.a.field, conflict.b.field) {
					continue
				}
				reportConflict(c, conflict)
			}
		}
	}
}

func seenPair(c *Context, a, b *ast.Field) bool {
	if _, ok := c.pairs[fieldPair{a, b}]; ok {
		return true
	}
	c.pairs[fieldPair{a, b}] = struct{}{}
	c.pairs[fieldPair{b, a}] = struct{}{}
	return false
}

func reportConflict(c *Context, conflict *mergeConflict) {
	err := c.Report(at(conflict.a.field.Position, conflict.b.field.Position),
		`Fields "%s" conflict because %s. Use different aliases on the fields to fetch both if this was intentional.`,
		conflict.responseName, conflict.reason)
	err.Extensions["declaringTypes"] = []string{typeName(conflict.a.parent), typeName(conflict.b.parent)}
}

// collectMergeFields groups the fields of set by response name, following
// inline fragments and fragment spreads. c.Stack guards against fragment cycles.
func collectMergeFields(c *Context, set ast.SelectionSet, parent *schema.Type, groups []mergeGroup) []mergeGroup {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			var def *schema.Field
			if parent != nil {
				def = c.schema.FieldDefinition(parent, sel.Name)
			}
			name := language.ResponseName(sel)
			entry := mergeField{parent: parent, field: sel, def: def}
			idx := slices.IndexFunc(groups, func(g mergeGroup) bool { return g.responseName == name })
			if idx < 0 {
				groups = append(groups, mergeGroup{responseName: name, fields: []mergeField{entry}})
			} else {
				groups[idx].fields = append(groups[idx].fields, entry)
			}
		case *ast.InlineFragment:
			condition := parent
			if sel.TypeCondition != "" {
				condition = c.schema.ResolveNamedType(sel.TypeCondition)
			}
			groups = collectMergeFields(c, sel.SelectionSet, condition, groups)
		case *ast.FragmentSpread:
			def := c.Fragment(sel.Name)
			if def == nil || slices.Contains(c.Stack, sel.Name) {
				continue
			}
			c.Stack = append(c.Stack, sel.Name)
			groups = collectMergeFields(c, def.SelectionSet, c.schema.ResolveNamedType(def.TypeCondition), groups)
			c.Stack = c.Stack[:len(c.Stack)-1]
		}
	}
	return groups
}

func findConflict(c *Context, parentsExclusive bool, responseName string, a, b mergeField) *mergeConflict {
	exclusive := parentsExclusive ||
		(a.parent != b.parent && a.parent != nil && b.parent != nil &&
			a.parent.Kind == schema.TypeKindObject && b.parent.Kind == schema.TypeKindObject)

	conflict := func(reason string) *mergeConflict {
		return &mergeConflict{responseName: responseName, reason: reason, a: a, b: b}
	}
	if !exclusive {
		if a.field.Name != b.field.Name {
			return conflict(fmt.Sprintf("%s and %s are different fields", coordinate(a), coordinate(b)))
		}
		if !sameArguments(a.field.Arguments, b.field.Arguments) {
			return conflict("they have differing arguments")
		}
	}

	var typeA, typeB *schema.TypeRef
	if a.def != nil {
		typeA = a.def.Type
	}
	if b.def != nil {
		typeB = b.def.Type
	}
	if typeA != nil && typeB != nil && typesConflict(c, typeA, typeB) {
		return conflict(fmt.Sprintf(`%s and %s return conflicting types "%s" and "%s"`, coordinate(a), coordinate(b), typeA.String(), typeB.String()))
	}

	if len(a.field.SelectionSet) > 0 && len(b.field.SelectionSet) > 0 {
		groupsA := collectMergeFields(c, a.field.SelectionSet, c.NamedType(typeA), nil)
		groupsB := collectMergeFields(c, b.field.SelectionSet, c.NamedType(typeB), nil)
		var reasons []string
		for _, ga := range groupsA {
			idx := slices.IndexFunc(groupsB, func(g mergeGroup) bool { return g.responseName == ga.responseName })
			if idx < 0 {
				continue
			}
			for _, fa := range ga.fields {
				for _, fb := range groupsB[idx].fields {
					if sub := findConflict(c, exclusive, ga.responseName, fa, fb); sub != nil {
						reasons = append(reasons, fmt.Sprintf(`subfields "%s" conflict because %s`, sub.responseName, sub.reason))
					}
				}
			}
		}
		if len(reasons) > 0 {
			return conflict(strings.Join(reasons, " and "))
		}
	}
	return nil
}

// typesConflict compares wrapping structure and, for leaf types, the named type.
func typesConflict(c *Context, a, b *schema.TypeRef) bool {
	if a.Kind == schema.TypeRefKindList {
		if b.Kind != schema.TypeRefKindList {
			return true
		}
		return typesConflict(c, a.OfType, b.OfType)
	}
	if b.Kind == schema.TypeRefKindList {
		return true
	}
	if a.IsNonNull() {
		if !b.IsNonNull() {
			return true
		}
		return typesConflict(c, a.OfType, b.OfType)
	}
	if b.IsNonNull() {
		return true
	}
	ta, tb := c.schema.ResolveNamedType(a.Named), c.schema.ResolveNamedType(b.Named)
	if ta.IsLeaf() || tb.IsLeaf() {
		return a.Named != b.Named
	}
	return false
}

func sameArguments(a, b ast.ArgumentList) bool {
	if len(a) != len(b) {
		return false
	}
	for _, argA := range a {
		argB := b.ForName(argA.Name)
		if argB == nil || argA.Value.String() != argB.Value.String() {
			return false
		}
	}
	return true
}

func coordinate(f mergeField) string {
	return typeName(f.parent) + "." + f.field.Name
}

func typeName(t *schema.Type) string {
	if t == nil {
		return "?"
	}
	return t.Name
}
