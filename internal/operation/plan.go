package operation

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

// SelectionSet is an ordered list of response entries for one object type.
type SelectionSet []*Field

// Field is one response entry: every field node sharing a response name
// within a selection set, merged across fragments.
type Field struct {
	ResponseName string
	Name         string
	// Definition is nil only for fields a validated document cannot contain.
	Definition  *schema.Field
	Occurrences []Occurrence
	// children by concrete object type name; nil for leaf fields
	children map[string]SelectionSet
}

// Occurrence is one field node with the directives guarding it, its own and
// those of the enclosing fragments.
type Occurrence struct {
	Node       *ast.Field
	Directives []ast.DirectiveList
}

// Node returns the first field node; arguments are identical across
// occurrences of a valid document.
func (f *Field) Node() *ast.Field { return f.Occurrences[0].Node }

// Children returns the sub-selection for a concrete object type.
func (f *Field) Children(objectType string) SelectionSet { return f.children[objectType] }

// HasChildren reports whether the field selects subfields.
func (f *Field) HasChildren() bool { return f.children != nil }

// Included reports whether any occurrence survives its skip/include directives.
func (f *Field) Included(vars map[string]any) bool {
	for _, o := range f.Occurrences {
		if occurrenceIncluded(o, vars) {
			return true
		}
	}
	return false
}

func occurrenceIncluded(o Occurrence, vars map[string]any) bool {
	for _, list := range o.Directives {
		if !Included(list, vars) {
			return false
		}
	}
	return true
}

// Included evaluates @skip and @include of a directive list.
func Included(directives ast.DirectiveList, vars map[string]any) bool {
	if d := directives.ForName("skip"); d != nil && conditionValue(d, vars) {
		return false
	}
	if d := directives.ForName("include"); d != nil && !conditionValue(d, vars) {
		return false
	}
	return true
}

func conditionValue(d *ast.Directive, vars map[string]any) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil || arg.Value == nil {
		return false
	}
	switch arg.Value.Kind {
	case ast.BooleanValue:
		return arg.Value.Raw == "true"
	case ast.Variable:
		b, _ := vars[arg.Value.Raw].(bool)
		return b
	}
	return false
}

type compiler struct {
	schema   *schema.Schema
	doc      *language.QueryDocument
	visiting map[string]bool
}

// selectionSet merges sets for objectType, grouping fields by response name in
// first-occurrence order.
func (c *compiler) selectionSet(sets []ast.SelectionSet, objectType *schema.Type) SelectionSet {
	var out SelectionSet
	index := map[string]*Field{}
	for _, set := range sets {
		c.collect(set, objectType, nil, &out, index)
	}
	for _, f := range out {
		c.plan(f, objectType)
	}
	return out
}

func (c *compiler) collect(set ast.SelectionSet, objectType *schema.Type, guards []ast.DirectiveList, out *SelectionSet, index map[string]*Field) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			name := language.ResponseName(sel)
			f, ok := index[name]
			if !ok {
				f = &Field{ResponseName: name, Name: sel.Name}
				index[name] = f
				*out = append(*out, f)
			}
			f.Occurrences = append(f.Occurrences, Occurrence{
				Node:       sel,
				Directives: appendGuard(guards, sel.Directives),
			})
		case *ast.InlineFragment:
			if !c.applies(sel.TypeCondition, objectType) {
				continue
			}
			c.collect(sel.SelectionSet, objectType, appendGuard(guards, sel.Directives), out, index)
		case *ast.FragmentSpread:
			def := c.doc.Fragments.ForName(sel.Name)
			if def == nil || c.visiting[def.Name] || !c.applies(def.TypeCondition, objectType) {
				continue
			}
			c.visiting[def.Name] = true
			c.collect(def.SelectionSet, objectType, appendGuard(guards, sel.Directives), out, index)
			delete(c.visiting, def.Name)
		}
	}
}

func (c *compiler) applies(condition string, objectType *schema.Type) bool {
	return condition == "" || c.schema.IsPossibleType(condition, objectType.Name)
}

func (c *compiler) plan(f *Field, objectType *schema.Type) {
	f.Definition = c.schema.FieldDefinition(objectType, f.Name)
	if f.Definition == nil {
		return
	}
	named := c.schema.ResolveNamedType(f.Definition.Type.GetNamedType())
	if !named.IsComposite() {
		return
	}
	subsets := make([]ast.SelectionSet, 0, len(f.Occurrences))
	for _, o := range f.Occurrences {
		subsets = append(subsets, o.Node.SelectionSet)
	}
	f.children = map[string]SelectionSet{}
	for _, possible := range c.schema.PossibleObjectTypes(named.Name) {
		if t := c.schema.ResolveNamedType(possible); t != nil {
			f.children[possible] = c.selectionSet(subsets, t)
		}
	}
}

func appendGuard(guards []ast.DirectiveList, list ast.DirectiveList) []ast.DirectiveList {
	if len(list) == 0 {
		return guards
	}
	out := make([]ast.DirectiveList, len(guards), len(guards)+1)
	copy(out, guards)
	return append(out, list)
}
