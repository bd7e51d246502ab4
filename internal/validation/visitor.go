package validation

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

// Action tells the walker how to proceed after an Enter hook.
type Action int

const (
	// Continue descends into the node's children.
	Continue Action = iota
	// Skip leaves the node's children unvisited; the matching Leave hook is not called.
	Skip
	// Break aborts the walk.
	Break
)

// Visitor receives walk events. Visitors hold no state of their own: any
// bookkeeping lives in the scratch fields of Context.
type Visitor interface {
	EnterOperation(c *Context, op *ast.OperationDefinition) Action
	LeaveOperation(c *Context, op *ast.OperationDefinition)
	EnterVariableDefinition(c *Context, v *ast.VariableDefinition)
	EnterField(c *Context, f *ast.Field) Action
	LeaveField(c *Context, f *ast.Field)
	EnterInlineFragment(c *Context, f *ast.InlineFragment) Action
	LeaveInlineFragment(c *Context, f *ast.InlineFragment)
	EnterFragmentSpread(c *Context, s *ast.FragmentSpread) Action
	LeaveFragmentSpread(c *Context, s *ast.FragmentSpread)
	EnterDirective(c *Context, d *ast.Directive, location ast.DirectiveLocation)
	EnterValue(c *Context, v *ast.Value, expected *schema.TypeRef, slot *schema.InputValue)
}

// BaseVisitor implements every hook as a no-op.
type BaseVisitor struct{}

func (BaseVisitor) EnterOperation(*Context, *ast.OperationDefinition) Action     { return Continue }
func (BaseVisitor) LeaveOperation(*Context, *ast.OperationDefinition)            {}
func (BaseVisitor) EnterVariableDefinition(*Context, *ast.VariableDefinition)     {}
func (BaseVisitor) EnterField(*Context, *ast.Field) Action                        { return Continue }
func (BaseVisitor) LeaveField(*Context, *ast.Field)                               {}
func (BaseVisitor) EnterInlineFragment(*Context, *ast.InlineFragment) Action      { return Continue }
func (BaseVisitor) LeaveInlineFragment(*Context, *ast.InlineFragment)             {}
func (BaseVisitor) EnterFragmentSpread(*Context, *ast.FragmentSpread) Action      { return Continue }
func (BaseVisitor) LeaveFragmentSpread(*Context, *ast.FragmentSpread)             {}
func (BaseVisitor) EnterDirective(*Context, *ast.Directive, ast.DirectiveLocation) {}
func (BaseVisitor) EnterValue(*Context, *ast.Value, *schema.TypeRef, *schema.InputValue) {}

// walker drives a Visitor over every operation of the document. Fragment
// spreads are expanded in place; a fragment already being expanded on the
// current path is not entered again.
type walker struct {
	c       *Context
	v       Visitor
	stopped bool
}

func walk(c *Context, v Visitor) {
	w := &walker{c: c, v: v}
	for _, op := range c.document.Operations {
		if w.stopped || c.tooManyErrors {
			return
		}
		w.operation(op)
	}
}

func (w *walker) handle(a Action) bool {
	if a == Break || w.c.tooManyErrors {
		w.stopped = true
		return false
	}
	return a == Continue
}

func (w *walker) operation(op *ast.OperationDefinition) {
	c := w.c
	c.operation = op
	defer func() { c.operation = nil }()

	root := c.schema.ResolveRootType(op.Operation)
	c.types = append(c.types, namedRef(root))
	defer func() { c.types = c.types[:len(c.types)-1] }()

	if !w.handle(w.v.EnterOperation(c, op)) {
		return
	}
	for _, v := range op.VariableDefinitions {
		w.v.EnterVariableDefinition(c, v)
		w.directives(v.Directives, ast.LocationVariableDefinition)
		if v.DefaultValue != nil {
			w.value(v.DefaultValue, schema.FromAST(v.Type), nil)
		}
	}
	w.directives(op.Directives, operationLocation(op.Operation))
	w.selectionSet(op.SelectionSet, root)
	if !w.stopped {
		w.v.LeaveOperation(c, op)
	}
}

func (w *walker) selectionSet(set ast.SelectionSet, parent *schema.Type) {
	c := w.c
	if !parent.IsComposite() {
		parent = nil
	}
	c.parentTypes = append(c.parentTypes, parent)
	defer func() { c.parentTypes = c.parentTypes[:len(c.parentTypes)-1] }()

	for _, sel := range set {
		if w.stopped {
			return
		}
		switch sel := sel.(type) {
		case *ast.Field:
			w.field(sel, parent)
		case *ast.InlineFragment:
			w.inlineFragment(sel, parent)
		case *ast.FragmentSpread:
			w.fragmentSpread(sel)
		}
	}
}

func (w *walker) field(f *ast.Field, parent *schema.Type) {
	c := w.c
	var def *schema.Field
	if parent != nil {
		def = c.schema.FieldDefinition(parent, f.Name)
	}
	var typ *schema.TypeRef
	if def != nil {
		typ = def.Type
	}
	c.fieldDefs = append(c.fieldDefs, def)
	c.types = append(c.types, typ)
	c.path = append(c.path, language.ResponseName(f))
	defer func() {
		c.fieldDefs = c.fieldDefs[:len(c.fieldDefs)-1]
		c.types = c.types[:len(c.types)-1]
		c.path = c.path[:len(c.path)-1]
	}()

	if !w.handle(w.v.EnterField(c, f)) {
		return
	}
	for _, arg := range f.Arguments {
		var argDef *schema.InputValue
		if def != nil {
			argDef = def.Argument(arg.Name)
		}
		w.value(arg.Value, slotType(argDef), argDef)
	}
	w.directives(f.Directives, ast.LocationField)
	if len(f.SelectionSet) > 0 {
		w.selectionSet(f.SelectionSet, c.NamedType(typ))
	}
	if !w.stopped {
		w.v.LeaveField(c, f)
	}
}

func (w *walker) inlineFragment(f *ast.InlineFragment, parent *schema.Type) {
	c := w.c
	condition := parent
	if f.TypeCondition != "" {
		condition = c.schema.ResolveNamedType(f.TypeCondition)
	}
	c.types = append(c.types, namedRef(condition))
	defer func() { c.types = c.types[:len(c.types)-1] }()

	if !w.handle(w.v.EnterInlineFragment(c, f)) {
		return
	}
	w.directives(f.Directives, ast.LocationInlineFragment)
	w.selectionSet(f.SelectionSet, condition)
	if !w.stopped {
		w.v.LeaveInlineFragment(c, f)
	}
}

func (w *walker) fragmentSpread(s *ast.FragmentSpread) {
	c := w.c
	def := c.Fragment(s.Name)
	var condition *schema.Type
	if def != nil {
		condition = c.schema.ResolveNamedType(def.TypeCondition)
	}
	c.types = append(c.types, namedRef(condition))
	defer func() { c.types = c.types[:len(c.types)-1] }()

	if !w.handle(w.v.EnterFragmentSpread(c, s)) {
		return
	}
	w.directives(s.Directives, ast.LocationFragmentSpread)
	if def != nil {
		if _, cyclic := c.visiting[def.Name]; !cyclic {
			c.visiting[def.Name] = struct{}{}
			w.directives(def.Directives, ast.LocationFragmentDefinition)
			w.selectionSet(def.SelectionSet, condition)
			delete(c.visiting, def.Name)
		}
	}
	if !w.stopped {
		w.v.LeaveFragmentSpread(c, s)
	}
}

func (w *walker) directives(list ast.DirectiveList, location ast.DirectiveLocation) {
	c := w.c
	for _, d := range list {
		if w.stopped {
			return
		}
		w.v.EnterDirective(c, d, location)
		def := c.schema.ResolveDirective(d.Name)
		for _, arg := range d.Arguments {
			var argDef *schema.InputValue
			if def != nil {
				argDef = def.Argument(arg.Name)
			}
			w.value(arg.Value, slotType(argDef), argDef)
		}
	}
}

func (w *walker) value(v *ast.Value, expected *schema.TypeRef, slot *schema.InputValue) {
	if v == nil || w.stopped {
		return
	}
	c := w.c
	w.v.EnterValue(c, v, expected, slot)

	switch v.Kind {
	case ast.ListValue:
		var item *schema.TypeRef
		if expected != nil {
			inner := expected
			if inner.IsNonNull() {
				inner = inner.OfType
			}
			if inner.Kind == schema.TypeRefKindList {
				item = inner.OfType
			}
		}
		for _, child := range v.Children {
			w.value(child.Value, item, nil)
		}
	case ast.ObjectValue:
		input := c.NamedType(expected)
		for _, child := range v.Children {
			var fieldDef *schema.InputValue
			if input != nil && input.Kind == schema.TypeKindInputObject {
				fieldDef = input.InputField(child.Name)
			}
			w.value(child.Value, slotType(fieldDef), fieldDef)
		}
	}
}

func slotType(v *schema.InputValue) *schema.TypeRef {
	if v == nil {
		return nil
	}
	return v.Type
}

func namedRef(t *schema.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	return schema.NamedType(t.Name)
}

func operationLocation(op ast.Operation) ast.DirectiveLocation {
	switch op {
	case ast.Mutation:
		return ast.LocationMutation
	case ast.Subscription:
		return ast.LocationSubscription
	}
	return ast.LocationQuery
}
