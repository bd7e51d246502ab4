package validation

import (
	"github.com/vektah/gqlparser/v2/ast"
)

type fieldsOnCorrectType struct{ BaseVisitor }

func (fieldsOnCorrectType) EnterField(c *Context, f *ast.Field) Action {
	parent := c.ParentType()
	if parent == nil || c.FieldDef() != nil {
		return Continue
	}
	c.Report(at(f.Position), `Cannot query field "%s" on type "%s".`, f.Name, parent.Name)
	return Skip
}

type possibleFragmentSpreads struct{ BaseVisitor }

func (possibleFragmentSpreads) EnterInlineFragment(c *Context, f *ast.InlineFragment) Action {
	parent := c.ParentType()
	frag := c.NamedType(c.Type())
	if f.TypeCondition == "" || parent == nil || !frag.IsComposite() {
		return Continue
	}
	if !c.schema.TypesOverlap(parent.Name, frag.Name) {
		c.Report(at(f.Position), `Fragment cannot be spread here as objects of type "%s" can never be of type "%s".`, parent.Name, frag.Name)
		return Skip
	}
	return Continue
}

func (possibleFragmentSpreads) EnterFragmentSpread(c *Context, s *ast.FragmentSpread) Action {
	parent := c.ParentType()
	frag := c.NamedType(c.Type())
	if parent == nil || !frag.IsComposite() {
		return Continue
	}
	if !c.schema.TypesOverlap(parent.Name, frag.Name) {
		c.Report(at(s.Position), `Fragment "%s" cannot be spread here as objects of type "%s" can never be of type "%s".`, s.Name, parent.Name, frag.Name)
		return Skip
	}
	return Continue
}

type leafFieldSelections struct{ BaseVisitor }

func (leafFieldSelections) EnterField(c *Context, f *ast.Field) Action {
	typ := c.Type()
	named := c.NamedType(typ)
	if named == nil {
		return Continue
	}
	switch {
	case named.IsLeaf() && len(f.SelectionSet) > 0:
		c.Report(at(f.Position), `Field "%s" must not have a selection since type "%s" has no subfields.`, f.Name, typ.String())
		return Skip
	case named.IsComposite() && len(f.SelectionSet) == 0:
		c.Report(at(f.Position), `Field "%s" of type "%s" must have a selection of subfields. Did you mean "%s { ... }"?`, f.Name, typ.String(), f.Name)
	}
	return Continue
}

type knownArgumentNames struct{ BaseVisitor }

func (knownArgumentNames) EnterField(c *Context, f *ast.Field) Action {
	def := c.FieldDef()
	parent := c.ParentType()
	if def == nil || parent == nil {
		return Continue
	}
	for _, arg := range f.Arguments {
		if def.Argument(arg.Name) == nil {
			c.Report(at(arg.Position), `Unknown argument "%s" on field "%s.%s".`, arg.Name, parent.Name, f.Name)
		}
	}
	return Continue
}

func (knownArgumentNames) EnterDirective(c *Context, d *ast.Directive, _ ast.DirectiveLocation) {
	def := c.schema.ResolveDirective(d.Name)
	if def == nil {
		return
	}
	for _, arg := range d.Arguments {
		if def.Argument(arg.Name) == nil {
			c.Report(at(arg.Position), `Unknown argument "%s" on directive "@%s".`, arg.Name, d.Name)
		}
	}
}

type uniqueArgumentNames struct{ BaseVisitor }

func (uniqueArgumentNames) EnterField(c *Context, f *ast.Field) Action {
	reportDuplicateArguments(c, f.Arguments)
	return Continue
}

func (uniqueArgumentNames) EnterDirective(c *Context, d *ast.Directive, _ ast.DirectiveLocation) {
	reportDuplicateArguments(c, d.Arguments)
}

func reportDuplicateArguments(c *Context, args ast.ArgumentList) {
	for i, arg := range args {
		for _, prev := range args[:i] {
			if prev.Name == arg.Name {
				c.Report(at(prev.Position, arg.Position), `There can be only one argument named "%s".`, arg.Name)
				break
			}
		}
	}
}

type providedRequiredArguments struct{ BaseVisitor }

func (providedRequiredArguments) EnterField(c *Context, f *ast.Field) Action {
	def := c.FieldDef()
	if def == nil {
		return Continue
	}
	for _, argDef := range def.Arguments {
		if argDef.Type.IsNonNull() && !argDef.HasDefault && f.Arguments.ForName(argDef.Name) == nil {
			c.Report(at(f.Position), `Field "%s" argument "%s" of type "%s" is required, but it was not provided.`, f.Name, argDef.Name, argDef.Type.String())
		}
	}
	return Continue
}

func (providedRequiredArguments) EnterDirective(c *Context, d *ast.Directive, _ ast.DirectiveLocation) {
	def := c.schema.ResolveDirective(d.Name)
	if def == nil {
		return
	}
	for _, argDef := range def.Arguments {
		if argDef.Type.IsNonNull() && !argDef.HasDefault && d.Arguments.ForName(argDef.Name) == nil {
			c.Report(at(d.Position), `Directive "@%s" argument "%s" of type "%s" is required, but it was not provided.`, d.Name, argDef.Name, argDef.Type.String())
		}
	}
}

type knownDirectives struct{ BaseVisitor }

func (knownDirectives) EnterDirective(c *Context, d *ast.Directive, location ast.DirectiveLocation) {
	def := c.schema.ResolveDirective(d.Name)
	if def == nil {
		c.Report(at(d.Position), `Unknown directive "@%s".`, d.Name)
		return
	}
	if !def.HasLocation(string(location)) {
		c.Report(at(d.Position), `Directive "@%s" may not be used on %s.`, d.Name, location)
	}
}

type uniqueDirectivesPerLocation struct{ BaseVisitor }

func (r uniqueDirectivesPerLocation) EnterOperation(c *Context, op *ast.OperationDefinition) Action {
	r.check(c, op.Directives)
	for _, v := range op.VariableDefinitions {
		r.check(c, v.Directives)
	}
	return Continue
}

func (r uniqueDirectivesPerLocation) EnterField(c *Context, f *ast.Field) Action {
	r.check(c, f.Directives)
	return Continue
}

func (r uniqueDirectivesPerLocation) EnterInlineFragment(c *Context, f *ast.InlineFragment) Action {
	r.check(c, f.Directives)
	return Continue
}

func (r uniqueDirectivesPerLocation) EnterFragmentSpread(c *Context, s *ast.FragmentSpread) Action {
	r.check(c, s.Directives)
	return Continue
}

func (uniqueDirectivesPerLocation) check(c *Context, list ast.DirectiveList) {
	for i, d := range list {
		def := c.schema.ResolveDirective(d.Name)
		if def != nil && def.IsRepeatable {
			continue
		}
		for _, prev := range list[:i] {
			if prev.Name == d.Name {
				c.Report(at(prev.Position, d.Position), `The directive "@%s" can only be used once at this location.`, d.Name)
				break
			}
		}
	}
}
