package validation

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/language"
)

// Document-level rules inspect definitions directly instead of walking
// operations, so they also see fragments no operation uses.

func operationNameUniqueness(c *Context) {
	for _, op := range c.document.Operations {
		if op.Name == "" {
			continue
		}
		c.Names[op.Name]++
		if c.Names[op.Name] == 2 {
			c.Report(at(op.Position), `There can be only one operation named "%s".`, op.Name)
		}
	}
}

func loneAnonymousOperation(c *Context) {
	if len(c.document.Operations) < 2 {
		return
	}
	for _, op := range c.document.Operations {
		if op.Name == "" {
			c.Report(at(op.Position), "This anonymous operation must be the only defined operation.")
		}
	}
}

func supportedOperationType(c *Context) {
	for _, op := range c.document.Operations {
		if c.schema.ResolveRootType(op.Operation) == nil {
			c.Report(at(op.Position), "Schema is not configured to execute %s operation.", op.Operation)
		}
	}
}

func fragmentNameUniqueness(c *Context) {
	for _, f := range c.document.Fragments {
		c.Names[f.Name]++
		if c.Names[f.Name] == 2 {
			c.Report(at(f.Position), `There can be only one fragment named "%s".`, f.Name)
		}
	}
}

func knownFragmentNames(c *Context) {
	check := func(set ast.SelectionSet) {
		for _, spread := range collectSpreads(set, c.Spreads[:0], true) {
			if c.Fragment(spread.Name) == nil {
				c.Report(at(spread.Position), `Unknown fragment "%s".`, spread.Name)
			}
		}
	}
	for _, op := range c.document.Operations {
		check(op.SelectionSet)
	}
	for _, f := range c.document.Fragments {
		check(f.SelectionSet)
	}
}

// fragmentCycles reports one error per spread that closes a cycle. Each
// fragment is explored once; names on the current spread path are tracked in
// c.Names with their path index.
func fragmentCycles(c *Context) {
	var path []*ast.FragmentSpread
	var detect func(f *ast.FragmentDefinition)
	detect = func(f *ast.FragmentDefinition) {
		if _, done := c.Visited[f.Name]; done {
			return
		}
		c.Visited[f.Name] = struct{}{}

		spreads := collectSpreads(f.SelectionSet, nil, true)
		if len(spreads) == 0 {
			return
		}
		c.Names[f.Name] = len(path)
		for _, spread := range spreads {
			cycleIndex, onPath := c.Names[spread.Name]
			path = append(path, spread)
			if !onPath {
				if next := c.Fragment(spread.Name); next != nil {
					detect(next)
				}
			} else {
				cycle := path[cycleIndex:]
				positions := make([]*ast.Position, len(cycle))
				via := make([]string, 0, len(cycle)-1)
				for i, s := range cycle {
					positions[i] = s.Position
					if i < len(cycle)-1 {
						via = append(via, `"`+s.Name+`"`)
					}
				}
				msg := `Cannot spread fragment "` + spread.Name + `" within itself`
				if len(via) > 0 {
					msg += " via " + strings.Join(via, ", ")
				}
				c.Report(positions, "%s.", msg)
			}
			path = path[:len(path)-1]
		}
		delete(c.Names, f.Name)
	}
	for _, f := range c.document.Fragments {
		detect(f)
	}
}

func unusedFragments(c *Context) {
	queue := c.Spreads[:0]
	for _, op := range c.document.Operations {
		queue = collectSpreads(op.SelectionSet, queue, true)
	}
	for len(queue) > 0 {
		spread := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, seen := c.Visited[spread.Name]; seen {
			continue
		}
		c.Visited[spread.Name] = struct{}{}
		if f := c.Fragment(spread.Name); f != nil {
			queue = collectSpreads(f.SelectionSet, queue, true)
		}
	}
	c.Spreads = queue
	for _, f := range c.document.Fragments {
		if _, used := c.Visited[f.Name]; !used {
			c.Report(at(f.Position), `Fragment "%s" is never used.`, f.Name)
		}
	}
}

func subscriptionSingleRootField(c *Context) {
	for _, op := range c.document.Operations {
		if op.Operation != ast.Subscription {
			continue
		}
		clear(c.Names)
		clear(c.Visited)
		fields := collectRootFields(c, op.SelectionSet, nil)
		for _, f := range fields {
			c.Names[language.ResponseName(f)]++
		}
		label := "Anonymous Subscription"
		if op.Name != "" {
			label = `Subscription "` + op.Name + `"`
		}
		if len(c.Names) > 1 {
			positions := make([]*ast.Position, 0, len(fields)-1)
			for _, f := range fields[1:] {
				positions = append(positions, f.Position)
			}
			c.Report(positions, "%s must select only one top level field.", label)
		}
		for _, f := range fields {
			if strings.HasPrefix(f.Name, "__") {
				c.Report(at(f.Position), "%s must not select an introspection top level field.", label)
			}
		}
	}
}

func knownTypeNames(c *Context) {
	check := func(name string, pos *ast.Position) {
		if name != "" && c.schema.ResolveNamedType(name) == nil {
			c.Report(at(pos), `Unknown type "%s".`, name)
		}
	}
	for _, op := range c.document.Operations {
		for _, v := range op.VariableDefinitions {
			check(v.Type.Name(), v.Type.Position)
		}
		eachInlineFragment(op.SelectionSet, func(f *ast.InlineFragment) { check(f.TypeCondition, f.Position) })
	}
	for _, f := range c.document.Fragments {
		check(f.TypeCondition, f.Position)
		eachInlineFragment(f.SelectionSet, func(f *ast.InlineFragment) { check(f.TypeCondition, f.Position) })
	}
}

func fragmentsOnCompositeTypes(c *Context) {
	for _, f := range c.document.Fragments {
		if t := c.schema.ResolveNamedType(f.TypeCondition); t != nil && !t.IsComposite() {
			c.Report(at(f.Position), `Fragment "%s" cannot condition on non composite type "%s".`, f.Name, f.TypeCondition)
		}
	}
	check := func(f *ast.InlineFragment) {
		if f.TypeCondition == "" {
			return
		}
		if t := c.schema.ResolveNamedType(f.TypeCondition); t != nil && !t.IsComposite() {
			c.Report(at(f.Position), `Fragment cannot condition on non composite type "%s".`, f.TypeCondition)
		}
	}
	for _, op := range c.document.Operations {
		eachInlineFragment(op.SelectionSet, check)
	}
	for _, f := range c.document.Fragments {
		eachInlineFragment(f.SelectionSet, check)
	}
}

// collectSpreads appends the fragment spreads found in set without following
// them into their definitions. With nested set, field selection sets are
// searched as well.
func collectSpreads(set ast.SelectionSet, out []*ast.FragmentSpread, nested bool) []*ast.FragmentSpread {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			if nested {
				out = collectSpreads(sel.SelectionSet, out, nested)
			}
		case *ast.InlineFragment:
			out = collectSpreads(sel.SelectionSet, out, nested)
		case *ast.FragmentSpread:
			out = append(out, sel)
		}
	}
	return out
}

func eachInlineFragment(set ast.SelectionSet, fn func(*ast.InlineFragment)) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			eachInlineFragment(sel.SelectionSet, fn)
		case *ast.InlineFragment:
			fn(sel)
			eachInlineFragment(sel.SelectionSet, fn)
		}
	}
}

// collectRootFields flattens the top level of a selection set through inline
// fragments and spreads. Fragments are expanded once each.
func collectRootFields(c *Context, set ast.SelectionSet, out []*ast.Field) []*ast.Field {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			out = append(out, sel)
		case *ast.InlineFragment:
			out = collectRootFields(c, sel.SelectionSet, out)
		case *ast.FragmentSpread:
			if _, seen := c.Visited[sel.Name]; seen {
				continue
			}
			c.Visited[sel.Name] = struct{}{}
			if f := c.Fragment(sel.Name); f != nil {
				out = collectRootFields(c, f.SelectionSet, out)
			}
		}
	}
	return out
}
