package validation

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/schema"
)

type uniqueVariableNames struct{ BaseVisitor }

func (uniqueVariableNames) EnterOperation(c *Context, op *ast.OperationDefinition) Action {
	for i, v := range op.VariableDefinitions {
		for _, prev := range op.VariableDefinitions[:i] {
			if prev.Variable == v.Variable {
				c.Report(at(prev.Position, v.Position), `There can be only one variable named "$%s".`, v.Variable)
				break
			}
		}
	}
	return Skip
}

type variablesAreInputTypes struct{ BaseVisitor }

func (variablesAreInputTypes) EnterOperation(c *Context, op *ast.OperationDefinition) Action {
	for _, v := range op.VariableDefinitions {
		t := c.schema.ResolveNamedType(v.Type.Name())
		if t != nil && !t.IsInput() {
			c.Report(at(v.Type.Position), `Variable "$%s" cannot be non-input type "%s".`, v.Variable, v.Type.String())
		}
	}
	return Skip
}

type noUndefinedVariables struct{ BaseVisitor }

func (noUndefinedVariables) EnterOperation(c *Context, op *ast.OperationDefinition) Action {
	clear(c.Visited)
	return Continue
}

func (noUndefinedVariables) EnterValue(c *Context, v *ast.Value, _ *schema.TypeRef, _ *schema.InputValue) {
	if v.Kind != ast.Variable {
		return
	}
	op := c.Operation()
	if op.VariableDefinitions.ForName(v.Raw) != nil {
		return
	}
	key := positionKey(v.Raw, v.Position)
	if _, reported := c.Visited[key]; reported {
		return
	}
	c.Visited[key] = struct{}{}
	if op.Name != "" {
		c.Report(at(v.Position, op.Position), `Variable "$%s" is not defined by operation "%s".`, v.Raw, op.Name)
	} else {
		c.Report(at(v.Position, op.Position), `Variable "$%s" is not defined.`, v.Raw)
	}
}

type noUnusedVariables struct{ BaseVisitor }

func (noUnusedVariables) EnterOperation(c *Context, _ *ast.OperationDefinition) Action {
	clear(c.Names)
	return Continue
}

func (noUnusedVariables) EnterValue(c *Context, v *ast.Value, _ *schema.TypeRef, _ *schema.InputValue) {
	if v.Kind == ast.Variable {
		c.Names[v.Raw]++
	}
}

func (noUnusedVariables) LeaveOperation(c *Context, op *ast.OperationDefinition) {
	for _, v := range op.VariableDefinitions {
		if c.Names[v.Variable] > 0 {
			continue
		}
		if op.Name != "" {
			c.Report(at(v.Position), `Variable "$%s" is never used in operation "%s".`, v.Variable, op.Name)
		} else {
			c.Report(at(v.Position), `Variable "$%s" is never used.`, v.Variable)
		}
	}
}

type variablesInAllowedPosition struct{ BaseVisitor }

func (variablesInAllowedPosition) EnterOperation(c *Context, op *ast.OperationDefinition) Action {
	clear(c.Variables)
	c.Usages = c.Usages[:0]
	for _, v := range op.VariableDefinitions {
		c.Variables[v.Variable] = v
	}
	return Continue
}

func (variablesInAllowedPosition) EnterValue(c *Context, v *ast.Value, expected *schema.TypeRef, slot *schema.InputValue) {
	if v.Kind != ast.Variable {
		return
	}
	c.Usages = append(c.Usages, VariableUsage{
		Value:              v,
		Expected:           expected,
		HasLocationDefault: slot != nil && slot.HasDefault && slot.DefaultValue != nil,
	})
}

func (variablesInAllowedPosition) LeaveOperation(c *Context, _ *ast.OperationDefinition) {
	for _, usage := range c.Usages {
		def := c.Variables[usage.Value.Raw]
		if def == nil || usage.Expected == nil {
			continue
		}
		if c.schema.ResolveNamedType(def.Type.Name()) == nil {
			continue
		}
		varType := schema.FromAST(def.Type)
		if !allowedVariableUsage(varType, def.DefaultValue, usage.Expected, usage.HasLocationDefault) {
			c.Report(at(def.Position, usage.Value.Position),
				`Variable "$%s" of type "%s" used in position expecting type "%s".`,
				def.Variable, varType.String(), usage.Expected.String())
		}
	}
}

// allowedVariableUsage lets a nullable variable flow into a non-null position
// when either the variable or the location provides a non-null default.
func allowedVariableUsage(varType *schema.TypeRef, varDefault *ast.Value, locationType *schema.TypeRef, locationHasDefault bool) bool {
	if locationType.IsNonNull() && !varType.IsNonNull() {
		hasNonNullVariableDefault := varDefault != nil && varDefault.Kind != ast.NullValue
		if !hasNonNullVariableDefault && !locationHasDefault {
			return false
		}
		return isTypeSubTypeOf(varType, locationType.OfType)
	}
	return isTypeSubTypeOf(varType, locationType)
}

func isTypeSubTypeOf(sub, super *schema.TypeRef) bool {
	if sub.Equal(super) {
		return true
	}
	if super.IsNonNull() {
		if sub.IsNonNull() {
			return isTypeSubTypeOf(sub.OfType, super.OfType)
		}
		return false
	}
	if sub.IsNonNull() {
		return isTypeSubTypeOf(sub.OfType, super)
	}
	if super.Kind == schema.TypeRefKindList {
		if sub.Kind == schema.TypeRefKindList {
			return isTypeSubTypeOf(sub.OfType, super.OfType)
		}
		return false
	}
	if sub.Kind == schema.TypeRefKindList {
		return false
	}
	return sub.Named == super.Named
}

func positionKey(name string, pos *ast.Position) string {
	if pos == nil {
		return name
	}
	return fmt.Sprintf("%s@%d:%d", name, pos.Line, pos.Column)
}
