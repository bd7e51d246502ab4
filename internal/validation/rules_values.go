package validation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/schema"
)

type valuesOfCorrectType struct{ BaseVisitor }

func (valuesOfCorrectType) EnterValue(c *Context, v *ast.Value, expected *schema.TypeRef, _ *schema.InputValue) {
	if expected == nil || v.Kind == ast.Variable {
		return
	}
	if v.Kind == ast.NullValue {
		if expected.IsNonNull() {
			c.Report(at(v.Position), `Expected value of type "%s", found null.`, expected.String())
		}
		return
	}
	// a single value may stand in for a list of that value
	t := nullable(expected)
	for t.Kind == schema.TypeRefKindList && v.Kind != ast.ListValue {
		t = nullable(t.OfType)
	}
	if t.Kind == schema.TypeRefKindList {
		return
	}

	named := c.schema.ResolveNamedType(t.Named)
	if named == nil {
		return
	}
	switch named.Kind {
	case schema.TypeKindInputObject:
		checkInputObject(c, v, named)
	case schema.TypeKindEnum:
		if v.Kind != ast.EnumValue {
			c.Report(at(v.Position), `Enum "%s" cannot represent non-enum value: %s.`, named.Name, v.String())
		} else if named.EnumValue(v.Raw) == nil {
			c.Report(at(v.Position), `Value "%s" does not exist in "%s" enum.`, v.Raw, named.Name)
		}
	case schema.TypeKindScalar:
		if msg := checkScalarLiteral(named.Name, v); msg != "" {
			c.Report(at(v.Position), "%s", msg)
		}
	default:
		c.Report(at(v.Position), `Expected value of type "%s", found %s.`, expected.String(), v.String())
	}
}

func checkInputObject(c *Context, v *ast.Value, t *schema.Type) {
	if v.Kind != ast.ObjectValue {
		c.Report(at(v.Position), `Expected value of type "%s", found %s.`, t.Name, v.String())
		return
	}
	for _, child := range v.Children {
		if t.InputField(child.Name) == nil {
			c.Report(at(child.Position), `Field "%s" is not defined by type "%s".`, child.Name, t.Name)
		}
	}
	for _, field := range t.InputFields {
		if !field.Type.IsNonNull() || field.HasDefault {
			continue
		}
		if v.Children.ForName(field.Name) == nil {
			c.Report(at(v.Position), `Field "%s.%s" of required type "%s" was not provided.`, t.Name, field.Name, field.Type.String())
		}
	}
	if t.OneOf {
		if len(v.Children) != 1 {
			c.Report(at(v.Position), `OneOf Input Object "%s" must specify exactly one key.`, t.Name)
		} else if v.Children[0].Value.Kind == ast.NullValue {
			c.Report(at(v.Position), `Field "%s.%s" must be non-null.`, t.Name, v.Children[0].Name)
		}
	}
}

// checkScalarLiteral validates literals for the built-in scalars. Custom
// scalars accept any literal.
func checkScalarLiteral(name string, v *ast.Value) string {
	switch name {
	case "Int":
		if v.Kind != ast.IntValue {
			return fmt.Sprintf("Int cannot represent non-integer value: %s", v.String())
		}
		n, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
			return fmt.Sprintf("Int cannot represent non 32-bit signed integer value: %s", v.Raw)
		}
	case "Float":
		if v.Kind != ast.IntValue && v.Kind != ast.FloatValue {
			return fmt.Sprintf("Float cannot represent non numeric value: %s", v.String())
		}
	case "String":
		if v.Kind != ast.StringValue && v.Kind != ast.BlockValue {
			return fmt.Sprintf("String cannot represent a non string value: %s", v.String())
		}
	case "Boolean":
		if v.Kind != ast.BooleanValue {
			return fmt.Sprintf("Boolean cannot represent a non boolean value: %s", v.String())
		}
	case "ID":
		if v.Kind != ast.StringValue && v.Kind != ast.BlockValue && v.Kind != ast.IntValue {
			return fmt.Sprintf("ID cannot represent a non-string and non-integer value: %s", v.String())
		}
	}
	return ""
}

func nullable(t *schema.TypeRef) *schema.TypeRef {
	if t.IsNonNull() {
		return t.OfType
	}
	return t
}
