package variables

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/schema"
)

// ValueFromAST converts a literal, substituting variables from vars, and
// coerces the result to typ. Variables absent from vars are treated as null.
func ValueFromAST(s *schema.Schema, v *ast.Value, typ *schema.TypeRef, vars Values) (any, error) {
	raw, err := literal(v, vars)
	if err != nil {
		return nil, err
	}
	return CoerceInput(s, raw, typ)
}

// ArgumentValues coerces the arguments of a field or directive invocation.
// Arguments that are omitted receive their declared default.
func ArgumentValues(s *schema.Schema, defs []*schema.InputValue, args ast.ArgumentList, vars Values) (map[string]any, error) {
	out := make(map[string]any, len(defs))
	for _, def := range defs {
		arg := args.ForName(def.Name)
		if arg != nil && arg.Value.Kind == ast.Variable {
			if _, provided := vars[arg.Value.Raw]; !provided {
				arg = nil
			}
		}
		if arg == nil {
			if def.HasDefault {
				v, err := CoerceInput(s, normalizeDefault(def.DefaultValue), def.Type)
				if err != nil {
					return nil, fmt.Errorf("argument \"%s\": %w", def.Name, err)
				}
				out[def.Name] = v
			} else if def.Type.IsNonNull() {
				return nil, fmt.Errorf("Argument \"%s\" of required type \"%s\" was not provided.", def.Name, def.Type.String())
			}
			continue
		}
		v, err := ValueFromAST(s, arg.Value, def.Type, vars)
		if err != nil {
			return nil, fmt.Errorf("argument \"%s\": %w", def.Name, err)
		}
		out[def.Name] = v
	}
	return out, nil
}

func literal(v *ast.Value, vars Values) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case ast.Variable:
		return vars[v.Raw], nil
	case ast.IntValue:
		n, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %s", v.Raw)
		}
		return n, nil
	case ast.FloatValue:
		return strconv.ParseFloat(v.Raw, 64)
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			item, err := literal(c.Value, vars)
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			if c.Value.Kind == ast.Variable {
				if _, provided := vars[c.Value.Raw]; !provided {
					continue
				}
			}
			field, err := literal(c.Value, vars)
			if err != nil {
				return nil, err
			}
			out[c.Name] = field
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported literal kind %d", v.Kind)
}
