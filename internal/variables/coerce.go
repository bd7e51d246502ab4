// Package variables coerces raw request variables against the variable
// definitions of an operation.
package variables

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

// CodeCoercionFailed is the extensions code of variable coercion errors.
const CodeCoercionFailed = "VARIABLE_COERCION_FAILED"

// Values holds coerced variables by name.
type Values map[string]any

// CoercionError lists every variable of one set that failed to coerce.
type CoercionError struct {
	Errors gqlerror.List
}

func (e *CoercionError) Error() string { return e.Errors.Error() }

// Coerce produces typed bindings for defs from raw. Missing required
// variables and type mismatches are reported at the variable definition.
func Coerce(s *schema.Schema, defs ast.VariableDefinitionList, raw map[string]any) (Values, error) {
	coerced := make(Values, len(defs))
	var errs gqlerror.List
	for _, def := range defs {
		name := def.Variable
		typ := schema.FromAST(def.Type)
		value, ok := raw[name]

		switch {
		case !ok && def.DefaultValue != nil:
			v, err := ValueFromAST(s, def.DefaultValue, typ, nil)
			if err != nil {
				errs = append(errs, variableError(def, "Variable \"$%s\" has invalid default value: %s", name, err))
				continue
			}
			coerced[name] = v
		case typ.IsNonNull() && !ok:
			errs = append(errs, variableError(def, "Variable \"$%s\" of required type \"%s\" was not provided.", name, typ.String()))
		case typ.IsNonNull() && value == nil:
			errs = append(errs, variableError(def, "Variable \"$%s\" of non-null type \"%s\" must not be null.", name, typ.String()))
		case !ok:
		case value == nil:
			coerced[name] = nil
		default:
			v, err := CoerceInput(s, value, typ)
			if err != nil {
				errs = append(errs, variableError(def, "Variable \"$%s\" got invalid value %s; %s", name, describe(value), err))
				continue
			}
			coerced[name] = v
		}
	}
	if len(errs) > 0 {
		return nil, &CoercionError{Errors: errs}
	}
	return coerced, nil
}

// BatchResult is the outcome for one variable set of a batch.
type BatchResult struct {
	Values Values
	Err    error
}

// CoerceBatch coerces each set independently and preserves input order.
// Without failFast every set is attempted and the returned error aggregates
// all failures; with failFast coercion stops at the first failing set.
func CoerceBatch(s *schema.Schema, defs ast.VariableDefinitionList, sets []map[string]any, failFast bool) ([]BatchResult, error) {
	results := make([]BatchResult, len(sets))
	var merr *multierror.Error
	for i, raw := range sets {
		values, err := Coerce(s, defs, raw)
		results[i] = BatchResult{Values: values, Err: err}
		if err == nil {
			continue
		}
		merr = multierror.Append(merr, fmt.Errorf("variable set %d: %w", i, err))
		if failFast {
			break
		}
	}
	return results, merr.ErrorOrNil()
}

func variableError(def *ast.VariableDefinition, format string, args ...any) *gqlerror.Error {
	return &gqlerror.Error{
		Message:   fmt.Sprintf(format, args...),
		Locations: language.Locations(def.Position),
		Extensions: map[string]any{
			"code":     CodeCoercionFailed,
			"variable": def.Variable,
		},
	}
}

// CoerceInput converts an external (JSON decoded) value to the given input type.
func CoerceInput(s *schema.Schema, value any, typ *schema.TypeRef) (any, error) {
	if typ.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("Expected non-nullable type \"%s\" not to be null.", typ.String())
		}
		return CoerceInput(s, value, typ.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if typ.Kind == schema.TypeRefKindList {
		if items, ok := value.([]any); ok {
			out := make([]any, len(items))
			for i, item := range items {
				v, err := CoerceInput(s, item, typ.OfType)
				if err != nil {
					return nil, fmt.Errorf("at index %d: %w", i, err)
				}
				out[i] = v
			}
			return out, nil
		}
		v, err := CoerceInput(s, value, typ.OfType)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}

	named := s.ResolveNamedType(typ.Named)
	if named == nil {
		return nil, fmt.Errorf("Unknown type \"%s\".", typ.Named)
	}
	switch named.Kind {
	case schema.TypeKindInputObject:
		return coerceInputObject(s, value, named)
	case schema.TypeKindEnum:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("Enum \"%s\" cannot represent non-string value: %s.", named.Name, describe(value))
		}
		if named.EnumValue(str) == nil {
			return nil, fmt.Errorf("Value \"%s\" does not exist in \"%s\" enum.", str, named.Name)
		}
		return str, nil
	case schema.TypeKindScalar:
		return coerceScalar(named.Name, value)
	}
	return nil, fmt.Errorf("Type \"%s\" is not an input type.", named.Name)
}

func coerceInputObject(s *schema.Schema, value any, t *schema.Type) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Expected type \"%s\" to be an object.", t.Name)
	}
	for name := range fields {
		if t.InputField(name) == nil {
			return nil, fmt.Errorf("Field \"%s\" is not defined by type \"%s\".", name, t.Name)
		}
	}
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		v, present := fields[f.Name]
		if !present {
			if f.HasDefault {
				def, err := CoerceInput(s, normalizeDefault(f.DefaultValue), f.Type)
				if err != nil {
					return nil, err
				}
				out[f.Name] = def
			} else if f.Type.IsNonNull() {
				return nil, fmt.Errorf("Field \"%s\" of required type \"%s\" was not provided.", f.Name, f.Type.String())
			}
			continue
		}
		cv, err := CoerceInput(s, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("at field \"%s\": %w", f.Name, err)
		}
		out[f.Name] = cv
	}
	if t.OneOf {
		if len(fields) != 1 {
			return nil, fmt.Errorf("OneOf Input Object \"%s\" must specify exactly one key.", t.Name)
		}
		for name, v := range fields {
			if v == nil {
				return nil, fmt.Errorf("Field \"%s\" of OneOf Input Object \"%s\" must be non-null.", name, t.Name)
			}
		}
	}
	return out, nil
}

type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

func coerceScalar(name string, value any) (any, error) {
	switch name {
	case "Int":
		return coerceInt(value)
	case "Float":
		return coerceFloat(value)
	case "String":
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("String cannot represent a non string value: %s", describe(value))
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %s", describe(value))
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case jsonNumber:
			if n, err := v.Int64(); err == nil {
				return strconv.FormatInt(n, 10), nil
			}
		default:
			if n, err := coerceInt(value); err == nil {
				return strconv.Itoa(n.(int)), nil
			}
		}
		return nil, fmt.Errorf("ID cannot represent value: %s", describe(value))
	}
	return value, nil
}

func coerceInt(value any) (any, error) {
	var n float64
	switch v := value.(type) {
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case float64:
		n = v
	case jsonNumber:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %s", v.String())
		}
		n = f
	default:
		return nil, fmt.Errorf("Int cannot represent non-integer value: %s", describe(value))
	}
	if n != math.Trunc(n) {
		return nil, fmt.Errorf("Int cannot represent non-integer value: %s", describe(value))
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %s", describe(value))
	}
	return int(n), nil
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case jsonNumber:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("Float cannot represent non numeric value: %s", describe(value))
}

// normalizeDefault turns schema default values into external input values.
func normalizeDefault(v any) any {
	switch v := v.(type) {
	case schema.EnumLiteral:
		return string(v)
	case int64:
		return int(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeDefault(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalizeDefault(item)
		}
		return out
	}
	return v
}

func describe(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case nil:
		return "null"
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = describe(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}
