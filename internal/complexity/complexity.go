// Package complexity statically measures a prepared operation and enforces
// configured depth and complexity limits.
package complexity

import (
	"fmt"
	"math"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/variables"
)

const (
	CodeMaxComplexityExceeded = "MAX_COMPLEXITY_EXCEEDED"
	CodeMaxDepthExceeded      = "MAX_DEPTH_EXCEEDED"
)

// Limits configures the analysis. Zero maxima disable the respective check.
type Limits struct {
	Enabled                   bool     `yaml:"enabled" env:"ENABLED" envDefault:"false"`
	MaxComplexity             int      `yaml:"max_complexity" env:"MAX_COMPLEXITY"`
	MaxDepth                  int      `yaml:"max_depth" env:"MAX_DEPTH"`
	DefaultFieldCost          int      `yaml:"default_field_cost" env:"DEFAULT_FIELD_COST" envDefault:"1"`
	IgnorePersistedOperations bool     `yaml:"ignore_persisted_operations" env:"IGNORE_PERSISTED_OPERATIONS" envDefault:"false"`
	MultiplierArguments       []string `yaml:"multiplier_arguments" env:"MULTIPLIER_ARGUMENTS" envDefault:"first,last,limit"`
}

// ApplyLimit reports whether the limits apply to an operation.
func (l *Limits) ApplyLimit(isPersisted bool) bool {
	return l != nil && l.Enabled && (!isPersisted || !l.IgnorePersistedOperations)
}

// Measure is the outcome of analysing one operation.
type Measure struct {
	Depth            int
	Complexity       int
	TotalFields      int
	RootFields       int
	RootFieldAliases int
}

// Analyze walks the included fields of p. Abstract selections count the most
// expensive possible object type.
func Analyze(s *schema.Schema, p *operation.Prepared, vars variables.Values, l *Limits) Measure {
	a := &analyzer{schema: s, vars: vars, cost: 1}
	if l != nil {
		if l.DefaultFieldCost > 0 {
			a.cost = l.DefaultFieldCost
		}
		a.multipliers = l.MultiplierArguments
	}
	var m Measure
	for _, f := range p.Root {
		if !f.Included(vars) {
			continue
		}
		if f.ResponseName == f.Name {
			m.RootFields++
		} else {
			m.RootFieldAliases++
		}
	}
	m.Depth, m.Complexity, m.TotalFields = a.selectionSet(p.Root)
	return m
}

// Check compares m against the limits and returns the first violation.
func (l *Limits) Check(m Measure, isPersisted bool) *gqlerror.Error {
	if !l.ApplyLimit(isPersisted) {
		return nil
	}
	if l.MaxDepth > 0 && m.Depth > l.MaxDepth {
		return limitError(CodeMaxDepthExceeded,
			fmt.Sprintf("The query depth %d exceeds the max query depth allowed (%d)", m.Depth, l.MaxDepth),
			l.MaxDepth, m.Depth)
	}
	if l.MaxComplexity > 0 && m.Complexity > l.MaxComplexity {
		return limitError(CodeMaxComplexityExceeded,
			fmt.Sprintf("The query complexity %d exceeds the max query complexity allowed (%d)", m.Complexity, l.MaxComplexity),
			l.MaxComplexity, m.Complexity)
	}
	return nil
}

func limitError(code, message string, allowed, detected int) *gqlerror.Error {
	return &gqlerror.Error{
		Message: message,
		Extensions: map[string]any{
			"code":     code,
			"allowed":  allowed,
			"detected": detected,
		},
	}
}

type analyzer struct {
	schema      *schema.Schema
	vars        variables.Values
	cost        int
	multipliers []string
}

func (a *analyzer) selectionSet(set operation.SelectionSet) (depth, complexity, fields int) {
	for _, f := range set {
		if !f.Included(a.vars) {
			continue
		}
		d, c, n := a.field(f)
		depth = max(depth, d)
		complexity = addSat(complexity, c)
		fields = addSat(fields, n)
	}
	return depth, complexity, fields
}

func (a *analyzer) field(f *operation.Field) (depth, complexity, fields int) {
	if !f.HasChildren() {
		return 1, a.cost, 1
	}
	var childDepth, childCost, childFields int
	for _, objectType := range a.schema.PossibleObjectTypes(f.Definition.Type.GetNamedType()) {
		d, c, n := a.selectionSet(f.Children(objectType))
		childDepth = max(childDepth, d)
		childCost = max(childCost, c)
		childFields = max(childFields, n)
	}
	return childDepth + 1, addSat(a.cost, mulSat(a.multiplier(f), childCost)), addSat(childFields, 1)
}

// addSat and mulSat clamp at math.MaxInt so client supplied list sizes
// cannot wrap the estimate around. Both operands are non-negative.
func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func mulSat(a, b int) int {
	if a != 0 && b > math.MaxInt/a {
		return math.MaxInt
	}
	return a * b
}

// multiplier reads the first configured list-size argument of f.
func (a *analyzer) multiplier(f *operation.Field) int {
	if len(a.multipliers) == 0 || f.Definition == nil || len(f.Definition.Arguments) == 0 {
		return 1
	}
	args, err := variables.ArgumentValues(a.schema, f.Definition.Arguments, f.Node().Arguments, a.vars)
	if err != nil {
		return 1
	}
	for _, name := range a.multipliers {
		if n, ok := args[name].(int); ok && n > 0 {
			return n
		}
	}
	return 1
}
