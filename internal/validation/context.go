package validation

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

// Error codes attached to validation errors.
const (
	CodeValidationFailed        = "GRAPHQL_VALIDATION_FAILED"
	CodeTooManyErrors           = "VALIDATION_TOO_MANY_ERRORS"
	CodeIntrospectionNotAllowed = "INTROSPECTION_NOT_ALLOWED"
)

// VariableUsage is a variable reference together with the type expected at
// the position it appears in.
type VariableUsage struct {
	Value *ast.Value
	// Expected is nil when the position could not be typed.
	Expected *schema.TypeRef
	// HasLocationDefault is set when the argument or input field that receives
	// the variable declares a non-null default value.
	HasLocationDefault bool
}

// Context is the mutable state of one validation pass. Contexts are pooled;
// everything a rule may touch is cleared by Reset.
type Context struct {
	schema      *schema.Schema
	document    *language.QueryDocument
	fragments   map[string]*ast.FragmentDefinition
	ContextData map[string]any

	errors        gqlerror.List
	maxErrors     int
	tooManyErrors bool
	statusCode    int

	rule      string
	operation *ast.OperationDefinition

	// traversal stacks maintained by the walker
	path        []string
	parentTypes []*schema.Type
	types       []*schema.TypeRef
	fieldDefs   []*schema.Field
	visiting    map[string]struct{}

	// per-rule scratch; cleared before each rule runs
	Names     map[string]int
	Visited   map[string]struct{}
	Variables map[string]*ast.VariableDefinition
	Usages    []VariableUsage
	Spreads   []*ast.FragmentSpread
	Stack     []string
	pairs     map[fieldPair]struct{}
	Cycles    *FieldDepthCycleTracker
}

func newContext() *Context {
	return &Context{
		fragments: make(map[string]*ast.FragmentDefinition),
		visiting:  make(map[string]struct{}),
		Names:     make(map[string]int),
		Visited:   make(map[string]struct{}),
		Variables: make(map[string]*ast.VariableDefinition),
		pairs:     make(map[fieldPair]struct{}),
		Cycles:    NewFieldDepthCycleTracker(),
	}
}

func (c *Context) init(s *schema.Schema, doc *language.QueryDocument, contextData map[string]any, maxErrors int) {
	c.schema = s
	c.document = doc
	c.ContextData = contextData
	c.maxErrors = maxErrors
	for _, f := range doc.Fragments {
		if _, exists := c.fragments[f.Name]; !exists {
			c.fragments[f.Name] = f
		}
	}
}

// Reset clears all state so the context can serve another request.
func (c *Context) Reset() {
	c.schema = nil
	c.document = nil
	c.ContextData = nil
	clear(c.fragments)
	c.errors = nil
	c.maxErrors = 0
	c.tooManyErrors = false
	c.statusCode = 0
	c.rule = ""
	c.operation = nil
	c.path = c.path[:0]
	c.parentTypes = c.parentTypes[:0]
	c.types = c.types[:0]
	c.fieldDefs = c.fieldDefs[:0]
	clear(c.visiting)
	c.resetScratch()
}

func (c *Context) resetScratch() {
	clear(c.Names)
	clear(c.Visited)
	clear(c.Variables)
	clear(c.pairs)
	c.Usages = c.Usages[:0]
	c.Spreads = c.Spreads[:0]
	c.Stack = c.Stack[:0]
	c.Cycles.Clear()
}

func (c *Context) Schema() *schema.Schema             { return c.schema }
func (c *Context) Document() *language.QueryDocument { return c.document }

// Operation returns the operation being walked, nil for inspector rules.
func (c *Context) Operation() *ast.OperationDefinition { return c.operation }

// Fragment returns the first fragment definition with the given name.
func (c *Context) Fragment(name string) *ast.FragmentDefinition { return c.fragments[name] }

// Errors returns the errors reported so far.
func (c *Context) Errors() gqlerror.List { return c.errors }

// TooManyErrors reports whether the error budget was exhausted.
func (c *Context) TooManyErrors() bool { return c.tooManyErrors }

// SetStatusCode records a transport status hint for the result.
func (c *Context) SetStatusCode(code int) { c.statusCode = code }

// Path returns the response names from the operation root to the current field.
func (c *Context) Path() []string { return c.path }

// ParentType is the composite type owning the current selection, nil when unknown.
func (c *Context) ParentType() *schema.Type {
	if len(c.parentTypes) == 0 {
		return nil
	}
	return c.parentTypes[len(c.parentTypes)-1]
}

// Type is the output type of the current field or fragment, nil when unknown.
func (c *Context) Type() *schema.TypeRef {
	if len(c.types) == 0 {
		return nil
	}
	return c.types[len(c.types)-1]
}

// FieldDef is the definition of the current field, nil when unknown.
func (c *Context) FieldDef() *schema.Field {
	if len(c.fieldDefs) == 0 {
		return nil
	}
	return c.fieldDefs[len(c.fieldDefs)-1]
}

// NamedType resolves the innermost named type of a reference.
func (c *Context) NamedType(t *schema.TypeRef) *schema.Type {
	if t == nil {
		return nil
	}
	return c.schema.ResolveNamedType(t.GetNamedType())
}

// Report records a validation error at the given positions.
func (c *Context) Report(pos []*ast.Position, format string, args ...any) *gqlerror.Error {
	return c.ReportCode(CodeValidationFailed, pos, format, args...)
}

// ReportCode records a validation error with an explicit extensions code.
func (c *Context) ReportCode(code string, pos []*ast.Position, format string, args ...any) *gqlerror.Error {
	err := &gqlerror.Error{
		Message: fmt.Sprintf(format, args...),
		Rule:    c.rule,
		Extensions: map[string]any{
			"code": code,
		},
	}
	for _, p := range pos {
		err.Locations = append(err.Locations, language.Locations(p)...)
	}
	if c.tooManyErrors {
		return err
	}
	c.errors = append(c.errors, err)
	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		c.tooManyErrors = true
	}
	return err
}

func at(nodes ...*ast.Position) []*ast.Position { return nodes }
