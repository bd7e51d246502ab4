// Package validation checks executable documents against a schema with an
// ordered, extensible set of rules.
package validation

import (
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

// Result is the outcome of a validation pass. It is never mutated after
// being returned.
type Result struct {
	Errors        gqlerror.List
	TooManyErrors bool
	// StatusCode is a transport hint set by policy rules, 0 when unset.
	StatusCode int
}

// OK is shared by every pass that produced no errors.
var OK = &Result{}

func (r *Result) HasErrors() bool { return r != nil && len(r.Errors) > 0 }

// Validator runs a frozen rule set. It is safe for concurrent use.
type Validator struct {
	rules    []Rule
	pool     *ContextPool
	poolSize int

	maxErrors    int
	cycleDefault int
	cycleMaxima  map[string]int
}

type Option func(*Validator)

// WithMaxErrors stops validation once n errors were reported.
func WithMaxErrors(n int) Option { return func(v *Validator) { v.maxErrors = n } }

// WithPoolSize bounds the number of idle contexts kept for reuse.
func WithPoolSize(n int) Option { return func(v *Validator) { v.poolSize = n } }

// WithCycleLimits configures how often a coordinate may recur on one path.
// A zero default leaves unconfigured coordinates unlimited.
func WithCycleLimits(defaultMax int, maxima map[string]int) Option {
	return func(v *Validator) {
		v.cycleDefault = defaultMax
		v.cycleMaxima = maxima
	}
}

// New creates a validator with the default rule set.
func New(opts ...Option) *Validator {
	return NewBuilder().Add(DefaultRules()...).Build(opts...)
}

// Rules returns the frozen rule set.
func (v *Validator) Rules() []Rule { return v.rules }

// Pool exposes the context pool.
func (v *Validator) Pool() *ContextPool { return v.pool }

// Validate runs the rules over doc. With onlyNonCacheable set, rules whose
// outcome depends solely on the document are skipped.
func (v *Validator) Validate(s *schema.Schema, doc *language.QueryDocument, contextData map[string]any, onlyNonCacheable bool) *Result {
	c := v.pool.Get()
	defer v.pool.Return(c)

	c.init(s, doc, contextData, v.maxErrors)
	for _, r := range v.rules {
		if onlyNonCacheable && r.Cacheable() {
			continue
		}
		c.resetScratch()
		c.Cycles.Initialize(v.cycleDefault, v.cycleMaxima)
		c.rule = r.Name()
		r.run(c)
		if c.tooManyErrors {
			break
		}
	}

	if len(c.errors) == 0 {
		return OK
	}
	res := &Result{
		Errors:        append(gqlerror.List(nil), c.errors...),
		TooManyErrors: c.tooManyErrors,
		StatusCode:    c.statusCode,
	}
	if c.tooManyErrors {
		res.Errors = append(res.Errors, &gqlerror.Error{
			Message:    "The maximum number of validation errors was reached; validation was aborted.",
			Extensions: map[string]any{"code": CodeTooManyErrors},
		})
	}
	return res
}
