package validation

import "sort"

// Rule is a named validation rule. Lower priorities run first.
type Rule interface {
	Name() string
	Priority() int
	// Cacheable reports whether the rule's outcome depends only on the
	// document and schema, so a cached document need not be checked again.
	Cacheable() bool
	run(c *Context)
}

type ruleHeader struct {
	name      string
	priority  int
	cacheable bool
}

func (h ruleHeader) Name() string    { return h.name }
func (h ruleHeader) Priority() int   { return h.priority }
func (h ruleHeader) Cacheable() bool { return h.cacheable }

type inspectorRule struct {
	ruleHeader
	inspect func(c *Context)
}

func (r *inspectorRule) run(c *Context) { r.inspect(c) }

type visitorRule struct {
	ruleHeader
	visitor Visitor
}

func (r *visitorRule) run(c *Context) { walk(c, r.visitor) }

// NewInspectorRule creates a rule that examines the document directly.
func NewInspectorRule(name string, priority int, cacheable bool, inspect func(c *Context)) Rule {
	return &inspectorRule{ruleHeader{name, priority, cacheable}, inspect}
}

// NewVisitorRule creates a rule driven by a walk over every operation.
func NewVisitorRule(name string, priority int, cacheable bool, v Visitor) Rule {
	return &visitorRule{ruleHeader{name, priority, cacheable}, v}
}

// Builder assembles a rule set. Rules with the same name replace each other.
type Builder struct {
	rules []Rule
}

func NewBuilder() *Builder { return &Builder{} }

// Add appends rules, replacing any already registered under the same name.
func (b *Builder) Add(rules ...Rule) *Builder {
	for _, r := range rules {
		b.Remove(r.Name())
		b.rules = append(b.rules, r)
	}
	return b
}

// Remove drops rules by name.
func (b *Builder) Remove(names ...string) *Builder {
	out := b.rules[:0]
	for _, r := range b.rules {
		keep := true
		for _, n := range names {
			if r.Name() == n {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	b.rules = out
	return b
}

// Rules returns the registered rules ordered by priority, registration order
// breaking ties.
func (b *Builder) Rules() []Rule {
	rules := append([]Rule(nil), b.rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority() < rules[j].Priority() })
	return rules
}

// Build freezes the rule set into a Validator.
func (b *Builder) Build(opts ...Option) *Validator {
	v := &Validator{rules: b.Rules(), poolSize: 64}
	for _, o := range opts {
		o(v)
	}
	v.pool = NewContextPool(v.poolSize)
	return v
}
