// Package pipeline turns GraphQL requests into results through an ordered
// chain of stages: error boundary, timeout, instrumentation, warm-up,
// document resolution, persisted operation policy, validation, operation
// caching and compilation, variable coercion, complexity limits, operation
// kind policy, persisted operation write-back and execution.
//
// Stages share one RequestContext. A stage either finishes the request by
// setting RequestContext.Result or calls the next stage, optionally acting on
// the state once the inner stages returned. Anything a stage finds already
// populated (document, validation result, operation) is taken as resolved.
package pipeline

import (
	"context"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/hanpama/graphcore/internal/cache"
	"github.com/hanpama/graphcore/internal/complexity"
	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/executor"
	"github.com/hanpama/graphcore/internal/features"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/persisted"
	"github.com/hanpama/graphcore/internal/reqid"
	"github.com/hanpama/graphcore/internal/validation"
)

// Handler runs the remaining stages for one request.
type Handler func(ctx context.Context, rc *RequestContext) error

// Middleware wraps the inner chain.
type Middleware func(next Handler) Handler

// Interceptor wraps every stage by name.
type Interceptor func(stage string, next Handler) Handler

// Stage is a named middleware.
type Stage struct {
	Name       string
	Middleware Middleware
}

// Stage names in execution order.
const (
	StageErrorBoundary     = "error-boundary"
	StageTimeout           = "timeout"
	StageInstrumentation   = "instrumentation"
	StageWarmup            = "warmup"
	StageDocument          = "document"
	StagePersistedRequired = "persisted-required"
	StageValidation        = "validation"
	StageOperationCache    = "operation-cache"
	StageOperation         = "operation"
	StageVariables         = "variables"
	StageComplexity        = "complexity"
	StageAllowedOperations = "allowed-operations"
	StagePersistedWrite    = "persisted-write"
	StageExecution         = "execution"
)

// Compose builds a handler from stages. The first stage is the outermost.
func Compose(stages []Stage, intercept Interceptor) Handler {
	h := Handler(func(context.Context, *RequestContext) error { return nil })
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i].Middleware(h)
		if intercept != nil {
			h = intercept(stages[i].Name, h)
		}
	}
	return h
}

// Options configures a Pipeline.
type Options struct {
	// Timeout bounds a request; 0 disables it. The ExecutionTimeout feature
	// overrides it per request.
	Timeout                 time.Duration
	IncludeExceptionDetails bool
	EnableIntrospection     bool
	// AllowedOperations restricts the executable operation kinds. Empty
	// allows every kind.
	AllowedOperations []ast.Operation
	// OnlyPersisted rejects documents that were not read from storage.
	OnlyPersisted bool
	// PersistWrites stores documents that clients ask to persist.
	PersistWrites    bool
	BatchFailFast    bool
	BatchParallelism int
	Complexity       *complexity.Limits

	Validation   []validation.Option
	Validator    *validation.Validator
	Documents    *cache.Documents
	Operations   *cache.Cache[*operation.Prepared]
	Storage      persisted.Storage
	Hasher       HashProvider
	ErrorHandler ErrorHandler
	Transactions TransactionScopeHandler
	Logger       *zap.Logger
	Bus          *eventbus.Bus
	Features     *features.Store
	RootValue    func(ctx context.Context, rc *RequestContext) any
	Interceptor  Interceptor
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithExceptionDetails() Option       { return func(o *Options) { o.IncludeExceptionDetails = true } }
func WithIntrospection(enable bool) Option {
	return func(o *Options) { o.EnableIntrospection = enable }
}
func WithAllowedOperations(kinds ...ast.Operation) Option {
	return func(o *Options) { o.AllowedOperations = kinds }
}
func WithOnlyPersisted() Option { return func(o *Options) { o.OnlyPersisted = true } }
func WithPersistWrites() Option { return func(o *Options) { o.PersistWrites = true } }
func WithBatchFailFast() Option { return func(o *Options) { o.BatchFailFast = true } }
func WithBatchParallelism(n int) Option {
	return func(o *Options) { o.BatchParallelism = n }
}
func WithComplexity(l *complexity.Limits) Option { return func(o *Options) { o.Complexity = l } }

// WithValidation passes options to the default validator.
func WithValidation(opts ...validation.Option) Option {
	return func(o *Options) { o.Validation = append(o.Validation, opts...) }
}
func WithValidator(v *validation.Validator) Option { return func(o *Options) { o.Validator = v } }
func WithDocumentCache(c *cache.Documents) Option  { return func(o *Options) { o.Documents = c } }
func WithOperationCache(c *cache.Cache[*operation.Prepared]) Option {
	return func(o *Options) { o.Operations = c }
}
func WithStorage(s persisted.Storage) Option { return func(o *Options) { o.Storage = s } }
func WithHashProvider(h HashProvider) Option { return func(o *Options) { o.Hasher = h } }
func WithErrorHandler(h ErrorHandler) Option { return func(o *Options) { o.ErrorHandler = h } }
func WithTransactions(h TransactionScopeHandler) Option {
	return func(o *Options) { o.Transactions = h }
}
func WithLogger(l *zap.Logger) Option       { return func(o *Options) { o.Logger = l } }
func WithBus(b *eventbus.Bus) Option        { return func(o *Options) { o.Bus = b } }
func WithFeatures(s *features.Store) Option { return func(o *Options) { o.Features = s } }
func WithInterceptor(i Interceptor) Option  { return func(o *Options) { o.Interceptor = i } }
func WithRootValue(fn func(ctx context.Context, rc *RequestContext) any) Option {
	return func(o *Options) { o.RootValue = fn }
}

// Pipeline processes requests against one executor. It is safe for
// concurrent use.
type Pipeline struct {
	exec     *executor.Executor
	opts     Options
	handler  Handler
	stages   []Stage
	features *features.Store

	// revalidate is set when the validator has rules that must run for
	// cached documents too.
	revalidate bool
}

// New builds a pipeline with the default stages.
func New(exec *executor.Executor, opts ...Option) *Pipeline {
	o := Options{}
	for _, f := range opts {
		f(&o)
	}
	if o.Validator == nil {
		b := validation.NewBuilder().Add(validation.DefaultRules()...)
		if !o.EnableIntrospection {
			b.Add(validation.IntrospectionRule())
		}
		o.Validator = b.Build(o.Validation...)
	}
	if o.Hasher == nil {
		o.Hasher = sha256Provider{}
	}
	if o.ErrorHandler == nil {
		o.ErrorHandler = DefaultErrorHandler{IncludeExceptionDetails: o.IncludeExceptionDetails}
	}
	if o.Transactions == nil {
		o.Transactions = noopTransactions{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Features == nil {
		o.Features = features.New()
	}

	p := &Pipeline{exec: exec, opts: o, features: o.Features}
	for _, r := range o.Validator.Rules() {
		if !r.Cacheable() {
			p.revalidate = true
		}
	}
	p.stages = []Stage{
		{StageErrorBoundary, p.errorBoundary},
		{StageTimeout, p.timeout},
		{StageInstrumentation, p.instrumentation},
		{StageWarmup, p.warmup},
		{StageDocument, p.resolveDocument},
		{StagePersistedRequired, p.requirePersisted},
		{StageValidation, p.validate},
		{StageOperationCache, p.operationCache},
		{StageOperation, p.compileOperation},
		{StageVariables, p.coerceVariables},
		{StageComplexity, p.checkComplexity},
		{StageAllowedOperations, p.checkAllowedOperations},
		{StagePersistedWrite, p.writePersisted},
		{StageExecution, p.dispatch},
	}
	p.handler = Compose(p.stages, o.Interceptor)
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Executor returns the executor requests are dispatched to.
func (p *Pipeline) Executor() *executor.Executor { return p.exec }

// Hasher returns the provider document hashes are computed with.
func (p *Pipeline) Hasher() HashProvider { return p.opts.Hasher }

// NewFeatures returns a request scoped feature store layered over the
// pipeline's defaults.
func (p *Pipeline) NewFeatures() *features.Store {
	return features.New(features.WithParent(p.features))
}

// Execute runs req through the stages. The result is never nil. The error is
// non-nil only when the caller's context ended before a result was produced.
func (p *Pipeline) Execute(ctx context.Context, req *Request) (*Result, error) {
	id, ok := reqid.FromContext(ctx)
	if !ok {
		ctx, id = reqid.NewContext(ctx)
	}
	rc := &RequestContext{
		Request:     req,
		RequestID:   id,
		Schema:      p.exec.Schema(),
		ContextData: map[string]any{},
		caller:      ctx,
	}
	parent := req.Features
	if parent == nil {
		parent = p.features
	}
	rc.Features = features.New(
		features.WithParent(parent),
		features.WithOnSet(func(key string, value any) {
			if value == nil {
				delete(rc.ContextData, key)
				return
			}
			rc.ContextData[key] = value
		}),
	)
	rc.Features.Each(func(key string, value any) { rc.ContextData[key] = value })
	features.Set(rc.Features, features.RequestID, id)

	err := p.handler(ctx, rc)
	return rc.Result, err
}
