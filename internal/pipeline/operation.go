package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/hanpama/graphcore/internal/cache"
	"github.com/hanpama/graphcore/internal/complexity"
	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
	"github.com/hanpama/graphcore/internal/features"
	"github.com/hanpama/graphcore/internal/logging"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/variables"
)

// operationCache serves prepared operations by schema name, schema version
// and operation id, and stores freshly compiled ones after the inner stages
// returned.
func (p *Pipeline) operationCache(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		cacheable := p.opts.Operations.Enabled() && rc.DocumentID != ""
		var key string
		if cacheable {
			rc.OperationID = operation.ID(rc.DocumentID, rc.Request.OperationName)
			key = cache.OperationKey(rc.Schema.Name, rc.Schema.Version, rc.OperationID)
		}
		if cacheable && rc.Operation == nil {
			if prepared, ok := p.opts.Operations.TryGet(key); ok {
				rc.Operation = prepared
				rc.IsCachedOperation = true
				eventbus.Emit(p.opts.Bus, ctx, events.OperationCacheHit{Key: key})
			}
		}
		if err := next(ctx, rc); err != nil {
			return err
		}
		if !cacheable || rc.IsCachedOperation || rc.Operation == nil || rc.ValidationResult.HasErrors() {
			return nil
		}
		if p.opts.Operations.TryAdd(key, rc.Operation) {
			p.opts.Logger.Debug("operation cached", logging.WithRequestID(rc.RequestID), zap.String("key", key))
			eventbus.Emit(p.opts.Bus, ctx, events.OperationCacheAdd{Key: key})
		}
		return nil
	}
}

func (p *Pipeline) compileOperation(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if rc.Operation == nil {
			prepared, err := operation.Compile(rc.Schema, rc.Document, rc.DocumentID, rc.Request.OperationName)
			if err != nil {
				var gqlErr *gqlerror.Error
				if !errors.As(err, &gqlErr) {
					return err
				}
				rc.Result = errorResult(0, gqlErr)
				return nil
			}
			rc.Operation = prepared
		}
		rc.OperationID = rc.Operation.ID
		return next(ctx, rc)
	}
}

// coerceVariables accepts either one variable set or a batch of sets. Batch
// sets are coerced independently; a failing set only fails its own result
// unless fail-fast is configured.
func (p *Pipeline) coerceVariables(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if rc.Variables != nil {
			return next(ctx, rc)
		}
		req := rc.Request
		defs := rc.Operation.Definition.VariableDefinitions
		switch {
		case req.VariableSets != nil && req.Variables != nil:
			return NewGraphQLError(CodeInvalidRequest, http.StatusBadRequest,
				"A request must not carry both variables and variable sets.")
		case req.VariableSets != nil:
			results, _ := variables.CoerceBatch(rc.Schema, defs, req.VariableSets, p.opts.BatchFailFast)
			rc.Variables = make([]variables.Values, len(req.VariableSets))
			rc.VariableErrors = make([]error, len(req.VariableSets))
			for i, r := range results {
				rc.Variables[i] = r.Values
				rc.VariableErrors[i] = r.Err
				if r.Err != nil && p.opts.BatchFailFast {
					rc.Result = errorResult(0, coercionErrors(r.Err)...)
					return nil
				}
			}
		default:
			values, err := variables.Coerce(rc.Schema, defs, req.Variables)
			if err != nil {
				rc.Result = errorResult(0, coercionErrors(err)...)
				return nil
			}
			rc.Variables = []variables.Values{values}
		}
		return next(ctx, rc)
	}
}

func coercionErrors(err error) gqlerror.List {
	var ce *variables.CoercionError
	if errors.As(err, &ce) {
		return ce.Errors
	}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlerror.List{gqlErr}
	}
	return gqlerror.List{codeError(variables.CodeCoercionFailed, err.Error())}
}

func (p *Pipeline) checkComplexity(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		limits := p.opts.Complexity
		if !limits.ApplyLimit(rc.IsPersistedDocument) {
			return next(ctx, rc)
		}
		for i, vars := range rc.Variables {
			if rc.VariableErrors != nil && rc.VariableErrors[i] != nil {
				continue
			}
			m := complexity.Analyze(rc.Schema, rc.Operation, vars, limits)
			if err := limits.Check(m, rc.IsPersistedDocument); err != nil {
				rc.Result = errorResult(0, err)
				return nil
			}
		}
		return next(ctx, rc)
	}
}

func (p *Pipeline) checkAllowedOperations(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		allowed := features.GetOr(rc.Features, features.AllowedOperations, p.opts.AllowedOperations)
		if kind := rc.Operation.Kind(); len(allowed) > 0 && !slices.Contains(allowed, kind) {
			rc.Result = errorResult(http.StatusMethodNotAllowed, codeError(CodeOperationNotAllowed,
				fmt.Sprintf("The operation kind %q is not allowed for this request.", kind)))
			return nil
		}
		return next(ctx, rc)
	}
}
