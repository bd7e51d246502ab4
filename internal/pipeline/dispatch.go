package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/graphcore/internal/cache"
	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
	"github.com/hanpama/graphcore/internal/executor"
	"github.com/hanpama/graphcore/internal/logging"
	"github.com/hanpama/graphcore/internal/variables"
)

// dispatch is the innermost stage. It routes the prepared operation to the
// subscription, mutation or query strategy.
func (p *Pipeline) dispatch(Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if rc.Result != nil {
			return nil
		}
		start := time.Now()
		kind := rc.Operation.Kind()
		eventbus.Emit(p.opts.Bus, ctx, events.ExecuteStart{
			OperationID:   rc.OperationID,
			OperationName: rc.Operation.Name(),
			OperationKind: string(kind),
			Batch:         len(rc.Request.VariableSets),
		})

		var err error
		switch {
		case kind == ast.Subscription:
			err = p.subscribe(rc)
		case rc.IsBatch():
			err = p.executeBatch(ctx, rc)
		default:
			rc.Result, err = p.executeOne(ctx, rc, rc.Variables[0])
		}

		eventbus.Emit(p.opts.Bus, ctx, events.ExecuteFinish{
			OperationID:   rc.OperationID,
			OperationName: rc.Operation.Name(),
			OperationKind: string(kind),
			ErrorCount:    countErrors(rc.Result),
			Duration:      time.Since(start),
		})
		return err
	}
}

func (p *Pipeline) rootValue(ctx context.Context, rc *RequestContext) any {
	if p.opts.RootValue == nil {
		return nil
	}
	return p.opts.RootValue(ctx, rc)
}

func (p *Pipeline) executeOne(ctx context.Context, rc *RequestContext, vars variables.Values) (*Result, error) {
	root := p.rootValue(ctx, rc)
	if rc.Operation.Kind() == ast.Mutation {
		return p.executeMutation(ctx, rc, vars, root)
	}
	res := p.exec.Query(ctx, rc.Operation, vars, root)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return executed(res), nil
}

// executeMutation runs inside a transaction scope that is completed only
// when the mutation produced no errors.
func (p *Pipeline) executeMutation(ctx context.Context, rc *RequestContext, vars variables.Values, root any) (*Result, error) {
	scope, err := p.opts.Transactions.Begin(ctx, rc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scope.Close(); err != nil {
			p.opts.Logger.Warn("closing transaction scope", logging.WithRequestID(rc.RequestID), zap.Error(err))
		}
	}()

	res := p.exec.Mutation(ctx, rc.Operation, vars, root)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(res.Errors) == 0 {
		scope.Complete()
	}
	return executed(res), nil
}

// executeBatch runs the operation once per variable set. Queries run
// concurrently, mutations one after another. Results keep the order of the
// variable sets.
func (p *Pipeline) executeBatch(ctx context.Context, rc *RequestContext) error {
	results := make([]*Result, len(rc.Variables))
	g, gctx := errgroup.WithContext(ctx)
	if rc.Operation.Kind() == ast.Mutation {
		g.SetLimit(1)
	} else if p.opts.BatchParallelism > 0 {
		g.SetLimit(p.opts.BatchParallelism)
	}
	for i, vars := range rc.Variables {
		if err := rc.VariableErrors[i]; err != nil {
			results[i] = errorResult(0, coercionErrors(err)...)
			continue
		}
		g.Go(func() error {
			res, err := p.executeOne(gctx, rc, vars)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rc.Result = &Result{Batch: results}
	return nil
}

// subscribe starts the source stream outside the request timeout; the
// stream ends with the caller's context.
func (p *Pipeline) subscribe(rc *RequestContext) error {
	if rc.IsBatch() {
		return NewGraphQLError(CodeInvalidRequest, http.StatusBadRequest, "Subscriptions cannot run with variable sets.")
	}
	ctx := rc.caller
	stream, err := p.exec.Subscribe(ctx, rc.Operation, rc.Variables[0])
	if err != nil {
		if errors.Is(err, executor.ErrSubscriptionsUnsupported) {
			rc.Result = errorResult(http.StatusMethodNotAllowed, codeError(CodeSubscriptionFailed, "Subscriptions are not supported."))
			return nil
		}
		rc.Result = errorResult(0, codeError(CodeSubscriptionFailed, err.Error()))
		return nil
	}
	out := make(chan *Result)
	go func() {
		defer close(out)
		for res := range stream {
			r := executed(res)
			p.sanitize(r)
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	rc.Result = &Result{Stream: out}
	return nil
}

func executed(res *executor.Result) *Result {
	return &Result{Data: res.Data, Errors: res.Errors, Executed: true}
}

// writePersisted stores the document of a successful request when the client
// asked for it and the declared hash matches the computed one. The outcome is
// reported in the persistedQuery response extension.
func (p *Pipeline) writePersisted(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if err := next(ctx, rc); err != nil {
			return err
		}
		req := rc.Request
		if !p.opts.PersistWrites || p.opts.Storage == nil || !req.Persist || req.Query == "" ||
			rc.IsPersistedDocument || rc.Result == nil {
			return nil
		}
		// The executed document may come from the cache under the client's
		// hash, so only the source text itself decides what gets stored.
		computed := p.opts.Hasher.Hash([]byte(req.Query))
		hashKey := p.opts.Hasher.Name() + "Hash"
		receipt := map[string]any{hashKey: req.DocumentHash, "persisted": false}
		if req.DocumentHash != computed {
			receipt["expectedHashValue"] = computed
			receipt["expectedHashType"] = p.opts.Hasher.Name()
			receipt["expectedHashFormat"] = p.opts.Hasher.Format()
			rc.Result.SetExtension("persistedQuery", receipt)
			return nil
		}
		if err := p.opts.Storage.Save(ctx, computed, req.Query); err != nil {
			p.opts.Logger.Warn("saving persisted operation", logging.WithRequestID(rc.RequestID), zap.Error(err))
			rc.Result.SetExtension("persistedQuery", receipt)
			return nil
		}
		p.opts.Documents.Set(computed, &cache.Document{Document: rc.Document, Hash: computed, IsPersisted: true})
		receipt["persisted"] = true
		rc.Result.SetExtension("persistedQuery", receipt)
		eventbus.Emit(p.opts.Bus, ctx, events.PersistedOperationSaved{DocumentID: computed, Algorithm: p.opts.Hasher.Name()})
		return nil
	}
}
