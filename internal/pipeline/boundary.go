package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
	"github.com/hanpama/graphcore/internal/features"
	"github.com/hanpama/graphcore/internal/logging"
)

var (
	errExecutionTimeout = errors.New("execution timeout")
	errNoResult         = errors.New("request finished without a result")
)

func recovered(v any) error { return &PanicError{Value: v, Stack: debug.Stack()} }

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// errorBoundary converts every failure of the inner stages into a result.
// Only cancellations by the caller are returned as errors.
func (p *Pipeline) errorBoundary(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) (err error) {
		defer func() {
			if v := recover(); v != nil {
				err = recovered(v)
			}
			err = p.settle(rc, err)
		}()
		return next(ctx, rc)
	}
}

func (p *Pipeline) settle(rc *RequestContext, err error) error {
	var gqlErr *GraphQLError
	switch {
	case err == nil:
	case isCancellation(err):
		rc.Result = errorResult(0, codeError(CodeRequestCanceled, "The request was canceled."))
		return err
	case errors.As(err, &gqlErr):
		rc.Result = errorResult(gqlErr.StatusCode, gqlErr.Errors...)
	default:
		p.opts.Logger.Error("request failed",
			logging.WithRequestID(rc.RequestID),
			zap.String("operation_name", rc.Request.OperationName),
			zap.Error(err),
		)
		rc.Result = errorResult(http.StatusInternalServerError, p.opts.ErrorHandler.Unexpected(err))
	}
	if rc.Result == nil {
		rc.Result = errorResult(http.StatusInternalServerError, p.opts.ErrorHandler.Unexpected(errNoResult))
	}
	p.sanitize(rc.Result)
	return nil
}

func (p *Pipeline) sanitize(res *Result) {
	for i, e := range res.Errors {
		res.Errors[i] = p.opts.ErrorHandler.Handle(e)
	}
	for _, b := range res.Batch {
		p.sanitize(b)
	}
}

// timeout bounds the inner stages. Running out of time replaces the result;
// a cancellation of the caller's context is passed on unchanged.
func (p *Pipeline) timeout(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		d := features.GetOr(rc.Features, features.ExecutionTimeout, p.opts.Timeout)
		if d <= 0 {
			return next(ctx, rc)
		}
		tctx, cancel := context.WithTimeoutCause(ctx, d, errExecutionTimeout)
		defer cancel()

		err := next(tctx, rc)
		if err != nil && ctx.Err() == nil && errors.Is(context.Cause(tctx), errExecutionTimeout) {
			rc.Result = errorResult(0, codeError(CodeExecutionTimeout,
				fmt.Sprintf("The request exceeded the configured timeout of %s.", d)))
			return nil
		}
		return err
	}
}

func (p *Pipeline) instrumentation(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) (err error) {
		start := time.Now()
		eventbus.Emit(p.opts.Bus, ctx, events.RequestStart{
			RequestID:     rc.RequestID,
			DocumentID:    rc.Request.DocumentID,
			OperationName: rc.Request.OperationName,
		})
		defer func() {
			if v := recover(); v != nil {
				err = recovered(v)
			}
			if err != nil {
				rc.Exception = err
				eventbus.Emit(p.opts.Bus, ctx, events.RequestError{RequestID: rc.RequestID, Err: err})
			}
			finish := events.RequestFinish{
				RequestID:     rc.RequestID,
				DocumentID:    rc.DocumentID,
				OperationName: rc.Request.OperationName,
				ErrorCount:    countErrors(rc.Result),
				StatusCode:    rc.Result.StatusCode(),
				Duration:      time.Since(start),
			}
			if rc.Operation != nil {
				finish.OperationKind = string(rc.Operation.Kind())
			}
			if err != nil && finish.ErrorCount == 0 {
				finish.ErrorCount = 1
			}
			eventbus.Emit(p.opts.Bus, ctx, finish)
		}()
		return next(ctx, rc)
	}
}

func countErrors(res *Result) int {
	if res == nil {
		return 0
	}
	n := len(res.Errors)
	for _, b := range res.Batch {
		n += countErrors(b)
	}
	return n
}

func (p *Pipeline) warmup(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if features.GetOr(rc.Features, features.Warmup, false) {
			rc.Result = &Result{Extensions: map[string]any{"warmup": true}}
			return nil
		}
		return next(ctx, rc)
	}
}
