package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
	"github.com/hanpama/graphcore/internal/reqid"
)

func setup(t *testing.T) (*eventbus.Bus, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	bus := eventbus.New()
	Register(bus, tp.Tracer("test"))
	return bus, rec
}

func byName(spans []sdktrace.ReadOnlySpan) map[string]sdktrace.ReadOnlySpan {
	m := make(map[string]sdktrace.ReadOnlySpan, len(spans))
	for _, s := range spans {
		m[s.Name()] = s
	}
	return m
}

func attr(s sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestSpansNestPerRequest(t *testing.T) {
	bus, rec := setup(t)
	ctx, _ := reqid.WithID(context.Background(), "r1")
	req := httptest.NewRequest("POST", "/graphql", nil)

	eventbus.Emit(bus, ctx, events.HTTPStart{Request: req})
	eventbus.Emit(bus, ctx, events.RequestStart{RequestID: "r1", OperationName: "Q"})
	eventbus.Emit(bus, ctx, events.ParseStart{DocumentHash: "h"})
	eventbus.Emit(bus, ctx, events.ParseFinish{DocumentHash: "h"})
	eventbus.Emit(bus, ctx, events.ValidateStart{DocumentID: "h"})
	eventbus.Emit(bus, ctx, events.ValidateFinish{DocumentID: "h"})
	eventbus.Emit(bus, ctx, events.ExecuteStart{OperationID: "h", OperationName: "Q", OperationKind: "query"})
	eventbus.Emit(bus, ctx, events.ExecuteFinish{OperationID: "h", ErrorCount: 1})
	eventbus.Emit(bus, ctx, events.RequestFinish{RequestID: "r1", DocumentID: "h", OperationKind: "query", ErrorCount: 1})
	eventbus.Emit(bus, ctx, events.HTTPFinish{Request: req, Status: 200})

	spans := byName(rec.Ended())
	require.Len(t, spans, 5)
	root := spans["http.request"]
	request := spans["graphql.request"]
	assert.Equal(t, root.SpanContext().SpanID(), request.Parent().SpanID())
	for _, name := range []string{"graphql.parse", "graphql.validate", "graphql.execute"} {
		assert.Equal(t, request.SpanContext().SpanID(), spans[name].Parent().SpanID(), name)
	}
	assert.Equal(t, "query", attr(request, "graphql.operation.type").AsString())
	assert.EqualValues(t, 1, attr(request, "graphql.error_count").AsInt64())
	assert.EqualValues(t, 200, attr(root, "http.status_code").AsInt64())
}

func TestRequestsDoNotShareSpans(t *testing.T) {
	bus, rec := setup(t)
	a, _ := reqid.WithID(context.Background(), "a")
	b, _ := reqid.WithID(context.Background(), "b")

	eventbus.Emit(bus, a, events.RequestStart{RequestID: "a"})
	eventbus.Emit(bus, b, events.RequestStart{RequestID: "b"})
	eventbus.Emit(bus, b, events.RequestError{RequestID: "b", Err: errors.New("boom")})
	eventbus.Emit(bus, b, events.RequestFinish{RequestID: "b"})
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)
	assert.Equal(t, "b", attr(rec.Ended()[0], "graphql.request.id").AsString())

	eventbus.Emit(bus, a, events.RequestFinish{RequestID: "a"})
	require.Len(t, rec.Ended(), 2)
	assert.Equal(t, codes.Unset, rec.Ended()[1].Status().Code)
}

func TestFinishWithoutStartIsIgnored(t *testing.T) {
	bus, rec := setup(t)
	eventbus.Emit(bus, context.Background(), events.ParseFinish{DocumentHash: "h"})
	assert.Empty(t, rec.Ended())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, eventbus.New())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
