// Package otel turns pipeline and transport events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
	"github.com/hanpama/graphcore/internal/reqid"
)

const instrumentationName = "github.com/hanpama/graphcore"

// Config selects the OTLP collector. An empty Endpoint disables tracing.
type Config struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME" envDefault:"graphcore"`
	Insecure    bool   `yaml:"insecure" env:"INSECURE" envDefault:"true"`
}

// Setup configures OpenTelemetry and attaches subscribers to bus.
// If the endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, cfg Config, bus *eventbus.Bus) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)

	Register(bus, tp.Tracer(instrumentationName))
	return tp.Shutdown, nil
}

// Register subscribes span producers on bus. Spans nest as
// http.request > graphql.request > graphql.{parse,validate,execute}.
func Register(bus *eventbus.Bus, tracer trace.Tracer) {
	s := &subscriber{tracer: tracer}
	s.register(bus)
}

type spanKind int

const (
	httpSpan spanKind = iota
	requestSpan
	parseSpan
	validateSpan
	executeSpan
)

type spanKey struct {
	rid  string
	kind spanKind
}

type subscriber struct {
	tracer trace.Tracer
	spans  sync.Map // spanKey -> trace.Span
}

// start opens a span under the innermost open span of the same request.
func (s *subscriber) start(ctx context.Context, kind spanKind, name string, parents ...spanKind) trace.Span {
	rid, _ := reqid.FromContext(ctx)
	parent := ctx
	for _, p := range parents {
		if v, ok := s.spans.Load(spanKey{rid, p}); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			break
		}
	}
	_, span := s.tracer.Start(parent, name)
	s.spans.Store(spanKey{rid, kind}, span)
	return span
}

func (s *subscriber) finish(ctx context.Context, kind spanKind) (trace.Span, bool) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.spans.LoadAndDelete(spanKey{rid, kind})
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (s *subscriber) register(bus *eventbus.Bus) {
	eventbus.On(bus, func(ctx context.Context, e events.HTTPStart) {
		span := s.start(ctx, httpSpan, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
		)
	})
	eventbus.On(bus, func(ctx context.Context, e events.HTTPFinish) {
		span, ok := s.finish(ctx, httpSpan)
		if !ok {
			return
		}
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		span.End()
	})

	eventbus.On(bus, func(ctx context.Context, e events.RequestStart) {
		span := s.start(ctx, requestSpan, "graphql.request", httpSpan)
		span.SetAttributes(
			attribute.String("graphql.request.id", e.RequestID),
			attribute.String("graphql.document.id", e.DocumentID),
			attribute.String("graphql.operation.name", e.OperationName),
		)
	})
	eventbus.On(bus, func(ctx context.Context, e events.RequestError) {
		rid, _ := reqid.FromContext(ctx)
		if v, ok := s.spans.Load(spanKey{rid, requestSpan}); ok {
			span := v.(trace.Span)
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
	})
	eventbus.On(bus, func(ctx context.Context, e events.RequestFinish) {
		span, ok := s.finish(ctx, requestSpan)
		if !ok {
			return
		}
		span.SetAttributes(
			attribute.String("graphql.document.id", e.DocumentID),
			attribute.String("graphql.operation.type", e.OperationKind),
			attribute.Int("graphql.error_count", e.ErrorCount),
		)
		if e.StatusCode != 0 {
			span.SetAttributes(attribute.Int("graphql.status_code", e.StatusCode))
		}
		span.End()
	})

	eventbus.On(bus, func(ctx context.Context, e events.ParseStart) {
		span := s.start(ctx, parseSpan, "graphql.parse", requestSpan)
		span.SetAttributes(attribute.String("graphql.document.hash", e.DocumentHash))
	})
	eventbus.On(bus, func(ctx context.Context, e events.ParseFinish) {
		span, ok := s.finish(ctx, parseSpan)
		if !ok {
			return
		}
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, "syntax error")
		}
		span.End()
	})

	eventbus.On(bus, func(ctx context.Context, e events.ValidateStart) {
		span := s.start(ctx, validateSpan, "graphql.validate", requestSpan)
		span.SetAttributes(attribute.String("graphql.document.id", e.DocumentID))
	})
	eventbus.On(bus, func(ctx context.Context, e events.ValidateFinish) {
		span, ok := s.finish(ctx, validateSpan)
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int("graphql.error_count", e.ErrorCount))
		if e.ErrorCount > 0 {
			span.SetStatus(codes.Error, "validation failed")
		}
		span.End()
	})

	eventbus.On(bus, func(ctx context.Context, e events.ExecuteStart) {
		span := s.start(ctx, executeSpan, "graphql.execute", requestSpan)
		span.SetAttributes(
			attribute.String("graphql.operation.id", e.OperationID),
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationKind),
			attribute.Int("graphql.batch.size", e.Batch),
		)
	})
	eventbus.On(bus, func(ctx context.Context, e events.ExecuteFinish) {
		span, ok := s.finish(ctx, executeSpan)
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int("graphql.error_count", e.ErrorCount))
		span.End()
	})
}
