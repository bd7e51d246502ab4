// Package metrics exports pipeline and transport events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
)

const namespace = "graphcore"

// Config is the metrics section of the configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED" envDefault:"true"`
	Path    string `yaml:"path" env:"PATH" envDefault:"/metrics"`
}

var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds the collectors fed by the event subscribers.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    prometheus.Counter
	parseDuration    prometheus.Histogram
	syntaxErrors     prometheus.Counter
	validateDuration prometheus.Histogram
	validationErrors prometheus.Counter
	executeDuration  *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	persistedSaves   prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     prometheus.Histogram
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of GraphQL requests by operation kind and outcome",
		}, []string{"operation_kind", "outcome"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of GraphQL requests in seconds",
			Buckets:   durationBuckets,
		}, []string{"operation_kind"}),
		requestErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_exceptions_total",
			Help:      "Total number of requests that ended with an unexpected error",
		}),
		parseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Duration of document parsing in seconds",
			Buckets:   durationBuckets,
		}),
		syntaxErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntax_errors_total",
			Help:      "Total number of documents rejected by the parser",
		}),
		validateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Duration of document validation in seconds",
			Buckets:   durationBuckets,
		}),
		validationErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Total number of validation errors reported",
		}),
		executeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration of operation execution in seconds",
			Buckets:   durationBuckets,
		}, []string{"operation_kind"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Total number of document and operation cache hits and additions",
		}, []string{"cache", "event"}),
		persistedSaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persisted_operations_saved_total",
			Help:      "Total number of documents written to the persisted operation storage",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status",
		}, []string{"method", "status"}),
		httpDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   durationBuckets,
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(e events.RequestFinish) string {
	if e.ErrorCount > 0 {
		return "error"
	}
	return "success"
}

// Register subscribes the collectors on bus.
func (m *Metrics) Register(bus *eventbus.Bus) {
	eventbus.On(bus, func(_ context.Context, e events.RequestFinish) {
		m.requests.WithLabelValues(e.OperationKind, outcome(e)).Inc()
		m.requestDuration.WithLabelValues(e.OperationKind).Observe(e.Duration.Seconds())
	})
	eventbus.On(bus, func(context.Context, events.RequestError) { m.requestErrors.Inc() })
	eventbus.On(bus, func(_ context.Context, e events.ParseFinish) {
		m.parseDuration.Observe(e.Duration.Seconds())
	})
	eventbus.On(bus, func(context.Context, events.SyntaxError) { m.syntaxErrors.Inc() })
	eventbus.On(bus, func(_ context.Context, e events.ValidateFinish) {
		m.validateDuration.Observe(e.Duration.Seconds())
	})
	eventbus.On(bus, func(_ context.Context, e events.ValidationErrors) {
		m.validationErrors.Add(float64(len(e.Errors)))
	})
	eventbus.On(bus, func(_ context.Context, e events.ExecuteFinish) {
		m.executeDuration.WithLabelValues(e.OperationKind).Observe(e.Duration.Seconds())
	})
	eventbus.On(bus, func(context.Context, events.DocumentCacheHit) {
		m.cacheLookups.WithLabelValues("document", "hit").Inc()
	})
	eventbus.On(bus, func(context.Context, events.DocumentCacheAdd) {
		m.cacheLookups.WithLabelValues("document", "add").Inc()
	})
	eventbus.On(bus, func(context.Context, events.OperationCacheHit) {
		m.cacheLookups.WithLabelValues("operation", "hit").Inc()
	})
	eventbus.On(bus, func(context.Context, events.OperationCacheAdd) {
		m.cacheLookups.WithLabelValues("operation", "add").Inc()
	})
	eventbus.On(bus, func(context.Context, events.PersistedOperationSaved) { m.persistedSaves.Inc() })
	eventbus.On(bus, func(_ context.Context, e events.HTTPFinish) {
		m.httpRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
		m.httpDuration.Observe(e.Duration.Seconds())
	})
}
