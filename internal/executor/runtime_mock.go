package executor

import (
	"context"
	"fmt"
	"sync"

	schema "github.com/hanpama/graphcore/internal/schema"
)

// MockResolver resolves one field instance. MockRuntime serves both sync and
// batched calls from the same resolvers.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

const (
	CallKindSync      = "sync"
	CallKindAsync     = "async"
	CallKindSubscribe = "subscribe"
)

func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call records one resolver invocation. Items of the same BatchResolveAsync
// call share a BatchID; sync calls have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime is a Runtime and SubscriptionRuntime for tests. Resolvers are
// keyed by "ObjectType.Field"; a missing resolver resolves to null.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	streams   map[string]<-chan any
	calls     []Call
	batches   int

	serializer func(val any, t schema.TypeRef) (any, error)
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers: make(map[string]MockResolver, len(resolvers)),
		streams:   make(map[string]<-chan any),
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetStream registers the source stream of a subscription field.
func (m *MockRuntime) SetStream(field string, stream <-chan any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[field] = stream
}

// SetSerializer replaces the identity leaf serializer of a MockRuntime.
func SetSerializer(r Runtime, f func(val any, t schema.TypeRef) (any, error)) {
	if mr, ok := r.(*MockRuntime); ok {
		mr.mu.Lock()
		mr.serializer = f
		mr.mu.Unlock()
	}
}

func (m *MockRuntime) resolver(objectType, field string) MockResolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolvers[objectType+"."+field]
}

func (m *MockRuntime) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	m.record(Call{Kind: CallKindSync, ObjectType: objectType, Field: field, Source: source, Args: args})
	if r := m.resolver(objectType, field); r != nil {
		return r(ctx, source, args)
	}
	return nil, nil
}

// BatchResolveAsync resolves tasks grouped by field in order of first
// appearance, so the call log lists one field's items together.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batches++
	batchID := m.batches
	m.mu.Unlock()

	var order []string
	groups := make(map[string][]int)
	for i, t := range tasks {
		key := t.ObjectType + "." + t.Field
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	results := make([]AsyncResolveResult, len(tasks))
	for _, key := range order {
		for _, i := range groups[key] {
			t := tasks[i]
			if r := m.resolver(t.ObjectType, t.Field); r != nil {
				v, err := r(ctx, t.Source, t.Args)
				results[i] = AsyncResolveResult{Value: v, Error: err}
			}
			m.record(Call{Kind: CallKindAsync, ObjectType: t.ObjectType, Field: t.Field, Source: t.Source, Args: t.Args, BatchID: batchID})
		}
	}
	return results
}

// ResolveType reads the "__typename" entry of map values.
func (m *MockRuntime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve type of %s value", abstractType)
}

func (m *MockRuntime) Subscribe(_ context.Context, field string, args map[string]any) (<-chan any, error) {
	m.mu.Lock()
	stream, ok := m.streams[field]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no stream for subscription field %q", field)
	}
	m.record(Call{Kind: CallKindSubscribe, Field: field, Args: args})
	return stream, nil
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serializer
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(value, *schema.NamedType(typeName))
}

// GetCalls returns the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
