package executor

import (
	"context"
)

// Runtime is the resolver surface the Executor drives.
//
// ResolveSync is only called for fields whose schema.Field.Async is false.
// BatchResolveAsync is called once per level with every live async task of
// that level and must return one result per task, in task order. Errors from
// any method become located errors on the field. Implementations are shared
// by concurrent requests and must not mutate sources or arguments. Request
// metadata travels on ctx.
type Runtime interface {
	// ResolveSync returns the raw value of a sync field. (nil, nil) is null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves the async tasks of one level. results[i]
	// answers tasks[i]; a failed element does not fail the others.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the concrete object type of an interface or union
	// value. The name must be a possible type of abstractType.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue turns a scalar or enum value into a JSON-safe value.
	// Enums serialize to their name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// SubscriptionRuntime is implemented by runtimes that can open source streams
// for subscription root fields. Each event received from the stream becomes the
// root value of one execution of the subscription's selection set.
type SubscriptionRuntime interface {
	Subscribe(ctx context.Context, field string, args map[string]any) (<-chan any, error)
}

// AsyncResolveTask is one queued async field. Source is nil for root fields.
type AsyncResolveTask struct {
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
}

type AsyncResolveResult struct {
	Value any
	Error error
}
