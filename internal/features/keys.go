package features

import (
	"time"

	"github.com/vektah/gqlparser/v2/ast"
)

// Request-scoped switches understood by the pipeline.
var (
	// AllowIntrospection lifts the introspection policy for a single request.
	AllowIntrospection = NewKey[bool]("graphcore.allowIntrospection")
	// SkipPersistedCheck lets a non-persisted document through when only
	// persisted operations are allowed.
	SkipPersistedCheck = NewKey[bool]("graphcore.skipPersistedCheck")
	// Warmup marks a warm-up probe that must not execute.
	Warmup = NewKey[bool]("graphcore.warmup")
	// ExecutionTimeout overrides the configured execution timeout.
	ExecutionTimeout = NewKey[time.Duration]("graphcore.executionTimeout")
	// AllowedOperations restricts the operation kinds of a single request,
	// e.g. queries only for GET.
	AllowedOperations = NewKey[[]ast.Operation]("graphcore.allowedOperations")
	// RequestID carries the request correlation id.
	RequestID = NewKey[string]("graphcore.requestId")
)
