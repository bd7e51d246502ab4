// Package executor runs prepared operations against a Runtime.
//
// The executor never sees raw documents. The pipeline hands it an
// operation.Prepared, whose selection plans already merge fields by response
// name and expand fragments per concrete object type, together with variable
// values coerced by the variables package. Field arguments are coerced per
// field instance and @skip/@include are evaluated against those variables.
//
// # Strategies
//
//   - Query runs the root selection set level by level.
//   - Mutation runs root fields serially; a root field and all of its async
//     descendants complete before the next root field starts.
//   - Subscribe opens a source stream through SubscriptionRuntime and runs the
//     selection set once per event, with the event as root value.
//
// # Levels
//
// Fields whose schema.Field.Async is false resolve immediately through
// Runtime.ResolveSync and their object children keep expanding without
// advancing the level. Async fields found while expanding a level are queued
// and resolved by a single Runtime.BatchResolveAsync call once the level is
// drained. An operation whose async depth is d therefore issues exactly d
// batch calls.
//
// # Completion
//
// Values complete as in the GraphQL specification. Leaves go through
// Runtime.SerializeLeafValue, abstract values through Runtime.ResolveType.
// A null in a Non-Null position nulls the nearest nullable ancestor, records a
// located error and drops every queued task beneath that ancestor. Other
// errors null only their own field, so a batch may partially succeed.
package executor
