package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/variables"
)

// ErrSubscriptionsUnsupported is returned by Subscribe when the runtime cannot
// produce source streams.
var ErrSubscriptionsUnsupported = errors.New("runtime does not support subscriptions")

type Path []PathElement

type PathElement any

type NodeID uint64

// executionState holds the state of one execution
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	variableValues variables.Values
	context        context.Context
	asyncTaskGroup []asyncTask
	errors         gqlerror.List
	// paths that already carry an error
	errorPaths map[string]struct{}
	// simple incremental id generator
	nextID uint64
	// prefixes of paths that have been nullified (tombstoned)
	nullifiedPrefix map[string]struct{}
}

// asyncTask represents a pending async field resolution
type asyncTask struct {
	ID           NodeID
	Task         AsyncResolveTask
	ResponsePath Path
	FieldType    *schema.TypeRef
	Field        *operation.Field
}

type asyncPending struct{}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func New(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

func (e *Executor) Schema() *schema.Schema { return e.schema }

// Execute runs a query or mutation with the strategy matching its kind.
func (e *Executor) Execute(ctx context.Context, p *operation.Prepared, vars variables.Values, rootValue any) *Result {
	if p.Kind() == ast.Mutation {
		return e.Mutation(ctx, p, vars, rootValue)
	}
	return e.Query(ctx, p, vars, rootValue)
}

// Query executes the root selection set breadth-first, batching async fields
// of each depth into one runtime call.
func (e *Executor) Query(ctx context.Context, p *operation.Prepared, vars variables.Values, rootValue any) *Result {
	state := e.newState(ctx, vars)
	data := make(map[string]any)
	state.run(p.RootType, p.Root, rootValue, data)
	return &Result{Data: data, Errors: state.errors}
}

// Mutation executes root fields serially: each root field, including its async
// descendants, completes before the next one starts.
func (e *Executor) Mutation(ctx context.Context, p *operation.Prepared, vars variables.Values, rootValue any) *Result {
	state := e.newState(ctx, vars)
	data := make(map[string]any)
	for _, f := range p.Root {
		if ctx.Err() != nil {
			break
		}
		state.run(p.RootType, operation.SelectionSet{f}, rootValue, data)
	}
	return &Result{Data: data, Errors: state.errors}
}

// Subscribe maps each event of the root field's source stream to a result.
// The returned channel closes when the source closes or ctx is done.
func (e *Executor) Subscribe(ctx context.Context, p *operation.Prepared, vars variables.Values) (<-chan *Result, error) {
	sr, ok := e.runtime.(SubscriptionRuntime)
	if !ok {
		return nil, ErrSubscriptionsUnsupported
	}
	var root *operation.Field
	for _, f := range p.Root {
		if f.Included(vars) {
			root = f
			break
		}
	}
	if root == nil || root.Definition == nil {
		return nil, fmt.Errorf("subscription %q selects no root field", p.Name())
	}
	args, err := variables.ArgumentValues(e.schema, root.Definition.Arguments, root.Node().Arguments, vars)
	if err != nil {
		return nil, err
	}
	source, err := sr.Subscribe(ctx, root.Name, args)
	if err != nil {
		return nil, err
	}
	out := make(chan *Result)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-source:
				if !ok {
					return
				}
				res := e.Query(ctx, p, vars, event)
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (e *Executor) newState(ctx context.Context, vars variables.Values) *executionState {
	return &executionState{
		runtime:         e.runtime,
		schema:          e.schema,
		variableValues:  vars,
		context:         ctx,
		errorPaths:      make(map[string]struct{}),
		nextID:          1,
		nullifiedPrefix: make(map[string]struct{}),
	}
}

// run expands set synchronously, then drains async depths into responseRoot.
func (state *executionState) run(rootType *schema.Type, set operation.SelectionSet, rootValue any, responseRoot map[string]any) {
	for k, v := range executeSelectionSet(state, rootType, set, rootValue, Path{}) {
		responseRoot[k] = v
	}
	for len(state.asyncTaskGroup) > 0 {
		if err := state.context.Err(); err != nil {
			state.asyncTaskGroup = nil
			return
		}
		filtered, results := flushAsyncTasks(state)
		for i, r := range results {
			completeAsyncField(state, filtered[i], r, responseRoot)
		}
	}
}

// executeSelectionSet executes a selection set without flushing
func executeSelectionSet(state *executionState, objectType *schema.Type, set operation.SelectionSet, objectValue any, path Path) map[string]any {
	resultMap := make(map[string]any, len(set))

	for _, field := range set {
		if !field.Included(state.variableValues) {
			continue
		}
		responseName := field.ResponseName
		fieldPath := appendPath(path, responseName)

		fieldResult := executeField(state, objectType, objectValue, field, fieldPath)

		if field.Name == "__typename" {
			resultMap[responseName] = fieldResult
			continue
		}
		if field.Definition == nil {
			continue
		}

		if schema.IsNonNull(field.Definition.Type) && isNullish(fieldResult) {
			if len(path) > 0 {
				return nil
			}
			resultMap[responseName] = nil
			continue
		}

		if isNullish(fieldResult) {
			resultMap[responseName] = nil
		} else {
			resultMap[responseName] = fieldResult
		}
	}

	return resultMap
}

func executeField(state *executionState, objectType *schema.Type, objectValue any, field *operation.Field, path Path) any {
	if field.Name == "__typename" {
		return objectType.Name
	}

	fieldDef := field.Definition
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field %q on type %q.", field.Name, objectType.Name), path, field)
		return nil
	}

	args, err := variables.ArgumentValues(state.schema, fieldDef.Arguments, field.Node().Arguments, state.variableValues)
	if err != nil {
		state.addError(err.Error(), path, field)
		return nil
	}

	if !fieldDef.Async {
		resolvedValue := resolveSyncField(state, objectType.Name, field, objectValue, args, path)
		return completeValue(state, fieldDef.Type, field, resolvedValue, path)
	}

	id := NodeID(state.nextID)
	state.nextID++
	state.asyncTaskGroup = append(state.asyncTaskGroup, asyncTask{
		ID: id,
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      field.Name,
			Source:     objectValue,
			Args:       args,
		},
		ResponsePath: path,
		FieldType:    fieldDef.Type,
		Field:        field,
	})
	return asyncPending{}
}

// flushAsyncTasks flushes tasks and returns results (filtered by tombstones)
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	filtered := make([]asyncTask, 0, len(state.asyncTaskGroup))
	for _, at := range state.asyncTaskGroup {
		if state.hasNullifiedPrefix(at.ResponsePath) {
			continue
		}
		filtered = append(filtered, at)
	}
	state.asyncTaskGroup = nil
	if len(filtered) == 0 {
		return nil, nil
	}

	tasks := make([]AsyncResolveTask, len(filtered))
	for i, at := range filtered {
		tasks[i] = at.Task
	}
	results := state.runtime.BatchResolveAsync(state.context, tasks)
	if len(results) != len(tasks) {
		err := fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks))
		results = make([]AsyncResolveResult, len(tasks))
		for i := range results {
			results[i].Error = err
		}
	}
	return filtered, results
}

// completeAsyncField completes a single async result, with non-null propagation and pruning
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, responseRoot map[string]any) {
	path := at.ResponsePath
	if state.hasNullifiedPrefix(path) {
		return
	}

	if res.Error != nil {
		state.addError(res.Error.Error(), path, at.Field)
		if schema.IsNonNull(at.FieldType) {
			state.nullify(responseRoot, path)
			return
		}
		setValueAtPath(responseRoot, path, nil)
		return
	}

	completed := completeValue(state, at.FieldType, at.Field, res.Value, path)
	if schema.IsNonNull(at.FieldType) && isNullish(completed) {
		state.nullify(responseRoot, path)
		return
	}
	if isNullish(completed) {
		setValueAtPath(responseRoot, path, nil)
	} else {
		setValueAtPath(responseRoot, path, completed)
	}
}

func (state *executionState) nullify(responseRoot map[string]any, path Path) {
	top := topLevelFieldPath(path)
	setValueAtPath(responseRoot, top, nil)
	state.markNullifiedPrefix(top)
}

// completeValue completes a value
func completeValue(state *executionState, fieldType *schema.TypeRef, field *operation.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s.", pathToString(path)), path, field)
			}
			return nil
		}
		completed := completeValue(state, schema.Unwrap(fieldType), field, result, path)
		if isNullish(completed) {
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, field, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.ResolveNamedType(namedType)
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path, field)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.addError(err.Error(), path, field)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return executeSelectionSet(state, typeObj, field.Children(typeObj.Name), result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, namedType, field, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path, field)
		return nil
	}
}

// completeListValue completes a list value
func completeListValue(state *executionState, listType *schema.TypeRef, field *operation.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path, field)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, field, item, appendPath(path, i))
		if schema.IsNonNull(inner) && isNullish(v) {
			return nil
		}
		completed[i] = v
	}
	return completed
}

func completeAbstractValue(state *executionState, abstractTypeName string, field *operation.Field, result any, path Path) any {
	typeName, err := state.runtime.ResolveType(state.context, abstractTypeName, result)
	if err != nil {
		state.addError(err.Error(), path, field)
		return nil
	}
	objectType := state.schema.ResolveNamedType(typeName)
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractTypeName, typeName), path, field)
		return nil
	}
	if !state.schema.IsPossibleType(abstractTypeName, typeName) {
		state.addError(fmt.Sprintf("Runtime Object type %q is not a possible type for %q.", typeName, abstractTypeName), path, field)
		return nil
	}
	return executeSelectionSet(state, objectType, field.Children(typeName), result, path)
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				result += "."
			}
			result += v
		case int:
			result += "[" + strconv.Itoa(v) + "]"
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// AST converts the path to the gqlerror representation.
func (p Path) AST() ast.Path {
	out := make(ast.Path, 0, len(p))
	for _, elem := range p {
		switch v := elem.(type) {
		case string:
			out = append(out, ast.PathName(v))
		case int:
			out = append(out, ast.PathIndex(v))
		}
	}
	return out
}

func (s *executionState) markNullifiedPrefix(p Path) {
	key := pathToString(p)
	if key != "" {
		s.nullifiedPrefix[key] = struct{}{}
	}
}

func (s *executionState) hasNullifiedPrefix(p Path) bool {
	if len(s.nullifiedPrefix) == 0 {
		return false
	}
	for i := range p {
		if _, ok := s.nullifiedPrefix[pathToString(p[:i+1])]; ok {
			return true
		}
	}
	return false
}

func topLevelFieldPath(p Path) Path {
	for _, elem := range p {
		if name, ok := elem.(string); ok {
			return Path{name}
		}
	}
	return Path{}
}

// addError records a located error; the first error at a path wins the
// non-null bookkeeping.
func (state *executionState) addError(message string, path Path, field *operation.Field) {
	err := &gqlerror.Error{Message: message, Path: path.AST()}
	if field != nil {
		err.Locations = language.Locations(field.Node().Position)
	}
	state.errors = append(state.errors, err)
	state.errorPaths[pathToString(path)] = struct{}{}
}

func (state *executionState) hasErrorAtPath(path Path) bool {
	_, ok := state.errorPaths[pathToString(path)]
	return ok
}

func resolveSyncField(state *executionState, objectType string, field *operation.Field, source any, args map[string]any, path Path) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, field.Name, source, args)
	if err != nil {
		state.addError(err.Error(), path, field)
		return nil
	}
	return value
}

// setValueAtPath writes value into the response tree, creating intermediate
// objects as needed.
func setValueAtPath(responseRoot map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	current := any(responseRoot)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[e]
			if !exists {
				next = make(map[string]any)
				m[e] = next
			}
			current = next
		case int:
			slice, ok := current.([]any)
			if !ok || e >= len(slice) {
				return
			}
			if slice[e] == nil {
				slice[e] = make(map[string]any)
			}
			current = slice[e]
		}
	}
	switch fe := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[fe] = value
		}
	case int:
		if slice, ok := current.([]any); ok && fe < len(slice) {
			slice[fe] = value
		}
	}
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
