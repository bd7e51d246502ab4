package executor

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// StaticRuntime serves field values out of a fixed JSON document. Root fields
// are looked up under the root type name ({"Query": {...}}); nested fields are
// looked up in the parent object. Abstract types resolve via "__typename".
// A subscription root field holding a list emits one event per element.
type StaticRuntime struct {
	roots map[string]any
}

func NewStaticRuntime(roots map[string]any) *StaticRuntime {
	return &StaticRuntime{roots: roots}
}

// LoadStaticRuntime reads the root values from a JSON file.
func LoadStaticRuntime(path string) (*StaticRuntime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var roots map[string]any
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewStaticRuntime(roots), nil
}

func (s *StaticRuntime) ResolveSync(_ context.Context, objectType string, field string, source any, _ map[string]any) (any, error) {
	if source == nil {
		source = s.roots[objectType]
	}
	switch v := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v[field], nil
	}
	return nil, fmt.Errorf("cannot read field %s.%s from %T", objectType, field, source)
}

func (s *StaticRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	results := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		results[i].Value, results[i].Error = s.ResolveSync(ctx, t.ObjectType, t.Field, t.Source, t.Args)
	}
	return results
}

func (s *StaticRuntime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if m, ok := value.(map[string]any); ok {
		if typename, ok := m["__typename"].(string); ok {
			return typename, nil
		}
	}
	return "", fmt.Errorf("cannot resolve the concrete type of %s", abstractType)
}

// SerializeLeafValue turns integral JSON numbers back into ints.
func (s *StaticRuntime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	if f, ok := value.(float64); ok && typeName == "Int" {
		if f != float64(int64(f)) {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", f)
		}
		return int64(f), nil
	}
	return value, nil
}

func (s *StaticRuntime) Subscribe(ctx context.Context, field string, _ map[string]any) (<-chan any, error) {
	root, _ := s.roots["Subscription"].(map[string]any)
	events, ok := root[field].([]any)
	if !ok {
		return nil, fmt.Errorf("no events for subscription field %q", field)
	}
	out := make(chan any)
	go func() {
		defer close(out)
		for _, e := range events {
			select {
			case out <- map[string]any{field: e}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
