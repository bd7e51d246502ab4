// Package features implements a layered, typed key/value store used as the
// per-request state bag. Lookups consult the local layer first and then fall
// back to the read-only parent chain.
package features

import (
	"fmt"
	"reflect"
	"sync"
)

// Key identifies a typed slot in a Store. Keys are compared by identity, so
// two keys created with the same name are distinct.
type Key[T any] struct {
	name string
}

// NewKey creates a new typed key. The name is used for error messages and is
// passed to the OnSet hook.
func NewKey[T any](name string) *Key[T] { return &Key[T]{name: name} }

func (k *Key[T]) Name() string   { return k.name }
func (k *Key[T]) String() string { return k.name }

// MissingFeatureError is returned by Get when the key is absent in the store
// and all of its parents.
type MissingFeatureError struct {
	Key string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("feature %q is not set", e.Key)
}

// OnSetFunc observes committed writes. A nil value signals a removal.
type OnSetFunc func(key string, value any)

// Store is a feature collection. The zero value is not usable; use New.
type Store struct {
	mu       sync.RWMutex
	parent   *Store
	values   map[any]any
	revision int64
	onSet    OnSetFunc
}

// Option configures a Store.
type Option func(*Store)

// WithParent sets the read-only fallback layer.
func WithParent(parent *Store) Option { return func(s *Store) { s.parent = parent } }

// WithOnSet registers a hook that runs synchronously after every local write.
func WithOnSet(fn OnSetFunc) Option { return func(s *Store) { s.onSet = fn } }

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Parent returns the fallback layer or nil.
func (s *Store) Parent() *Store { return s.parent }

// Revision is the local mutation counter plus the parent's revision.
func (s *Store) Revision() int64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	rev := s.revision
	s.mu.RUnlock()
	return rev + s.parent.Revision()
}

// IsEmpty reports whether neither the local layer nor any parent holds a value.
func (s *Store) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	empty := len(s.values) == 0
	s.mu.RUnlock()
	return empty && s.parent.IsEmpty()
}

func (s *Store) lookup(key any) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.values[key]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

func (s *Store) write(key any, name string, value any, remove bool) {
	s.mu.Lock()
	if remove {
		if _, ok := s.values[key]; !ok {
			s.mu.Unlock()
			return
		}
		delete(s.values, key)
	} else {
		if s.values == nil {
			s.values = make(map[any]any)
		}
		s.values[key] = value
	}
	s.revision++
	hook := s.onSet
	s.mu.Unlock()

	if hook != nil {
		if remove {
			hook(name, nil)
		} else {
			hook(name, value)
		}
	}
}

// Each calls fn for every visible entry, parents first, so a local value is
// reported after the parent value it shadows.
func (s *Store) Each(fn func(name string, value any)) {
	if s == nil {
		return
	}
	s.parent.Each(fn)
	s.mu.RLock()
	entries := make(map[string]any, len(s.values))
	for k, v := range s.values {
		entries[k.(interface{ Name() string }).Name()] = v
	}
	s.mu.RUnlock()
	for name, v := range entries {
		fn(name, v)
	}
}

// Get returns the value stored under key or a *MissingFeatureError.
func Get[T any](s *Store, key *Key[T]) (T, error) {
	if v, ok := TryGet(s, key); ok {
		return v, nil
	}
	var zero T
	return zero, &MissingFeatureError{Key: key.name}
}

// TryGet returns the value stored under key and whether it was found.
func TryGet[T any](s *Store, key *Key[T]) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	v, ok := s.lookup(key)
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// GetOr returns the stored value or fallback when absent.
func GetOr[T any](s *Store, key *Key[T], fallback T) T {
	if v, ok := TryGet(s, key); ok {
		return v
	}
	return fallback
}

// Set stores value in the local layer. Setting a nil pointer, map, slice,
// func, chan or interface removes the local entry instead.
func Set[T any](s *Store, key *Key[T], value T) {
	if isNil(value) {
		s.write(key, key.name, nil, true)
		return
	}
	s.write(key, key.name, value, false)
}

// Delete removes the local entry. Parent values become visible again.
func Delete[T any](s *Store, key *Key[T]) {
	s.write(key, key.name, nil, true)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
