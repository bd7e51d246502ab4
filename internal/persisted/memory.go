package persisted

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanpama/graphcore/internal/cache"
)

// ErrNotStored is returned when the memory storage did not admit a document.
var ErrNotStored = errors.New("persisted operation was not stored")

// MemoryStorage keeps documents in a bounded in-process cache.
type MemoryStorage struct {
	docs *cache.Cache[string]
}

func NewMemoryStorage(size int64) (*MemoryStorage, error) {
	docs, err := cache.New[string](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStorage{docs: docs}, nil
}

func (m *MemoryStorage) TryRead(_ context.Context, id string) (*Document, error) {
	source, ok := m.docs.TryGet(id)
	if !ok {
		return nil, nil
	}
	return &Document{ID: id, Source: source}, nil
}

func (m *MemoryStorage) Save(_ context.Context, id, source string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if !m.docs.Set(id, source) {
		return fmt.Errorf("%w: %q", ErrNotStored, id)
	}
	return nil
}

func (m *MemoryStorage) Close() { m.docs.Close() }
