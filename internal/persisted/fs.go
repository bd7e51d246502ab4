package persisted

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// FileStorage reads <id>.json envelopes or plain <id>.graphql files from a
// directory. Saved documents are written as JSON envelopes.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) (*FileStorage, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute storage path: %w", err)
	}
	return &FileStorage{path: abs}, nil
}

func (s *FileStorage) TryRead(_ context.Context, id string) (*Document, error) {
	if err := checkID(id); err != nil {
		return nil, nil
	}
	content, err := os.ReadFile(filepath.Join(s.path, id+".json"))
	if err == nil {
		var op Operation
		if err := json.Unmarshal(content, &op); err != nil {
			return nil, fmt.Errorf("decode persisted operation %q: %w", id, err)
		}
		return &Document{ID: id, Source: op.Body}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read persisted operation: %w", err)
	}
	content, err = os.ReadFile(filepath.Join(s.path, id+".graphql"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted operation: %w", err)
	}
	return &Document{ID: id, Source: string(content)}, nil
}

func (s *FileStorage) Save(_ context.Context, id, source string) error {
	if err := checkID(id); err != nil {
		return err
	}
	content, err := json.Marshal(Operation{Version: 1, Body: source})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.path, id+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.path, id+".json"))
}
