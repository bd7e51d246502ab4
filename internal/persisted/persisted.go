// Package persisted stores operation documents referenced by id instead of
// source text.
package persisted

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Document is a stored operation source.
type Document struct {
	ID     string
	Source string
}

// Storage reads and writes persisted operation documents.
type Storage interface {
	// TryRead returns nil, nil when no document is stored under id.
	TryRead(ctx context.Context, id string) (*Document, error)
	Save(ctx context.Context, id, source string) error
}

// Operation is the JSON envelope of a stored document.
type Operation struct {
	Version int    `json:"version"`
	Body    string `json:"body"`
}

var ErrInvalidID = errors.New("invalid persisted operation id")

// Storage kinds.
const (
	KindMemory = "memory"
	KindFS     = "fs"
	KindRedis  = "redis"
)

// Config selects and configures a storage.
type Config struct {
	Storage     string        `yaml:"storage" env:"STORAGE" envDefault:"memory"`
	Path        string        `yaml:"path" env:"PATH"`
	RedisURL    string        `yaml:"redis_url" env:"REDIS_URL"`
	RedisPrefix string        `yaml:"redis_prefix" env:"REDIS_PREFIX" envDefault:"graphcore:po:"`
	TTL         time.Duration `yaml:"ttl" env:"TTL"`
	CacheSize   int64         `yaml:"cache_size" env:"CACHE_SIZE" envDefault:"1000"`
}

// New builds the storage named by cfg.Storage.
func New(cfg Config) (Storage, error) {
	switch cfg.Storage {
	case "", KindMemory:
		return NewMemoryStorage(cfg.CacheSize)
	case KindFS:
		return NewFileStorage(cfg.Path)
	case KindRedis:
		return NewRedisStorage(cfg.RedisURL, cfg.RedisPrefix, cfg.TTL)
	}
	return nil, fmt.Errorf("unknown persisted operation storage %q", cfg.Storage)
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
