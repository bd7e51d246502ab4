package persisted

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage stores documents as plain strings under prefix+id.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStorage(url, prefix string, ttl time.Duration) (*RedisStorage, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the redis connection url: %w", err)
	}
	return &RedisStorage{client: redis.NewClient(options), prefix: prefix, ttl: ttl}, nil
}

func (r *RedisStorage) TryRead(ctx context.Context, id string) (*Document, error) {
	source, err := r.client.Get(ctx, r.prefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read persisted operation %q: %w", id, err)
	}
	return &Document{ID: id, Source: source}, nil
}

func (r *RedisStorage) Save(ctx context.Context, id, source string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+id, source, r.ttl).Err()
}

func (r *RedisStorage) Close() error { return r.client.Close() }
