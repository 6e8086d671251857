package schemastore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// schemaKey is the single Redis key the working schema lives under. CLI
// invocations are separate processes, so the schema edited by `fabrica
// import` has to outlive the process that imported it.
const schemaKey = "fabrica:schema"

// RedisStore implements Store on Redis so the working schema survives
// between CLI invocations.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a Redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Replace(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding schema snapshot: %w", err)
	}
	if err := s.client.Set(ctx, schemaKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("storing schema snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, schemaKey).Err()
}

func (s *RedisStore) Snapshot(ctx context.Context) (Snapshot, error) {
	raw, err := s.client.Get(ctx, schemaKey).Bytes()
	if err == redis.Nil {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding schema snapshot: %w", err)
	}
	return snap, nil
}

var _ Store = (*RedisStore)(nil)
