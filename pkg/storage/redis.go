package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps values in Redis, keyed "flowgate:<kind>:<key>", with
// JSON-encoded values. It backs localStorage when executions must share
// state across server instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the given Redis address.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func redisKey(kind, key string) string {
	return fmt.Sprintf("flowgate:%s:%s", kind, key)
}

func (s *RedisStore) Put(ctx context.Context, kind, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return s.client.Set(ctx, redisKey(kind, key), data, 0).Err()
}

func (s *RedisStore) Get(ctx context.Context, kind, key string) (any, bool, error) {
	data, err := s.client.Get(ctx, redisKey(kind, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("decode value: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, kind, key string) error {
	return s.client.Del(ctx, redisKey(kind, key)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
