package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "secret:"

// RedisStore keeps each path as one Redis hash. HSET writes individual
// fields, which satisfies the merge rule without a read phase; it is the
// development and test backend, and a deployment option where the platform's
// Redis is already trusted with encrypted material.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a [RedisStore] over the given client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(path string) string {
	return redisKeyPrefix + path
}

// Store implements [Store].
func (s *RedisStore) Store(ctx context.Context, path, key, value string) error {
	if err := s.redis.HSet(ctx, s.key(path), key, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// StoreBatch implements [Store].
func (s *RedisStore) StoreBatch(ctx context.Context, path string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	flat := make([]any, 0, len(values)*2)
	for k, v := range values {
		flat = append(flat, k, v)
	}
	if err := s.redis.HSet(ctx, s.key(path), flat...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, path, key string) (string, bool, error) {
	value, err := s.redis.HGet(ctx, s.key(path), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}

// GetAll implements [Store].
func (s *RedisStore) GetAll(ctx context.Context, path string) (map[string]string, error) {
	values, err := s.redis.HGetAll(ctx, s.key(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return values, nil
}

// Delete implements [Store].
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.redis.Del(ctx, s.key(path)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Exists implements [Store].
func (s *RedisStore) Exists(ctx context.Context, path string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(path)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
