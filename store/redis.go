package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "storefront:"

// redisKV is the part of *redis.Client the store needs.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore keeps each slot under its own key. Keys never expire.
type RedisStore struct {
	client redisKV
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, slot string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, slot string, data []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+slot, data, 0).Err(); err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
