package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

// RedisTTLStore implements TTLStore using Redis
// This is suitable for distributed deployments where multiple instances
// need to share dedup and cooldown state
type RedisTTLStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTTLStore creates a new Redis-based TTL store
func NewRedisTTLStore(cfg config.RedisConfig, keyPrefix string) (*RedisTTLStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTTLStoreWithClient(client, keyPrefix), nil
}

// NewRedisTTLStoreWithClient creates a store with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisTTLStoreWithClient(client *redis.Client, keyPrefix string) *RedisTTLStore {
	if keyPrefix == "" {
		keyPrefix = "ttl:"
	}
	return &RedisTTLStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// SetOnce records the key with a TTL
// Returns true if the key was newly recorded, false if it was already present.
// Uses SETNX so concurrent instances agree on who recorded it first
func (s *RedisTTLStore) SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record key: %w", err)
	}
	return result, nil
}

// Seen checks whether the key is currently recorded
func (s *RedisTTLStore) Seen(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisTTLStore) Close() error {
	return s.client.Close()
}

// Ensure RedisTTLStore implements TTLStore
var _ shared.TTLStore = (*RedisTTLStore)(nil)
