package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the shared response cache. Entries never expire; a refresh
// overwrites them wholesale.
type RedisCache struct {
	Client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client}
}

func (s *RedisCache) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

func cacheKey(key string) string {
	return fmt.Sprintf("catalog_cache:%s", key)
}

func (s *RedisCache) Put(ctx context.Context, key string, entry models.CacheEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := s.Client.Set(ctx, cacheKey(key), entryJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry in redis: %w", err)
	}
	return nil
}

// Match returns nil without error when the key has never been written.
func (s *RedisCache) Match(ctx context.Context, key string) (*models.CacheEntry, error) {
	val, err := s.Client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry from redis: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry from redis: %w", err)
	}
	return &entry, nil
}
