// Package dedup remembers which stored emails were already delivered so an
// at-least-once notification is not returned twice.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mailtap:delivered:"

type Store interface {
	Seen(ctx context.Context, bucket, key string) (bool, error)
	Mark(ctx context.Context, bucket, key string) error
	Close() error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Seen(ctx context.Context, bucket, key string) (bool, error) {
	n, err := s.client.Exists(ctx, storeKey(bucket, key)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	return n > 0, nil
}

// Mark records the object as delivered for the configured TTL.
func (s *redisStore) Mark(ctx context.Context, bucket, key string) error {
	if err := s.client.SetNX(ctx, storeKey(bucket, key), time.Now().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark failed: %w", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func storeKey(bucket, key string) string {
	sum := sha256.Sum256([]byte(bucket + "/" + key))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// NoOpStore never reports an object as seen (de-duplication disabled)
type NoOpStore struct{}

func (NoOpStore) Seen(context.Context, string, string) (bool, error) {
	return false, nil
}

func (NoOpStore) Mark(context.Context, string, string) error {
	return nil
}

func (NoOpStore) Close() error {
	return nil
}
