// Package redis provides a storage.Storage backed by Redis. Items are stored
// as JSON under "<prefix><namespace>key:<key>" with native Redis expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yachtsy/yachtsy-mcp-go/storage"
)

// DefaultKeyPrefix is prepended to every key unless WithKeyPrefix is used.
const DefaultKeyPrefix = "yachtsy:cache:"

// Option customizes a Storage.
type Option func(*Storage)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Storage) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// Storage implements storage.Storage using Redis.
type Storage struct {
	client    *redis.Client
	keyPrefix string
}

var _ storage.Storage = (*Storage)(nil)

type storedItem struct {
	Data      []byte     `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// New wraps an existing client. Close closes the client.
func New(client *redis.Client, opts ...Option) (*Storage, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &Storage{client: client, keyPrefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr string, opts ...Option) (*Storage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return New(client, opts...)
}

// Get retrieves data for a specific key within the given namespace
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.StorageItem, error) {
	options, err := storage.ResolveOptions(opts...)
	if err != nil {
		return nil, err
	}
	redisKey := s.keyPrefix + storage.FullKey(options.Namespace, key)

	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get key %s: %w", redisKey, err)
	}

	var item storedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode key %s: %w", redisKey, err)
	}
	out := &storage.StorageItem{Data: item.Data, CreatedAt: item.CreatedAt, ExpiresAt: item.ExpiresAt}
	if out.IsExpired() {
		// Redis expiry has millisecond granularity; guard the edge.
		_ = s.client.Del(ctx, redisKey).Err()
		return nil, nil
	}
	return out, nil
}

// Set stores data for a specific key within the given namespace
func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	options, err := storage.ResolveOptions(opts...)
	if err != nil {
		return err
	}
	redisKey := s.keyPrefix + storage.FullKey(options.Namespace, key)

	now := time.Now()
	item := storedItem{Data: data, CreatedAt: now}
	var ttl time.Duration
	if options.TTL != nil {
		expiresAt := now.Add(*options.TTL)
		item.ExpiresAt = &expiresAt
		ttl = *options.TTL
	}

	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, b, ttl).Err(); err != nil {
		return fmt.Errorf("set key %s: %w", redisKey, err)
	}
	return nil
}

// Delete removes data within the given namespace
func (s *Storage) Delete(ctx context.Context, opts ...storage.Option) error {
	options, err := storage.ResolveOptions(opts...)
	if err != nil {
		return err
	}

	if options.Key != nil {
		redisKey := s.keyPrefix + storage.FullKey(options.Namespace, *options.Key)
		if err := s.client.Del(ctx, redisKey).Err(); err != nil {
			return fmt.Errorf("delete key %s: %w", redisKey, err)
		}
		return nil
	}

	pattern := s.keyPrefix + storage.NamespacePrefix(options.Namespace) + "*"
	keys, err := s.scanKeys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scan keys for pattern %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// Close closes the storage backend and releases resources
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
