// Package memory provides an in-process storage.Storage backed by
// github.com/hashicorp/golang-lru/v2. Least recently used entries are evicted
// once the size limit is reached and expired entries are swept periodically.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yachtsy/yachtsy-mcp-go/storage"
)

// DefaultSweepInterval is how often expired entries are purged.
const DefaultSweepInterval = time.Minute

// Option customizes a Storage.
type Option func(*Storage)

// WithSweepInterval overrides DefaultSweepInterval. Non-positive values
// disable the background sweep; expired entries are then only dropped on read.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Storage) { s.sweepEvery = d }
}

// Storage implements storage.Storage in memory.
type Storage struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *storage.StorageItem]

	sweepEvery time.Duration
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

var _ storage.Storage = (*Storage)(nil)

// New creates a store holding at most maxItems entries.
func New(maxItems int, opts ...Option) (*Storage, error) {
	cache, err := lru.New[string, *storage.StorageItem](maxItems)
	if err != nil {
		return nil, fmt.Errorf("create LRU cache: %w", err)
	}

	s := &Storage{
		cache:      cache,
		sweepEvery: DefaultSweepInterval,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sweepEvery > 0 {
		go s.sweep()
	} else {
		close(s.done)
	}
	return s, nil
}

// Get retrieves data for a specific key within the given namespace
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.StorageItem, error) {
	options, err := storage.ResolveOptions(opts...)
	if err != nil {
		return nil, err
	}
	storageKey := storage.FullKey(options.Namespace, key)

	s.mu.RLock()
	item, ok := s.cache.Get(storageKey)
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if item.IsExpired() {
		s.mu.Lock()
		s.cache.Remove(storageKey)
		s.mu.Unlock()
		return nil, nil
	}
	return item, nil
}

// Set stores data for a specific key within the given namespace
func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	options, err := storage.ResolveOptions(opts...)
	if err != nil {
		return err
	}

	now := time.Now()
	item := &storage.StorageItem{
		Data:      append([]byte(nil), data...),
		CreatedAt: now,
	}
	if options.TTL != nil {
		expiresAt := now.Add(*options.TTL)
		item.ExpiresAt = &expiresAt
	}

	s.mu.Lock()
	s.cache.Add(storage.FullKey(options.Namespace, key), item)
	s.mu.Unlock()
	return nil
}

// Delete removes data within the given namespace
func (s *Storage) Delete(ctx context.Context, opts ...storage.Option) error {
	options, err := storage.ResolveOptions(opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if options.Key != nil {
		s.cache.Remove(storage.FullKey(options.Namespace, *options.Key))
		return nil
	}

	// LRU offers no prefix iteration.
	prefix := storage.NamespacePrefix(options.Namespace)
	for _, k := range s.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.cache.Remove(k)
		}
	}
	return nil
}

// Len reports the number of entries currently held, expired or not.
func (s *Storage) Len() int {
	return s.cache.Len()
}

// Close stops the sweeper and drops all entries. It is safe to call more
// than once.
func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.mu.Lock()
		s.cache.Purge()
		s.mu.Unlock()
	})
	return nil
}

func (s *Storage) sweep() {
	defer close(s.done)

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for _, key := range s.cache.Keys() {
				if item, ok := s.cache.Peek(key); ok && item.ExpiresAt != nil && now.After(*item.ExpiresAt) {
					s.cache.Remove(key)
				}
			}
			s.mu.Unlock()
		}
	}
}
