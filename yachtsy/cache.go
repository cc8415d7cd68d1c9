package yachtsy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/yachtsy/yachtsy-mcp-go/storage"
)

type userKey struct{}

// WithUser scopes cached answers made under ctx to userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func userFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

// CachedAsker serves repeated questions from a storage.Storage.
type CachedAsker struct {
	next  Asker
	store storage.Storage
	ttl   time.Duration
	model string
	log   *slog.Logger
}

var _ Asker = (*CachedAsker)(nil)

// CacheOption configures a CachedAsker.
type CacheOption func(*CachedAsker)

func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *CachedAsker) { c.log = l }
}

// NewCachedAsker wraps next. The cache key includes the model when next
// reports one through a Model() string method.
func NewCachedAsker(next Asker, store storage.Storage, ttl time.Duration, opts ...CacheOption) (*CachedAsker, error) {
	if next == nil || store == nil {
		return nil, errors.New("asker and store are required")
	}
	if ttl <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	c := &CachedAsker{next: next, store: store, ttl: ttl, log: slog.Default()}
	if m, ok := next.(interface{ Model() string }); ok {
		c.model = m.Model()
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Ask returns a cached answer when one is live, otherwise asks next and
// stores the result. Storage failures are logged and never fail the call.
func (c *CachedAsker) Ask(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	key := CacheKey(c.model, prompt)
	var ns []storage.Option
	if u := userFrom(ctx); u != "" {
		ns = append(ns, storage.WithUser(u))
	}

	item, err := c.store.Get(ctx, key, ns...)
	switch {
	case err != nil:
		c.log.WarnContext(ctx, "agent.cache.get.err", slog.String("err", err.Error()))
	case item != nil:
		c.log.DebugContext(ctx, "agent.cache.hit", slog.String("key", key))
		return string(item.Data), nil
	}

	answer, err := c.next.Ask(ctx, prompt)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return answer, nil
	}

	if err := c.store.Set(ctx, key, []byte(answer), append(ns, storage.WithTTL(c.ttl))...); err != nil {
		c.log.WarnContext(ctx, "agent.cache.set.err", slog.String("err", err.Error()))
	}
	return answer, nil
}

// CacheKey derives the storage key for a model and prompt.
func CacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return "answer:" + hex.EncodeToString(sum[:])
}
