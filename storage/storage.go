// Package storage defines a small namespaced key/value store with TTLs. The
// Yachtsy server uses it as an answer cache; the memory and redis
// subpackages provide the backends.
package storage

import (
	"context"
	"errors"
	"time"
)

// Storage is a namespaced key/value store. All methods are safe for
// concurrent use.
type Storage interface {
	// Get returns the item stored under key, or nil if it is absent or
	// expired. An error means the backend itself failed.
	Get(ctx context.Context, key string, opts ...Option) (*StorageItem, error)

	// Set stores data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte, opts ...Option) error

	// Delete removes the key named by WithKey, or the whole namespace when no
	// key is given.
	Delete(ctx context.Context, opts ...Option) error

	// Close releases the backend's resources.
	Close() error
}

// StorageItem is a stored value with its timestamps.
type StorageItem struct {
	Data      []byte
	CreatedAt time.Time
	ExpiresAt *time.Time // nil means no expiry
}

// IsExpired reports whether the item's TTL has elapsed.
func (si *StorageItem) IsExpired() bool {
	return si.ExpiresAt != nil && time.Now().After(*si.ExpiresAt)
}

// Option configures storage operations
type Option func(*Options)

// Options is the resolved form of a list of Option values.
type Options struct {
	Namespace Namespace      // nil = global
	Key       *string        // Delete only
	TTL       *time.Duration // Set only
}

// Namespace scopes keys. Only the types in this package implement it.
type Namespace interface {
	namespace()
}

// UserNamespace scopes keys to one user.
type UserNamespace struct {
	UserID string
}

func (UserNamespace) namespace() {}

// WithUser specifies user-level storage namespace
func WithUser(userID string) Option {
	return func(opts *Options) {
		opts.Namespace = UserNamespace{UserID: userID}
	}
}

// WithKey names the key a Delete removes.
func WithKey(key string) Option {
	return func(opts *Options) {
		opts.Key = &key
	}
}

// WithTTL sets a time-to-live for the stored data
func WithTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.TTL = &ttl
	}
}

// ErrInvalidOptions is returned when incompatible options are provided
var ErrInvalidOptions = errors.New("storage: invalid option combination")

// ResolveOptions applies opts and validates the result: user namespaces need
// a user ID and TTLs must be positive.
func ResolveOptions(opts ...Option) (*Options, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if ns, ok := o.Namespace.(UserNamespace); ok && ns.UserID == "" {
		return nil, ErrInvalidOptions
	}
	if o.TTL != nil && *o.TTL <= 0 {
		return nil, ErrInvalidOptions
	}
	return o, nil
}

// NamespacePrefix returns the key prefix shared by every key in ns. Backends
// prepend their own prefix to it.
func NamespacePrefix(ns Namespace) string {
	switch ns := ns.(type) {
	case UserNamespace:
		return "user:" + ns.UserID + ":"
	default:
		return "global:"
	}
}

// FullKey is NamespacePrefix(ns) followed by key.
func FullKey(ns Namespace, key string) string {
	return NamespacePrefix(ns) + "key:" + key
}
