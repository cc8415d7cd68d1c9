package stdio

import (
	"fmt"
	"os/user"
)

// UserProvider resolves the user ID associated with the stdio peer. A stdio
// server runs as a child of its client, so the OS user is the principal. The
// ID namespaces the answer cache.
type UserProvider interface {
	CurrentUserID() (string, error)
}

// OSUserProvider resolves the user ID using the operating system's current user.
// The returned ID is user.Username when available; falling back to user.Uid.
type OSUserProvider struct{}

func (OSUserProvider) CurrentUserID() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("lookup current user: %w", err)
	}
	if u.Username != "" {
		return u.Username, nil
	}
	return u.Uid, nil
}

// StaticUserProvider returns a fixed user ID. It is used in tests and when the
// OS user cannot be resolved (e.g. scratch containers).
type StaticUserProvider string

func (s StaticUserProvider) CurrentUserID() (string, error) { return string(s), nil }
