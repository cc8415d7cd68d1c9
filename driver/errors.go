package driver

import (
	"errors"
	"fmt"
)

// Kind classifies where in the run a failure happened.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindTransport
	KindHandshake
	KindInvocation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindHandshake:
		return "handshake"
	case KindInvocation:
		return "invocation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrNoContent is reported when a call result carries no content blocks.
var ErrNoContent = errors.New("result has no content blocks")

// Error is returned by every failing driver operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is, or wraps, an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == k
}

func wrap(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}
