package mcpservice

import (
	"errors"
	"fmt"
)

// ErrInvalidToolRequest is returned when a tools/call carries no tool name.
var ErrInvalidToolRequest = errors.New("invalid tool request: missing name")

// NotFoundError reports a tools/call for a name the container does not hold.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
