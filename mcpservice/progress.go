package mcpservice

import "context"

// ProgressReporter emits notifications/progress for the request the context
// belongs to. Transports inject it when the client supplied a progress token.
type ProgressReporter interface {
	Report(ctx context.Context, progress, total float64, message string) error
}

type progressKey struct{}

// WithProgressReporter returns a new context carrying the provided reporter.
func WithProgressReporter(ctx context.Context, pr ProgressReporter) context.Context {
	if pr == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, pr)
}

// ProgressFrom retrieves a ProgressReporter from the context if present.
func ProgressFrom(ctx context.Context) (ProgressReporter, bool) {
	pr, ok := ctx.Value(progressKey{}).(ProgressReporter)
	return pr, ok && pr != nil
}
