// Package logctx carries per-request logging data on the context and
// decorates slog records with it.
package logctx

import (
	"context"
	"log/slog"

	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

// Handler wraps an slog.Handler and appends the sess, rpc, tool and upstream
// groups found on the record's context.
type Handler struct {
	slog.Handler
}

// NewLogger builds the JSON-on-stderr style logger used by the binaries.
func NewLogger(h slog.Handler) *slog.Logger {
	return slog.New(Handler{Handler: h})
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		r.AddAttrs(slog.Group("sess",
			slog.String("id", sd.SessionID),
			slog.String("user_id", sd.UserID),
			slog.String("protocol_version", sd.ProtocolVersion),
			slog.String("state", string(sd.State)),
		))
	}

	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	if td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData); ok {
		r.AddAttrs(slog.Group("tool",
			slog.String("name", td.ToolName),
		))
	}

	if ud, ok := ctx.Value(upstreamDataKey{}).(*UpstreamData); ok {
		r.AddAttrs(slog.Group("upstream",
			slog.String("base_url", ud.BaseURL),
			slog.String("model", ud.Model),
		))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the wrapper in place so context groups survive logger.With.
func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the wrapper in place so context groups survive logger.WithGroup.
func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type rpcMsg struct{}

type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type sessionDataKey struct{}

type SessionData struct {
	SessionID       string
	UserID          string
	ProtocolVersion string
	State           sessions.SessionState
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}

type toolCallDataKey struct{}

type ToolCallData struct {
	ToolName string
}

func WithToolCallData(ctx context.Context, data *ToolCallData) context.Context {
	return context.WithValue(ctx, toolCallDataKey{}, data)
}

type upstreamDataKey struct{}

// UpstreamData describes the OpenAI-compatible endpoint a call is routed to.
type UpstreamData struct {
	BaseURL string
	Model   string
}

func WithUpstreamData(ctx context.Context, data *UpstreamData) context.Context {
	return context.WithValue(ctx, upstreamDataKey{}, data)
}

// ParseLevel maps a YACHTSY_LOG_LEVEL value to an slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
