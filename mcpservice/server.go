package mcpservice

import (
	"context"

	"github.com/yachtsy/yachtsy-mcp-go/mcp"
	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

// ServerOption configures a concrete ServerCapabilities implementation.
type ServerOption func(*server)

type server struct {
	info         mcp.ImplementationInfo
	instructions *string
	tools        ToolsCapability
}

// NewServer builds a ServerCapabilities using functional options.
func NewServer(opts ...ServerOption) ServerCapabilities {
	s := &server{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithServerInfo sets the server info returned during initialize.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *server) { s.info = info }
}

// WithInstructions sets static human-readable instructions returned during initialize.
func WithInstructions(instr string) ServerOption {
	return func(s *server) { s.instructions = &instr }
}

// WithToolsCapability wires the tools capability shared by all sessions.
func WithToolsCapability(cap ToolsCapability) ServerOption {
	return func(s *server) { s.tools = cap }
}

func (s *server) GetServerInfo(ctx context.Context, session sessions.Session) (mcp.ImplementationInfo, error) {
	return s.info, nil
}

func (s *server) GetInstructions(ctx context.Context, session sessions.Session) (string, bool, error) {
	if s.instructions != nil {
		return *s.instructions, true, nil
	}
	return "", false, nil
}

func (s *server) GetToolsCapability(ctx context.Context, session sessions.Session) (ToolsCapability, bool, error) {
	if s.tools != nil {
		return s.tools, true, nil
	}
	return nil, false, nil
}
