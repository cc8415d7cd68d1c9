package mcpservice

import (
	"context"

	"github.com/yachtsy/yachtsy-mcp-go/mcp"
	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

// ServerCapabilities is what a transport consults while serving a session.
// Implementations MUST be safe for concurrent use.
type ServerCapabilities interface {
	// GetServerInfo returns the implementation info surfaced in the
	// initialize result.
	GetServerInfo(ctx context.Context, session sessions.Session) (mcp.ImplementationInfo, error)

	// GetInstructions returns optional human-readable instructions for the
	// client. If ok is false nothing is included in the initialize result.
	GetInstructions(ctx context.Context, session sessions.Session) (instructions string, ok bool, err error)

	// GetToolsCapability returns the tools capability for the session. If ok
	// is false the server does not advertise tools.
	GetToolsCapability(ctx context.Context, session sessions.Session) (cap ToolsCapability, ok bool, err error)
}

// ToolsCapability defines the server's tools surface area.
type ToolsCapability interface {
	// ListTools returns a page of tools. A nil cursor requests the first page.
	ListTools(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.Tool], error)

	// CallTool invokes a named tool. Tool-level failures are reported through
	// CallToolResult.IsError; a returned error means the call could not be
	// dispatched at all.
	CallTool(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)
}
