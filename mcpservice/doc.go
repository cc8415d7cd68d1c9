// Package mcpservice provides the building blocks a transport needs to serve
// MCP tools: the ServerCapabilities and ToolsCapability interfaces, a
// ToolsContainer with offset pagination, and typed tools whose input schema is
// reflected from a Go struct.
//
// Quick start:
//
//	type AskArgs struct {
//	    Prompt string `json:"prompt" jsonschema:"minLength=1,description=The question"`
//	}
//	tools := mcpservice.NewToolsContainer(
//	    mcpservice.NewTool[AskArgs]("ask", func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[AskArgs]) error {
//	        return w.AppendText("you asked: " + r.Args().Prompt)
//	    }, mcpservice.WithToolDescription("Ask a question")),
//	)
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//	    mcpservice.WithToolsCapability(tools),
//	)
//
// Arguments are decoded strictly: unknown fields produce an isError result
// unless WithToolAllowAdditionalProperties(true) is set.
package mcpservice
