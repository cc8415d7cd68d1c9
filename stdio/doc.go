// Package stdio implements a single-connection MCP transport over
// stdin/stdout. It is meant for servers embedded as subprocesses: the client
// spawns the binary and exchanges newline-delimited JSON-RPC over its pipes.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : OS user (lightweight implicit principal)
//	Sessions         : one, in memory, created by initialize
//	Methods          : initialize, ping, tools/list, tools/call
//	Notifications    : initialized, cancelled (in), progress (out)
//
// Example:
//
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "my-stdio-server", Version: "0.1.0"}),
//	    mcpservice.WithToolsCapability(tools),
//	)
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(ctx); err != nil { log.Fatal(err) }
//
// Stdout carries protocol frames only; log to stderr.
package stdio
