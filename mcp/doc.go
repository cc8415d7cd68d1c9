// Package mcp contains the protocol data types and constants spoken between
// the Yachtsy server and its clients. It mirrors the wire representation of
// the Model Context Protocol while keeping the surface Go-friendly (exported
// structs with json tags, string constants for method names).
//
// The package is free of transport logic. The stdio transport imports these
// types and implements its own framing and session handling; mcpservice
// builds results out of them.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod).
//
// # Versions
//
// LatestProtocolVersion is the newest protocol date this server targets.
// NegotiateProtocolVersion picks the version answered during initialize.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{mcp.TextBlock("Tayana 37: a 37ft cutter-rigged bluewater cruiser")},
//	}
package mcp
