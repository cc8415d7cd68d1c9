package mcp

import (
	"encoding/json"
	"slices"
)

// Role indicates the role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// LoggingLevel represents structured log severity.
type LoggingLevel string

const (
	LoggingLevelDebug   LoggingLevel = "debug"
	LoggingLevelInfo    LoggingLevel = "info"
	LoggingLevelWarning LoggingLevel = "warning"
	LoggingLevelError   LoggingLevel = "error"
)

// ClientCapabilities advertises client features. The Yachtsy server does not
// call back into clients, so the fields are only recorded for logging.
type ClientCapabilities struct {
	Roots *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"roots,omitempty"`
	Sampling    *struct{} `json:"sampling,omitempty"`
	Elicitation *struct{} `json:"elicitation,omitempty"`
}

// ServerCapabilities advertises server features.
type ServerCapabilities struct {
	Logging *struct{} `json:"logging,omitempty"`
	Tools   *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"tools,omitempty"`
}

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// ContentType enumerates the content block kinds the server produces.
type ContentType string

const (
	ContentTypeText ContentType = "text"
)

// ContentBlock is a typed content part of a tool result.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitzero"`
	// For image/audio blocks
	Data     string `json:"data,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
}

// MarshalJSON always emits the text field of text blocks, which the protocol
// requires even when empty.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	type wire ContentBlock
	if b.Type != ContentTypeText {
		return json.Marshal(wire(b))
	}
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		Text string      `json:"text"`
	}{b.Type, b.Text})
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// Tool describes a callable tool and its input schema.
type Tool struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitzero"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

// ToolInputSchema is a JSON-schema-like description of tool input.
type ToolInputSchema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties"`
}

// SchemaProperty is a simplified schema node used in tool schemas.
type SchemaProperty struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitzero"`
	MinLength   *uint64                   `json:"minLength,omitempty"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Enum        []any                     `json:"enum,omitempty"`
}

// LatestProtocolVersion is the latest version of the protocol.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists the protocol dates the server can speak,
// newest first.
var SupportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-03-26",
	"2024-11-05",
}

// NegotiateProtocolVersion returns the client's requested version when the
// server supports it, and LatestProtocolVersion otherwise.
func NegotiateProtocolVersion(requested string) string {
	if slices.Contains(SupportedProtocolVersions, requested) {
		return requested
	}
	return LatestProtocolVersion
}
