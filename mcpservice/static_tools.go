package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/yachtsy/yachtsy-mcp-go/mcp"
	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

// ToolHandler is the function signature used to handle a tool invocation.
type ToolHandler func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)

// StaticTool pairs an MCP tool descriptor with its handler.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
}

// ToolRequest carries the decoded arguments of a call to a typed tool.
type ToolRequest[A any] struct {
	name string
	args A
}

func (r *ToolRequest[A]) Name() string { return r.name }
func (r *ToolRequest[A]) Args() A      { return r.args }

// ToolOption configures NewTool behavior.
type ToolOption func(*toolConfig)

type toolConfig struct {
	title                     string
	description               string
	allowAdditionalProperties bool
}

// WithToolTitle sets the human-friendly title shown by clients.
func WithToolTitle(title string) ToolOption {
	return func(c *toolConfig) { c.title = title }
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithToolAllowAdditionalProperties controls whether unknown fields are allowed.
// When false (default), the generated schema sets additionalProperties=false and
// runtime decoding rejects unknown fields.
func WithToolAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.allowAdditionalProperties = allow }
}

// NewTool constructs a writer-based tool with typed input A. The input schema
// is reflected from A and arguments are decoded into A before fn runs.
// Decoding failures are reported to the client as an isError result.
func NewTool[A any](name string, fn func(ctx context.Context, session sessions.Session, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Title:       cfg.title,
		Description: cfg.description,
		InputSchema: reflectToMCPInputSchema[A](cfg.allowAdditionalProperties),
	}

	handler := func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
		var a A
		if err := decodeArguments(req.Arguments, &a, cfg.allowAdditionalProperties); err != nil {
			return Errorf("invalid arguments: %v", err), nil
		}
		w := newToolResponseWriter(ctx)
		r := &ToolRequest[A]{name: req.Name, args: a}
		if err := fn(ctx, session, w, r); err != nil {
			return nil, err
		}
		return w.Result(), nil
	}

	return StaticTool{Descriptor: desc, Handler: handler}
}

func decodeArguments(raw json.RawMessage, dst any, allowAdditional bool) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if !allowAdditional {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(dst)
}

// reflectToMCPInputSchema reflects A with invopop/jsonschema and converts the
// result to the simplified mcp.ToolInputSchema.
func reflectToMCPInputSchema[A any](allowAdditional bool) mcp.ToolInputSchema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.Reflect(new(A))

	// Non-object inputs are exposed as an empty object.
	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toMCPProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
		MinLength:   s.MinLength,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// ToolsContainer owns a threadsafe, ordered set of tool descriptors and
// handlers and implements ToolsCapability over them.
type ToolsContainer struct {
	mu       sync.RWMutex
	tools    []mcp.Tool
	handlers map[string]ToolHandler

	pageSize int
}

// NewToolsContainer constructs a new ToolsContainer with the given tool definitions.
func NewToolsContainer(defs ...StaticTool) *ToolsContainer {
	st := &ToolsContainer{pageSize: 50}
	st.Replace(defs...)
	return st
}

// SetPageSize sets the pagination size used by ListTools. A non-positive
// value is ignored.
func (st *ToolsContainer) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	st.mu.Lock()
	st.pageSize = n
	st.mu.Unlock()
}

// Snapshot returns a copy of the current tool descriptors.
func (st *ToolsContainer) Snapshot() []mcp.Tool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]mcp.Tool, len(st.tools))
	copy(out, st.tools)
	return out
}

// Replace atomically replaces the entire tool set. On duplicate names the
// last definition wins.
func (st *ToolsContainer) Replace(defs ...StaticTool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.tools = make([]mcp.Tool, 0, len(defs))
	st.handlers = make(map[string]ToolHandler, len(defs))
	index := make(map[string]int, len(defs))
	for _, d := range defs {
		if i, ok := index[d.Descriptor.Name]; ok {
			st.tools[i] = d.Descriptor
		} else {
			index[d.Descriptor.Name] = len(st.tools)
			st.tools = append(st.tools, d.Descriptor)
		}
		if d.Handler != nil {
			st.handlers[d.Descriptor.Name] = d.Handler
		}
	}
}

// Add registers a new tool if it doesn't duplicate an existing name.
// Returns true if added.
func (st *ToolsContainer) Add(def StaticTool) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	name := def.Descriptor.Name
	for _, t := range st.tools {
		if t.Name == name {
			return false
		}
	}
	st.tools = append(st.tools, def.Descriptor)
	if def.Handler != nil {
		if st.handlers == nil {
			st.handlers = make(map[string]ToolHandler)
		}
		st.handlers[name] = def.Handler
	}
	return true
}

// Remove removes a tool by name. Returns true if removed.
func (st *ToolsContainer) Remove(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	removed := false
	for _, t := range st.tools {
		if t.Name == name {
			removed = true
			continue
		}
		st.tools[n] = t
		n++
	}
	if removed {
		st.tools = st.tools[:n]
		delete(st.handlers, name)
	}
	return removed
}

// ListTools implements ToolsCapability with offset cursors.
func (st *ToolsContainer) ListTools(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.Tool], error) {
	st.mu.RLock()
	all := make([]mcp.Tool, len(st.tools))
	copy(all, st.tools)
	pageSize := st.pageSize
	st.mu.RUnlock()

	return paginate(all, cursor, pageSize), nil
}

// CallTool implements ToolsCapability by dispatching to the named handler.
func (st *ToolsContainer) CallTool(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
	if req == nil || req.Name == "" {
		return nil, ErrInvalidToolRequest
	}
	st.mu.RLock()
	h := st.handlers[req.Name]
	st.mu.RUnlock()
	if h == nil {
		return nil, &NotFoundError{Name: req.Name}
	}
	return h(ctx, session, req)
}

// Errorf returns an error CallToolResult with a single text block and IsError=true.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{mcp.TextBlock(fmt.Sprintf(format, a...))}, IsError: true}
}
