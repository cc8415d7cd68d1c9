package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yachtsy/yachtsy-mcp-go/mcp"
	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

type nopSession struct{ sessions.Session }

type emptyArgs struct{}

type askArgs struct {
	Prompt string `json:"prompt" jsonschema:"minLength=1,description=The question"`
	Limit  int    `json:"limit,omitempty"`
}

func TestNewTool_ReflectsInputSchema(t *testing.T) {
	t.Parallel()

	tool := NewTool[askArgs]("ask", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[askArgs]) error {
		return nil
	}, WithToolDescription("ask a question"), WithToolTitle("Ask"))

	d := tool.Descriptor
	if d.Name != "ask" || d.Description != "ask a question" || d.Title != "Ask" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if d.InputSchema.Type != "object" {
		t.Fatalf("expected object schema, got %q", d.InputSchema.Type)
	}
	if d.InputSchema.AdditionalProperties {
		t.Fatalf("expected additionalProperties=false by default")
	}
	p, ok := d.InputSchema.Properties["prompt"]
	if !ok {
		t.Fatalf("prompt property missing: %+v", d.InputSchema.Properties)
	}
	if p.Type != "string" || p.Description != "The question" {
		t.Fatalf("unexpected prompt property: %+v", p)
	}
	if p.MinLength == nil || *p.MinLength != 1 {
		t.Fatalf("expected minLength=1, got %v", p.MinLength)
	}
	if len(d.InputSchema.Required) != 1 || d.InputSchema.Required[0] != "prompt" {
		t.Fatalf("expected required=[prompt], got %v", d.InputSchema.Required)
	}
}

func TestNewTool_StrictDecodingRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	called := false
	tool := NewTool[askArgs]("ask", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[askArgs]) error {
		called = true
		return nil
	})
	c := NewToolsContainer(tool)

	res, err := c.CallTool(t.Context(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "ask",
		Arguments: json.RawMessage(`{"prompt":"hi","bogus":true}`),
	})
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if called {
		t.Fatalf("handler should not run on invalid arguments")
	}
	if !res.IsError || len(res.Content) != 1 {
		t.Fatalf("expected isError result, got %+v", res)
	}
}

func TestNewTool_LenientDecoding(t *testing.T) {
	t.Parallel()

	tool := NewTool[askArgs]("ask", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[askArgs]) error {
		return w.AppendText("you asked: " + r.Args().Prompt)
	}, WithToolAllowAdditionalProperties(true))
	if !tool.Descriptor.InputSchema.AdditionalProperties {
		t.Fatalf("expected additionalProperties=true")
	}
	c := NewToolsContainer(tool)

	res, err := c.CallTool(t.Context(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "ask",
		Arguments: json.RawMessage(`{"prompt":"hi","bogus":true}`),
	})
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if res.IsError || res.Content[0].Text != "you asked: hi" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestToolsContainer_CallUnknownTool(t *testing.T) {
	t.Parallel()

	c := NewToolsContainer()
	_, err := c.CallTool(t.Context(), nopSession{}, &mcp.CallToolRequestReceived{Name: "missing"})
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	_, err = c.CallTool(t.Context(), nopSession{}, &mcp.CallToolRequestReceived{})
	if !errors.Is(err, ErrInvalidToolRequest) {
		t.Fatalf("expected ErrInvalidToolRequest, got %v", err)
	}
}

func TestToolsContainer_HandlerErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := NewToolsContainer(NewTool[emptyArgs]("fail", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[emptyArgs]) error {
		return boom
	}))
	_, err := c.CallTool(t.Context(), nopSession{}, &mcp.CallToolRequestReceived{Name: "fail"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestToolsContainer_Pagination(t *testing.T) {
	t.Parallel()

	noop := func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[emptyArgs]) error { return nil }
	c := NewToolsContainer(
		NewTool[emptyArgs]("a", noop),
		NewTool[emptyArgs]("b", noop),
		NewTool[emptyArgs]("c", noop),
	)
	c.SetPageSize(2)

	page, err := c.ListTools(t.Context(), nopSession{}, nil)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Name != "a" || page.Items[1].Name != "b" {
		t.Fatalf("unexpected first page: %+v", page.Items)
	}
	if page.NextCursor == nil || *page.NextCursor != "2" {
		t.Fatalf("expected next cursor 2, got %v", page.NextCursor)
	}

	page, err = c.ListTools(t.Context(), nopSession{}, page.NextCursor)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "c" || page.NextCursor != nil {
		t.Fatalf("unexpected second page: %+v next=%v", page.Items, page.NextCursor)
	}
}

func TestToolsContainer_AddRemoveReplace(t *testing.T) {
	t.Parallel()

	noop := func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[emptyArgs]) error { return nil }
	c := NewToolsContainer(NewTool[emptyArgs]("a", noop))

	if c.Add(NewTool[emptyArgs]("a", noop)) {
		t.Fatalf("duplicate add should be rejected")
	}
	if !c.Add(NewTool[emptyArgs]("b", noop)) {
		t.Fatalf("add of new tool should succeed")
	}
	if !c.Remove("a") || c.Remove("a") {
		t.Fatalf("remove should succeed exactly once")
	}
	if got := c.Snapshot(); len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	c.Replace(
		NewTool[emptyArgs]("x", noop, WithToolDescription("first")),
		NewTool[emptyArgs]("x", noop, WithToolDescription("second")),
	)
	got := c.Snapshot()
	if len(got) != 1 || got[0].Description != "second" {
		t.Fatalf("expected last definition to win, got %+v", got)
	}
}

type recordingReporter struct {
	progress []float64
	messages []string
}

func (r *recordingReporter) Report(ctx context.Context, progress, total float64, message string) error {
	r.progress = append(r.progress, progress)
	r.messages = append(r.messages, message)
	return nil
}

func TestToolResponseWriter(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{}
	ctx := WithProgressReporter(t.Context(), rep)
	w := newToolResponseWriter(ctx)

	if err := w.AppendText("one"); err != nil {
		t.Fatalf("AppendText: %v", err)
	}
	if err := w.AppendText(""); err != nil {
		t.Fatalf("AppendText empty: %v", err)
	}
	if err := w.SendProgress(1, 2, "halfway"); err != nil {
		t.Fatalf("SendProgress: %v", err)
	}
	w.SetError(true)

	res := w.Result()
	if len(res.Content) != 1 || res.Content[0].Text != "one" || !res.IsError {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Meta != nil && len(res.Meta) != 0 {
		t.Fatalf("expected no meta, got %v", res.Meta)
	}
	if len(rep.progress) != 1 || rep.messages[0] != "halfway" {
		t.Fatalf("progress not forwarded: %+v", rep)
	}
	if err := w.AppendText("late"); !errors.Is(err, ErrFinalized) {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}
}

func TestToolResponseWriter_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	w := newToolResponseWriter(ctx)
	if err := w.AppendText("x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := w.SendProgress(0, 0, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestServer_Options(t *testing.T) {
	t.Parallel()

	tools := NewToolsContainer()
	srv := NewServer(
		WithServerInfo(mcp.ImplementationInfo{Name: "yachtsy-mcp", Version: "1.0.0"}),
		WithInstructions("ask about boats"),
		WithToolsCapability(tools),
	)
	info, err := srv.GetServerInfo(t.Context(), nopSession{})
	if err != nil || info.Name != "yachtsy-mcp" {
		t.Fatalf("unexpected info %+v err=%v", info, err)
	}
	instr, ok, _ := srv.GetInstructions(t.Context(), nopSession{})
	if !ok || instr != "ask about boats" {
		t.Fatalf("unexpected instructions %q ok=%v", instr, ok)
	}
	tc, ok, err := srv.GetToolsCapability(t.Context(), nopSession{})
	if err != nil || !ok || tc != tools {
		t.Fatalf("unexpected tools capability %v ok=%v err=%v", tc, ok, err)
	}

	bare := NewServer()
	if _, ok, _ := bare.GetToolsCapability(t.Context(), nopSession{}); ok {
		t.Fatalf("bare server should not advertise tools")
	}
}
