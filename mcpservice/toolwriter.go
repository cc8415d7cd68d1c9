package mcpservice

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/yachtsy/yachtsy-mcp-go/mcp"
)

// ToolResponseWriter lets a tool handler compose a CallToolResult piece by
// piece. It is safe for concurrent use within one call. Appends after Result
// return ErrFinalized, and appends on a canceled context return ctx.Err().
type ToolResponseWriter interface {
	AppendText(text string) error
	AppendBlocks(blocks ...mcp.ContentBlock) error
	SetError(isError bool)
	SetMeta(key string, v any)
	// SendProgress forwards to the ProgressReporter in the call context, if any.
	SendProgress(progress, total float64, message string) error
	// Result finalizes and returns the accumulated result. It is idempotent.
	Result() *mcp.CallToolResult
}

// ErrFinalized is returned when attempting to write after Result() was called.
var ErrFinalized = errors.New("result already finalized")

type toolResponseWriter struct {
	ctx       context.Context
	mu        sync.Mutex
	finalized bool

	blocks  []mcp.ContentBlock
	isError bool
	meta    map[string]any
}

var _ ToolResponseWriter = (*toolResponseWriter)(nil)

func newToolResponseWriter(ctx context.Context) *toolResponseWriter {
	return &toolResponseWriter{ctx: ctx, meta: make(map[string]any)}
}

func (w *toolResponseWriter) AppendText(text string) error {
	if text == "" {
		return nil
	}
	return w.AppendBlocks(mcp.TextBlock(text))
}

func (w *toolResponseWriter) AppendBlocks(blocks ...mcp.ContentBlock) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return ErrFinalized
	}
	if len(blocks) == 0 {
		return nil
	}
	w.blocks = append(w.blocks, blocks...)
	return nil
}

func (w *toolResponseWriter) SetError(isError bool) {
	w.mu.Lock()
	w.isError = isError
	w.mu.Unlock()
}

func (w *toolResponseWriter) SetMeta(key string, v any) {
	if key == "" {
		return
	}
	w.mu.Lock()
	if w.meta == nil {
		w.meta = make(map[string]any)
	}
	w.meta[key] = v
	w.mu.Unlock()
}

func (w *toolResponseWriter) SendProgress(progress, total float64, message string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if pr, ok := ProgressFrom(w.ctx); ok {
		return pr.Report(w.ctx, progress, total, message)
	}
	return nil
}

func (w *toolResponseWriter) Result() *mcp.CallToolResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finalized = true
	content := make([]mcp.ContentBlock, len(w.blocks))
	copy(content, w.blocks)
	return &mcp.CallToolResult{Content: content, IsError: w.isError, BaseMetadata: mcp.BaseMetadata{Meta: maps.Clone(w.meta)}}
}
