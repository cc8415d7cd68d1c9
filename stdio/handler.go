package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yachtsy/yachtsy-mcp-go/internal/jsonrpc"
	"github.com/yachtsy/yachtsy-mcp-go/internal/logctx"
	"github.com/yachtsy/yachtsy-mcp-go/mcp"
	"github.com/yachtsy/yachtsy-mcp-go/mcpservice"
	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

var (
	// ErrAlreadyServing is returned by a second call to Serve.
	ErrAlreadyServing = errors.New("stdio handler already serving")

	errSessionNotInitialized = errors.New("session not initialized")
)

// clientCancel is the cancel cause recorded for notifications/cancelled.
type clientCancel struct{ reason string }

func (c *clientCancel) Error() string { return c.reason }

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout. It authenticates the peer using a UserProvider, which
// defaults to the current OS user.
//
// The handler is transport-only; it delegates all MCP semantics to the provided
// mcpservice.ServerCapabilities.
type Handler struct {
	srv          mcpservice.ServerCapabilities
	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider

	serving atomic.Bool

	writeMu sync.Mutex

	mu       sync.Mutex
	session  *session
	inflight map[string]context.CancelCauseFunc
	wg       sync.WaitGroup
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv mcpservice.ServerCapabilities, opts ...Option) *Handler {
	h := &Handler{
		srv:          srv,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
		inflight:     make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. Messages are newline-delimited JSON-RPC 2.0. On EOF Serve waits
// for in-flight tool calls to write their responses and returns nil; on
// cancellation it cancels them, waits, and returns ctx.Err().
func (h *Handler) Serve(ctx context.Context) error {
	if !h.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go h.readLoop(loopCtx, lines, readErr)

	h.l.InfoContext(ctx, "stdio.serve.start")
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			cancel()
			h.wg.Wait()
			h.closeSession()
			h.l.InfoContext(ctx, "stdio.serve.cancelled", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return ctx.Err()
		case line := <-lines:
			h.handleLine(loopCtx, line)
		case err := <-readErr:
			h.wg.Wait()
			h.closeSession()
			if errors.Is(err, io.EOF) {
				h.l.InfoContext(ctx, "stdio.serve.eof", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
				return nil
			}
			h.l.ErrorContext(ctx, "stdio.serve.fail", slog.String("err", err.Error()))
			return fmt.Errorf("read stdio: %w", err)
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, lines chan<- []byte, readErr chan<- error) {
	br := bufio.NewReader(h.r)
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			select {
			case lines <- trimmed:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

func (h *Handler) handleLine(ctx context.Context, line []byte) {
	if !json.Valid(line) {
		h.l.WarnContext(ctx, "stdio.handle_line.parse_error")
		h.writeMessage(ctx, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error", nil))
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		h.l.WarnContext(ctx, "stdio.handle_line.invalid", slog.String("err", err.Error()))
		h.writeMessage(ctx, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, "invalid request", nil))
		return
	}

	kind := msg.Type()
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: kind})
	if sess := h.currentSession(); sess != nil {
		ctx = logctx.WithSessionData(ctx, sess.logData())
	}

	switch kind {
	case jsonrpc.KindResponse:
		// This server never issues requests to the client.
		h.l.DebugContext(ctx, "stdio.handle_line.unexpected_response")
	case jsonrpc.KindNotification:
		h.handleNotification(ctx, msg.AsRequest())
	case jsonrpc.KindRequest:
		req := msg.AsRequest()
		if req.Method == string(mcp.ToolsCallMethod) {
			h.startToolCall(ctx, req)
			return
		}
		h.writeMessage(ctx, h.handleRequest(ctx, req))
	}
}

func (h *Handler) handleNotification(ctx context.Context, req *jsonrpc.Request) {
	switch req.Method {
	case string(mcp.InitializedNotificationMethod):
		sess := h.currentSession()
		if sess == nil {
			h.l.WarnContext(ctx, "stdio.handle_notification.uninitialized")
			return
		}
		sess.setState(sessions.SessionStateOpen)
		h.l.InfoContext(ctx, "stdio.session.open")
	case string(mcp.CancelledNotificationMethod):
		var params mcp.CancelledNotification
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.l.WarnContext(ctx, "stdio.handle_notification.invalid", slog.String("err", err.Error()))
			return
		}
		var rid jsonrpc.RequestID
		if err := json.Unmarshal(params.RequestID, &rid); err != nil || rid.IsNil() {
			h.l.WarnContext(ctx, "stdio.handle_notification.invalid", slog.String("err", "missing request id"))
			return
		}
		had := h.cancelInFlight(rid.String(), params.Reason)
		h.l.InfoContext(ctx, "stdio.handle_notification.cancel", slog.String("request_id", rid.String()), slog.Bool("had_cancel", had))
	default:
		h.l.DebugContext(ctx, "stdio.handle_notification.ignored")
	}
}

func (h *Handler) handleRequest(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()

	switch req.Method {
	case string(mcp.InitializeMethod):
		return h.handleInitialize(ctx, req)
	case string(mcp.PingMethod):
		return h.resultOrInternal(ctx, req, mcp.EmptyResult{}, start)
	}

	sess := h.currentSession()
	if sess == nil {
		h.l.InfoContext(ctx, "stdio.handle_request.uninitialized")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, errSessionNotInitialized.Error(), nil)
	}

	switch req.Method {
	case string(mcp.ToolsListMethod):
		return h.handleToolsList(ctx, sess, req)
	default:
		h.l.InfoContext(ctx, "stdio.handle_request.unsupported")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "method not found", nil)
	}
}

func (h *Handler) handleInitialize(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()

	if h.currentSession() != nil {
		h.l.InfoContext(ctx, "stdio.initialize.duplicate")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "session already initialized", nil)
	}

	var params mcp.InitializeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.l.InfoContext(ctx, "stdio.initialize.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
	}

	userID, err := h.userProvider.CurrentUserID()
	if err != nil {
		h.l.ErrorContext(ctx, "stdio.initialize.fail", slog.String("err", fmt.Errorf("resolve user: %w", err).Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}

	version := mcp.NegotiateProtocolVersion(params.ProtocolVersion)

	sess := &session{
		id:      uuid.NewString(),
		userID:  userID,
		version: version,
		client:  sessions.ClientInfo{Name: params.ClientInfo.Name, Version: params.ClientInfo.Version},
		state:   sessions.SessionStatePending,
		created: time.Now(),
	}

	res, err := h.buildInitializeResult(ctx, sess)
	if err != nil {
		h.l.ErrorContext(ctx, "stdio.initialize.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}

	h.mu.Lock()
	h.session = sess
	h.mu.Unlock()

	ctx = logctx.WithSessionData(ctx, sess.logData())
	h.l.InfoContext(ctx, "stdio.initialize.ok",
		slog.String("client_name", params.ClientInfo.Name),
		slog.String("client_version", params.ClientInfo.Version),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return h.resultOrInternal(ctx, req, res, start)
}

func (h *Handler) buildInitializeResult(ctx context.Context, sess *session) (*mcp.InitializeResult, error) {
	info, err := h.srv.GetServerInfo(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}
	res := &mcp.InitializeResult{
		ProtocolVersion: sess.version,
		ServerInfo:      info,
	}
	if instr, ok, err := h.srv.GetInstructions(ctx, sess); err != nil {
		return nil, fmt.Errorf("get instructions: %w", err)
	} else if ok {
		res.Instructions = instr
	}
	if tools, ok, err := h.srv.GetToolsCapability(ctx, sess); err != nil {
		return nil, fmt.Errorf("get tools capability: %w", err)
	} else if ok && tools != nil {
		res.Capabilities.Tools = &struct {
			ListChanged bool `json:"listChanged"`
		}{}
	}
	return res, nil
}

func (h *Handler) handleToolsList(ctx context.Context, sess *session, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()

	var params mcp.ListToolsRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.l.InfoContext(ctx, "stdio.handle_request.invalid", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
		}
	}

	tools, ok, err := h.srv.GetToolsCapability(ctx, sess)
	if err != nil {
		h.l.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	if !ok || tools == nil {
		h.l.InfoContext(ctx, "stdio.handle_request.unsupported")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "tools capability not supported", nil)
	}

	var cursor *string
	if params.Cursor != "" {
		cursor = &params.Cursor
	}
	page, err := tools.ListTools(ctx, sess, cursor)
	if err != nil {
		h.l.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}

	res := &mcp.ListToolsResult{Tools: page.Items}
	if page.NextCursor != nil {
		res.NextCursor = *page.NextCursor
	}
	h.l.InfoContext(ctx, "stdio.handle_request.ok", slog.Int("tool_count", len(page.Items)), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return h.resultOrInternal(ctx, req, res, start)
}

// startToolCall runs a tools/call on its own goroutine so that later lines,
// including notifications/cancelled for this call, keep flowing.
func (h *Handler) startToolCall(ctx context.Context, req *jsonrpc.Request) {
	sess := h.currentSession()
	if sess == nil {
		h.l.InfoContext(ctx, "stdio.handle_request.uninitialized")
		h.writeMessage(ctx, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, errSessionNotInitialized.Error(), nil))
		return
	}

	reqID := req.ID.String()
	toolCtx, toolCancel := context.WithCancelCause(ctx)

	h.mu.Lock()
	if _, exists := h.inflight[reqID]; exists {
		h.mu.Unlock()
		toolCancel(context.Canceled)
		h.l.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", "duplicate request ID"))
		h.writeMessage(ctx, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "duplicate request id", nil))
		return
	}
	h.inflight[reqID] = toolCancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.inflight, reqID)
			h.mu.Unlock()
			toolCancel(context.Canceled)
		}()
		// A request the client cancelled gets no response.
		if resp := h.handleToolCall(toolCtx, sess, req); resp != nil {
			h.writeMessage(ctx, resp)
		}
	}()
}

func (h *Handler) handleToolCall(ctx context.Context, sess *session, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()

	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.l.InfoContext(ctx, "stdio.handle_request.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	tools, ok, err := h.srv.GetToolsCapability(ctx, sess)
	if err != nil {
		h.l.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	if !ok || tools == nil {
		h.l.InfoContext(ctx, "stdio.handle_request.unsupported")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "tools capability not supported", nil)
	}

	if params.Meta != nil && params.Meta.ProgressToken != nil {
		ctx = mcpservice.WithProgressReporter(ctx, &progressReporter{h: h, token: params.Meta.ProgressToken})
	}

	res, err := tools.CallTool(ctx, sess, &params)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			cause := context.Cause(ctx)
			if cause == nil {
				cause = err
			}
			h.l.InfoContext(ctx, "stdio.handle_request.cancelled", slog.String("cause", cause.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			var cc *clientCancel
			if errors.As(cause, &cc) {
				return nil
			}
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "cancelled", nil)
		case mcpservice.IsNotFound(err), errors.Is(err, mcpservice.ErrInvalidToolRequest):
			h.l.InfoContext(ctx, "stdio.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil)
		default:
			h.l.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
		}
	}

	h.l.InfoContext(ctx, "stdio.handle_request.ok", slog.Bool("is_error", res.IsError), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return h.resultOrInternal(ctx, req, res, start)
}

func (h *Handler) resultOrInternal(ctx context.Context, req *jsonrpc.Request, result any, start time.Time) *jsonrpc.Response {
	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		h.l.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return resp
}

func (h *Handler) cancelInFlight(reqID, reason string) bool {
	h.mu.Lock()
	cancel, ok := h.inflight[reqID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	if reason == "" {
		reason = "cancelled"
	}
	cancel(&clientCancel{reason: reason})
	return true
}

// writeMessage serializes msg as a single line. Writes from concurrent tool
// calls never interleave.
func (h *Handler) writeMessage(ctx context.Context, msg any) {
	if err := h.write(msg); err != nil {
		h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
	}
}

func (h *Handler) write(msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	b = append(b, '\n')

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if _, err := h.w.Write(b); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (h *Handler) currentSession() *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *Handler) closeSession() {
	if sess := h.currentSession(); sess != nil {
		sess.setState(sessions.SessionStateClosed)
	}
}

// progressReporter emits notifications/progress for one tool call.
type progressReporter struct {
	h     *Handler
	token mcp.ProgressToken
}

func (p *progressReporter) Report(ctx context.Context, progress, total float64, message string) error {
	n, err := jsonrpc.NewNotification(string(mcp.ProgressNotificationMethod), mcp.ProgressNotificationParams{
		ProgressToken: p.token,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
	if err != nil {
		return err
	}
	return p.h.write(n)
}
