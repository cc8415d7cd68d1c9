package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

func TestHandler_AddsContextGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(slog.NewJSONHandler(&buf, nil)).With(slog.String("component", "test"))

	ctx := WithSessionData(context.Background(), &SessionData{SessionID: "s1", UserID: "u1", State: sessions.SessionStateOpen})
	ctx = WithRPCMessage(ctx, &RPCMessage{Method: "tools/call", ID: "3", Type: "request"})
	ctx = WithToolCallData(ctx, &ToolCallData{ToolName: "yachtsy-agent"})

	log.InfoContext(ctx, "stdio.handle_request.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	sess, _ := rec["sess"].(map[string]any)
	if sess["id"] != "s1" || sess["state"] != "open" {
		t.Fatalf("unexpected sess group: %v", rec["sess"])
	}
	tool, _ := rec["tool"].(map[string]any)
	if tool["name"] != "yachtsy-agent" {
		t.Fatalf("unexpected tool group: %v", rec["tool"])
	}
	if rec["component"] != "test" {
		t.Fatalf("With attrs lost: %v", rec)
	}
	if _, ok := rec["upstream"]; ok {
		t.Fatalf("upstream group should be absent: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if got := ParseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("debug -> %v", got)
	}
	if got := ParseLevel("WARN"); got != slog.LevelWarn {
		t.Fatalf("WARN -> %v", got)
	}
	if got := ParseLevel("bogus"); got != slog.LevelInfo {
		t.Fatalf("bogus -> %v", got)
	}
}
