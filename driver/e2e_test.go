package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yachtsy/yachtsy-mcp-go/internal/config"
	"github.com/yachtsy/yachtsy-mcp-go/stdio"
	"github.com/yachtsy/yachtsy-mcp-go/yachtsyserver"
)

// helperAsker answers with the prompt and the key the child received.
type helperAsker struct{}

func (helperAsker) Ask(ctx context.Context, prompt string) (string, error) {
	if fail := os.Getenv("HELPER_FAIL_PROMPT"); fail != "" && fail == prompt {
		return "", errors.New("upstream unavailable")
	}
	if config.IsPlaceholder(os.Getenv(APIKeyEnv)) {
		return "", errors.New("401 invalid api key")
	}
	return fmt.Sprintf("%s | key=%s", prompt, os.Getenv(APIKeyEnv)), nil
}

// TestHelperProcess is the child side of the end-to-end tests. It serves the
// real stdio server over the process's stdin/stdout.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		t.Skip("helper process only")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if _, err := config.LoadServer(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	srv, err := yachtsyserver.New(helperAsker{}, yachtsyserver.WithLogger(log))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	h := stdio.NewHandler(srv, stdio.WithLogger(log), stdio.WithUserProvider(stdio.StaticUserProvider("e2e")))
	if err := h.Serve(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func helperParams(extra map[string]string) Params {
	env := map[string]string{
		"GO_WANT_HELPER_PROCESS": "1",
		APIKeyEnv:                "sk-e2e",
	}
	for k, v := range extra {
		env[k] = v
	}
	return Params{
		Command: os.Args[0],
		Args:    []string{"-test.run=^TestHelperProcess$"},
		Env:     env,
	}
}

func TestEndToEnd_SDKBackend(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	b := NewSDKBackend(WithTerminateDuration(2 * time.Second))
	outcomes, err := Run(ctx, b, helperParams(nil), WithOutput(&out), WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("Run() failed: %v\noutput:\n%s", err, out.String())
	}

	got := out.String()
	if !strings.HasPrefix(got, "Connected to Yachtsy MCP server\nAvailable tools:\n- yachtsy-agent: [YACHT MARKETPLACE INTELLIGENCE]") {
		t.Fatalf("unexpected header:\n%s", got)
	}
	for _, p := range Prompts {
		if !strings.Contains(got, "\n"+p+"...\n"+p+" | key=sk-e2e\n") {
			t.Fatalf("missing result for %q:\n%s", p, got)
		}
	}
	if len(outcomes) != len(Prompts) {
		t.Fatalf("expected %d outcomes, got %d", len(Prompts), len(outcomes))
	}
}

func TestEndToEnd_RemoteError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	b := NewSDKBackend(WithTerminateDuration(2 * time.Second))
	outcomes, err := Run(ctx, b, helperParams(map[string]string{"HELPER_FAIL_PROMPT": Prompts[2]}),
		WithOutput(&out), WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !outcomes[2].Remote() {
		t.Fatalf("expected remote error for third prompt: %+v", outcomes[2])
	}
	if !strings.Contains(out.String(), "Error: Failed to process yacht marketplace query. upstream unavailable") {
		t.Fatalf("remote error text not printed:\n%s", out.String())
	}
}

func TestEndToEnd_PlaceholderKey(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	b := NewSDKBackend(WithTerminateDuration(2 * time.Second))
	outcomes, err := Run(ctx, b, helperParams(map[string]string{APIKeyEnv: config.PlaceholderAPIKey}),
		WithOutput(&out), WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("Run() failed: %v\noutput:\n%s", err, out.String())
	}
	if !strings.HasPrefix(out.String(), "Connected to Yachtsy MCP server\nAvailable tools:\n") {
		t.Fatalf("server must start on the placeholder key:\n%s", out.String())
	}
	if len(outcomes) != len(Prompts) {
		t.Fatalf("expected %d outcomes, got %d", len(Prompts), len(outcomes))
	}
	for i, o := range outcomes {
		if !o.Remote() {
			t.Fatalf("outcome %d should be a remote error: %+v", i, o)
		}
	}
	if n := strings.Count(out.String(), "Error: Failed to process yacht marketplace query. 401 invalid api key"); n != len(Prompts) {
		t.Fatalf("expected %d per-call errors, got %d:\n%s", len(Prompts), n, out.String())
	}
}

func TestEndToEnd_SpawnFailure(t *testing.T) {
	t.Parallel()

	b := NewSDKBackend()
	_, err := Run(t.Context(), b, Params{Command: "/nonexistent/yachtsy-mcp"}, WithOutput(&bytes.Buffer{}),
		WithLogger(slog.New(slog.DiscardHandler)))
	if !IsKind(err, KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
