package yachtsy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/yachtsy/yachtsy-mcp-go/internal/logctx"
)

const (
	DefaultBaseURL = "https://api.yachtsy.ai/v1"
	DefaultModel   = "yachtsy-agent"
)

// Version is reported in the User-Agent header and as the MCP server
// version. Overridden at link time with -X.
var Version = "0.1.0"

var (
	ErrEmptyPrompt = errors.New("prompt must not be empty")
	ErrMissingKey  = errors.New("api key must not be empty")
)

// Asker answers a natural-language question about yachts.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Agent talks to the OpenAI-compatible Yachtsy chat completions endpoint.
type Agent struct {
	model     string
	transport http.RoundTripper
	log       *slog.Logger

	current atomic.Pointer[upstream]
}

type upstream struct {
	client  *openai.Client
	baseURL string
}

var _ Asker = (*Agent)(nil)

// Option configures an Agent.
type Option func(*agentConfig)

type agentConfig struct {
	baseURL   string
	model     string
	transport http.RoundTripper
	log       *slog.Logger
}

// WithBaseURL points the agent at a different OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *agentConfig) { c.baseURL = u }
}

func WithModel(m string) Option {
	return func(c *agentConfig) { c.model = m }
}

// WithTransport sets the base RoundTripper. Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *agentConfig) { c.transport = rt }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *agentConfig) { c.log = l }
}

// NewAgent builds an Agent authenticating with apiKey.
func NewAgent(apiKey string, opts ...Option) (*Agent, error) {
	cfg := agentConfig{
		baseURL:   DefaultBaseURL,
		model:     DefaultModel,
		transport: http.DefaultTransport,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.model == "" {
		return nil, errors.New("model must not be empty")
	}

	a := &Agent{
		model:     cfg.model,
		transport: &userAgentTransport{base: cfg.transport, userAgent: UserAgent()},
		log:       cfg.log,
	}
	if err := a.SetCredentials(apiKey, cfg.baseURL); err != nil {
		return nil, err
	}
	return a, nil
}

// UserAgent identifies this client to the upstream API.
func UserAgent() string {
	return fmt.Sprintf("yachtsy-mcp-go/%s (Go/%s)", Version, strings.TrimPrefix(runtime.Version(), "go"))
}

// Model returns the chat model the agent requests.
func (a *Agent) Model() string { return a.model }

// BaseURL returns the endpoint currently in use.
func (a *Agent) BaseURL() string { return a.current.Load().baseURL }

// SetCredentials atomically swaps the API key and endpoint. Calls already
// streaming keep the client they started with. An empty baseURL keeps the
// current endpoint.
func (a *Agent) SetCredentials(apiKey, baseURL string) error {
	if apiKey == "" {
		return ErrMissingKey
	}
	if baseURL == "" {
		if cur := a.current.Load(); cur != nil {
			baseURL = cur.baseURL
		} else {
			baseURL = DefaultBaseURL
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Transport: a.transport}

	a.current.Store(&upstream{client: openai.NewClientWithConfig(cfg), baseURL: cfg.BaseURL})
	return nil
}

// Ask streams a completion for a single user message and returns the
// concatenated content deltas.
func (a *Agent) Ask(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	up := a.current.Load()
	ctx = logctx.WithUpstreamData(ctx, &logctx.UpstreamData{BaseURL: up.baseURL, Model: a.model})
	start := time.Now()

	stream, err := up.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		a.log.ErrorContext(ctx, "agent.stream.open.err", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return "", fmt.Errorf("open chat completion stream: %w", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	var (
		answer strings.Builder
		chunks int
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.log.ErrorContext(ctx, "agent.stream.recv.err", slog.String("err", err.Error()), slog.Int("chunks", chunks), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return "", fmt.Errorf("receive chat completion chunk: %w", err)
		}
		chunks++
		if len(chunk.Choices) == 0 {
			continue
		}
		answer.WriteString(chunk.Choices[0].Delta.Content)
	}

	a.log.InfoContext(ctx, "agent.stream.done",
		slog.Int("chunks", chunks),
		slog.Int("chars", answer.Len()),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return answer.String(), nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
