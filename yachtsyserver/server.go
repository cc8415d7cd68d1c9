// Package yachtsyserver assembles the yachtsy-mcp server: a single
// yachtsy-agent tool backed by a yachtsy.Asker.
package yachtsyserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yachtsy/yachtsy-mcp-go/internal/config"
	"github.com/yachtsy/yachtsy-mcp-go/mcp"
	"github.com/yachtsy/yachtsy-mcp-go/mcpservice"
	"github.com/yachtsy/yachtsy-mcp-go/sessions"
	"github.com/yachtsy/yachtsy-mcp-go/yachtsy"
)

const (
	ServerName = "yachtsy-mcp"
	ToolName   = "yachtsy-agent"

	ToolDescription = "[YACHT MARKETPLACE INTELLIGENCE] Main Yachtsy agent with automatic routing to specialized sub-agents. " +
		"Capabilities: Intelligently routes queries to Listings Agent, General Boat Expert (Small Talk Agent), or Deep Research Agent based on context. " +
		"Handles boat listings searches, yacht specifications, market trends, sailing advice, and general yacht-related questions. " +
		"Best for: Any yacht or boat-related query - the agent will automatically select the best specialized agent. " +
		"Example queries: 'Show me Catalina 34 sailboats under $100k', 'What are the best bluewater cruising boats?', " +
		"'Find me yacht listings in Florida', 'Tell me about the Tayana 37', 'What should I look for when buying a used sailboat?'."

	failurePrefix = "Error: Failed to process yacht marketplace query. "
)

// AgentArgs is the input of the yachtsy-agent tool.
type AgentArgs struct {
	Prompt string `json:"prompt" jsonschema_description:"Your natural language query about yachts, boats, or sailing"`
}

type Option func(*config)

type config struct {
	version string
	log     *slog.Logger
}

// WithVersion overrides the server version reported during initialize.
func WithVersion(v string) Option {
	return func(c *config) { c.version = v }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// New returns the server capabilities for asker.
func New(asker yachtsy.Asker, opts ...Option) (mcpservice.ServerCapabilities, error) {
	if asker == nil {
		return nil, errors.New("asker is required")
	}
	cfg := config{version: yachtsy.Version, log: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	tools := mcpservice.NewToolsContainer(AgentTool(asker, cfg.log))
	return mcpservice.NewServer(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: ServerName, Version: cfg.version}),
		mcpservice.WithToolsCapability(tools),
	), nil
}

// AgentTool forwards the prompt to asker. Upstream failures are returned to
// the client as an isError result rather than a protocol error.
func AgentTool(asker yachtsy.Asker, log *slog.Logger) mcpservice.StaticTool {
	return mcpservice.NewTool[AgentArgs](ToolName, func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[AgentArgs]) error {
		_ = w.SendProgress(0, 1, "asking the Yachtsy agent")

		answer, err := asker.Ask(yachtsy.WithUser(ctx, s.UserID()), r.Args().Prompt)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WarnContext(ctx, "yachtsy.agent.failed", slog.String("err", err.Error()))
			w.SetError(true)
			return w.AppendText(failurePrefix + err.Error())
		}

		_ = w.SendProgress(1, 1, "done")
		return w.AppendBlocks(mcp.TextBlock(answer))
	}, mcpservice.WithToolDescription(ToolDescription))
}

// CredentialSetter is satisfied by *yachtsy.Agent.
type CredentialSetter interface {
	SetCredentials(apiKey, baseURL string) error
}

// CredentialReloader returns an env-file change handler that rotates the
// upstream key and endpoint. A file without YACHTSY_API_KEY is ignored. check
// is the key policy applied at startup; a nil check accepts any key.
func CredentialReloader(target CredentialSetter, check func(apiKey string) error, log *slog.Logger) func(env map[string]string) {
	return func(env map[string]string) {
		key := env["YACHTSY_API_KEY"]
		if key == "" {
			log.Warn("yachtsy.credentials.reload.skipped", slog.String("reason", "YACHTSY_API_KEY not set in env file"))
			return
		}
		if check != nil {
			if err := check(key); err != nil {
				log.Error("yachtsy.credentials.reload.rejected", slog.String("err", err.Error()))
				return
			}
		}
		if config.IsPlaceholder(key) {
			log.Warn("yachtsy.credentials.placeholder_key")
		}
		if err := target.SetCredentials(key, env["YACHTSY_API_BASE_URL"]); err != nil {
			log.Error("yachtsy.credentials.reload.err", slog.String("err", err.Error()))
			return
		}
		log.Info("yachtsy.credentials.reload.ok")
	}
}
