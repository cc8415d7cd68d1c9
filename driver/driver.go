package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/yachtsy/yachtsy-mcp-go/internal/config"
)

// ToolName is the remote operation every prompt is sent to.
const ToolName = "yachtsy-agent"

// Prompts are issued in this order.
var Prompts = []string{
	"Tell me more about Tayana 37",
	"Show me Tayana 37 listings for sale",
	"Find 30-40ft sailboats under $50k in Charleston, SC",
	"Tide chart for Charleston today",
}

// Capability describes a remote tool.
type Capability struct {
	Name        string
	Description string
}

// Block is a single content part of a call result.
type Block struct {
	Type string
	Text string
}

// Result is the outcome of one remote call.
type Result struct {
	Blocks  []Block
	IsError bool
}

// Text returns the first block's text.
func (r *Result) Text() string {
	if r == nil || len(r.Blocks) == 0 {
		return ""
	}
	return r.Blocks[0].Text
}

// Transport owns the child process and its pipes. Close releases both.
type Transport interface {
	Close() error
}

// Session is an initialized MCP client session.
type Session interface {
	ListCapabilities(ctx context.Context) ([]Capability, error)
	Invoke(ctx context.Context, name string, args map[string]any) (*Result, error)
}

// Backend opens transports and performs the initialize handshake.
type Backend interface {
	Connect(ctx context.Context, p Params) (Transport, error)
	Establish(ctx context.Context, t Transport) (Session, error)
}

// Outcome records one prompt's call.
type Outcome struct {
	Prompt string
	Result *Result
	Err    error
}

// Remote reports whether the server flagged the result as an error.
func (o Outcome) Remote() bool { return o.Result != nil && o.Result.IsError }

type Option func(*runConfig)

type runConfig struct {
	out             io.Writer
	log             *slog.Logger
	callTimeout     time.Duration
	continueOnError bool
}

// WithOutput sets where console output is printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *runConfig) { c.out = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.log = l }
}

// WithCallTimeout bounds each invocation. Zero means no timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *runConfig) { c.callTimeout = d }
}

// WithContinueOnError runs every prompt even when earlier ones fail; the
// failures are joined into the returned error.
func WithContinueOnError(v bool) Option {
	return func(c *runConfig) { c.continueOnError = v }
}

// Run connects to the server described by p, lists its tools and sends each
// of Prompts to ToolName, printing the results. The transport is released
// exactly once before Run returns.
func Run(ctx context.Context, b Backend, p Params, opts ...Option) ([]Outcome, error) {
	cfg := runConfig{out: os.Stdout, log: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	if p.Env[APIKeyEnv] == config.PlaceholderAPIKey {
		cfg.log.WarnContext(ctx, "driver.configure.placeholder_key", slog.String("env", APIKeyEnv))
	}

	start := time.Now()
	tr, err := b.Connect(ctx, p)
	if err != nil {
		return nil, wrap(KindTransport, "spawn "+p.Command, err)
	}
	release := sync.OnceValue(tr.Close)
	defer func() {
		if err := release(); err != nil {
			cfg.log.WarnContext(ctx, "driver.teardown.err", slog.String("err", err.Error()))
		}
	}()

	sess, err := b.Establish(ctx, tr)
	if err != nil {
		return nil, wrap(KindHandshake, "initialize", err)
	}
	cfg.log.InfoContext(ctx, "driver.connect.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	fmt.Fprintln(cfg.out, "Connected to Yachtsy MCP server")

	caps, err := sess.ListCapabilities(ctx)
	if err != nil {
		return nil, wrap(KindInvocation, "list tools", err)
	}
	fmt.Fprintln(cfg.out, "Available tools:")
	for _, c := range caps {
		fmt.Fprintf(cfg.out, "- %s: %s\n", c.Name, c.Description)
	}

	var (
		outcomes []Outcome
		errs     []error
	)
	for _, prompt := range Prompts {
		fmt.Fprintf(cfg.out, "\n%s...\n", prompt)

		res, err := invoke(ctx, sess, prompt, cfg)
		outcomes = append(outcomes, Outcome{Prompt: prompt, Result: res, Err: err})
		if err != nil {
			if !cfg.continueOnError {
				return outcomes, err
			}
			cfg.log.WarnContext(ctx, "driver.invoke.err", slog.String("prompt", prompt), slog.String("err", err.Error()))
			errs = append(errs, err)
			continue
		}
		fmt.Fprintln(cfg.out, res.Text())
	}

	return outcomes, errors.Join(errs...)
}

func invoke(ctx context.Context, sess Session, prompt string, cfg runConfig) (*Result, error) {
	if cfg.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.callTimeout)
		defer cancel()
	}

	op := "call " + ToolName
	start := time.Now()
	res, err := sess.Invoke(ctx, ToolName, map[string]any{"prompt": prompt})
	if err != nil {
		return nil, wrap(KindInvocation, op, err)
	}
	if len(res.Blocks) == 0 {
		return res, wrap(KindInvocation, op, ErrNoContent)
	}
	cfg.log.DebugContext(ctx, "driver.invoke.ok",
		slog.String("prompt", prompt),
		slog.Bool("is_error", res.IsError),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}
