package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// SDKBackend launches the server as a child process and talks to it with
// the official MCP Go SDK client.
type SDKBackend struct {
	impl      *sdk.Implementation
	stderr    io.Writer
	terminate time.Duration
}

type SDKOption func(*SDKBackend)

// WithClientInfo sets the implementation reported during initialize.
func WithClientInfo(name, version string) SDKOption {
	return func(b *SDKBackend) { b.impl = &sdk.Implementation{Name: name, Version: version} }
}

// WithStderr sets where the child's stderr goes. Defaults to os.Stderr.
func WithStderr(w io.Writer) SDKOption {
	return func(b *SDKBackend) { b.stderr = w }
}

// WithTerminateDuration bounds how long Close waits for the child to exit
// after its stdin is closed before signalling it.
func WithTerminateDuration(d time.Duration) SDKOption {
	return func(b *SDKBackend) { b.terminate = d }
}

func NewSDKBackend(opts ...SDKOption) *SDKBackend {
	b := &SDKBackend{
		impl:   &sdk.Implementation{Name: "yachtsy-client-example", Version: "1.0.0"},
		stderr: os.Stderr,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

var _ Backend = (*SDKBackend)(nil)

func (b *SDKBackend) Connect(ctx context.Context, p Params) (Transport, error) {
	if p.Command == "" {
		return nil, errors.New("command must not be empty")
	}
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Env = p.Environ(os.Environ())
	cmd.Stderr = b.stderr

	conn, err := (&sdk.CommandTransport{Command: cmd, TerminateDuration: b.terminate}).Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &sdkTransport{conn: &onceConn{Connection: conn}}, nil
}

func (b *SDKBackend) Establish(ctx context.Context, t Transport) (Session, error) {
	st, ok := t.(*sdkTransport)
	if !ok {
		return nil, fmt.Errorf("unsupported transport %T", t)
	}
	client := sdk.NewClient(b.impl, nil)
	cs, err := client.Connect(ctx, connectedTransport{conn: st.conn}, nil)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.session = cs
	st.mu.Unlock()
	return &sdkSession{cs: cs}, nil
}

// sdkTransport owns the child connection until a session takes it over.
type sdkTransport struct {
	conn *onceConn

	mu      sync.Mutex
	session *sdk.ClientSession
}

func (t *sdkTransport) Close() error {
	t.mu.Lock()
	cs := t.session
	t.mu.Unlock()
	if cs != nil {
		return cs.Close()
	}
	return t.conn.Close()
}

// onceConn makes Close idempotent so the session and the transport can both
// attempt it.
type onceConn struct {
	sdk.Connection
	once sync.Once
	err  error
}

func (c *onceConn) Close() error {
	c.once.Do(func() { c.err = c.Connection.Close() })
	return c.err
}

// connectedTransport hands an already-open connection to the SDK client.
type connectedTransport struct {
	conn sdk.Connection
}

func (t connectedTransport) Connect(context.Context) (sdk.Connection, error) {
	return t.conn, nil
}

type sdkSession struct {
	cs *sdk.ClientSession
}

func (s *sdkSession) ListCapabilities(ctx context.Context) ([]Capability, error) {
	var caps []Capability
	for tool, err := range s.cs.Tools(ctx, nil) {
		if err != nil {
			return nil, err
		}
		caps = append(caps, Capability{Name: tool.Name, Description: tool.Description})
	}
	return caps, nil
}

func (s *sdkSession) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	res, err := s.cs.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	out := &Result{IsError: res.IsError, Blocks: make([]Block, 0, len(res.Content))}
	for _, c := range res.Content {
		switch c := c.(type) {
		case *sdk.TextContent:
			out.Blocks = append(out.Blocks, Block{Type: "text", Text: c.Text})
		case *sdk.ImageContent:
			out.Blocks = append(out.Blocks, Block{Type: "image"})
		case *sdk.AudioContent:
			out.Blocks = append(out.Blocks, Block{Type: "audio"})
		default:
			out.Blocks = append(out.Blocks, Block{Type: fmt.Sprintf("%T", c)})
		}
	}
	return out, nil
}
