package sessions

// Session represents a negotiated MCP session. Implementations MUST be safe
// for concurrent use.
type Session interface {
	SessionID() string
	UserID() string
	// ProtocolVersion is the negotiated MCP protocol version baked into the session.
	ProtocolVersion() string
	// ClientInfo identifies the peer as reported during initialize.
	ClientInfo() ClientInfo
}

// ClientInfo identifies the client connecting to the server.
type ClientInfo struct {
	Name    string
	Version string
}

// SessionState tracks the initialize lifecycle.
type SessionState string

const (
	// SessionStatePending is the state between the initialize response and
	// the client's notifications/initialized.
	SessionStatePending SessionState = "pending"
	SessionStateOpen    SessionState = "open"
	SessionStateClosed  SessionState = "closed"
)
