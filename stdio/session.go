package stdio

import (
	"sync"
	"time"

	"github.com/yachtsy/yachtsy-mcp-go/internal/logctx"
	"github.com/yachtsy/yachtsy-mcp-go/sessions"
)

// session is the one in-memory session a stdio connection ever has.
type session struct {
	id      string
	userID  string
	version string
	client  sessions.ClientInfo
	created time.Time

	mu    sync.Mutex
	state sessions.SessionState
}

var _ sessions.Session = (*session)(nil)

func (s *session) SessionID() string               { return s.id }
func (s *session) UserID() string                  { return s.userID }
func (s *session) ProtocolVersion() string         { return s.version }
func (s *session) ClientInfo() sessions.ClientInfo { return s.client }

func (s *session) State() sessions.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) setState(st sessions.SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *session) logData() *logctx.SessionData {
	return &logctx.SessionData{
		SessionID:       s.id,
		UserID:          s.userID,
		ProtocolVersion: s.version,
		State:           s.State(),
	}
}
