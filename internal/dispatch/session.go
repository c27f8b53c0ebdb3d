// Package dispatch drives one request end to end: parse envelope, enforce
// preconditions, decode arguments, invoke a handler, and frame the reply.
package dispatch

import (
	"context"
	"sync"

	"github.com/virtrpcd/virtrpcd/internal/auth"
	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
)

// Session holds everything specific to one client connection: the framing
// buffer, mode flag, readonly flag, hypervisor handle and auth state.
type Session struct {
	mu sync.Mutex

	Buffer    []byte
	Mode      Mode
	ReadOnly  bool
	LocalAddr string
	RemoteAddr string

	conn hypervisor.Connection

	Auth *auth.State
}

// Mode is the session's TX/RX flag.
type Mode int

const (
	ModeRX Mode = iota
	ModeTX
)

// NewSession creates a session in RX mode with no open hypervisor
// connection and auth state per the configured requirement.
func NewSession(readOnly bool, authRequired bool, mechanism string) *Session {
	return &Session{
		ReadOnly: readOnly,
		Mode:     ModeRX,
		Auth:     auth.NewState(authRequired, mechanism),
	}
}

// Connection returns the session's open hypervisor connection, or nil if
// none is open. Non-nil iff OPEN succeeded and no matching CLOSE has
// succeeded since.
func (s *Session) Connection() hypervisor.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// SetConnection installs or clears the session's hypervisor connection.
func (s *Session) SetConnection(c hypervisor.Connection) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

// Teardown releases any open hypervisor connection and destroys any
// in-progress SASL context.
func (s *Session) Teardown() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close(context.Background())
	}
	s.Auth.Reset()
}
