// Package auth implements the dispatcher's SASL authentication state
// machine and the pluggable mechanism abstraction it drives.
package auth

import (
	"context"
	"errors"
	"sync"
)

// Phase is one of the three states a session's auth progresses through.
type Phase int

const (
	PhaseUnauth      Phase = iota // UNAUTH(mechanisms-advertised)
	PhaseNegotiating              // NEGOTIATING(ctx)
	PhaseAuthorized               // AUTHORIZED
)

// Identity is the protocol-neutral authenticated principal, set once a
// mechanism reports success.
type Identity struct {
	Name string
}

// Mechanism is a pluggable SASL mechanism. Because SASL negotiation is
// inherently multi-step, Start/Step return a StepResult rather than a
// single shot pass/fail.
type Mechanism interface {
	// Name identifies the mechanism as advertised in AUTH_SASL_INIT's
	// mechlist (e.g. "PLAIN", "GSSAPI").
	Name() string
	// NewContext begins a negotiation for one client, keyed by the
	// rendered local/remote "IP;PORT" strings.
	NewContext(ctx context.Context, localAddr, remoteAddr string) (Context, error)
}

// Context is the live per-negotiation state a Mechanism hands back from
// NewContext; it is destroyed on completion, failure, or session teardown.
type Context interface {
	// Step feeds one client payload (nil distinct from empty) to the
	// mechanism and returns the server's response payload plus whether
	// negotiation is complete.
	Step(ctx context.Context, clientData []byte, clientDataPresent bool) (serverData []byte, serverDataPresent bool, complete bool, identity Identity, err error)
}

var (
	// ErrAuthFailed is returned by a Mechanism when a step fails outright
	// (bad credentials, protocol violation) rather than merely continuing.
	ErrAuthFailed = errors.New("auth: sasl negotiation failed")
	// ErrPreconditionFailed covers INIT-without-SASL or INIT-with-existing-context.
	ErrPreconditionFailed = errors.New("auth: precondition failed")
)

// State is the per-session auth state machine.
type State struct {
	mu sync.Mutex

	required  bool
	mechanism string // the single mechanism this server offers

	phase    Phase
	ctx      Context
	identity Identity
}

// NewState creates auth state for a new session. If required is false the
// session starts AUTHORIZED (no SASL mechanism configured — not a
// supported production posture, but useful for tests against the fake
// hypervisor).
func NewState(required bool, mechanism string) *State {
	s := &State{required: required, mechanism: mechanism}
	if !required {
		s.phase = PhaseAuthorized
	}
	return s
}

// Phase reports the current auth phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Identity returns the authenticated identity, valid once Phase() is
// PhaseAuthorized.
func (s *State) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// RequiresAuthGate reports whether the session is not yet AUTHORIZED. The
// caller decides which procedures may still run (the dispatcher checks
// rpc.PreAuthWhitelist), so this package needs no import of internal/rpc.
func (s *State) RequiresAuthGate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != PhaseAuthorized
}

// AdvertisedMechanism returns the single mechanism name AUTH_LIST reports:
// the one mechanism this server is configured to offer.
func (s *State) AdvertisedMechanism() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mechanism
}

// BeginNegotiation transitions UNAUTH -> NEGOTIATING on AUTH_SASL_INIT.
// No mechanism context exists yet at this point: AUTH_SASL_INIT only
// advertises the mechlist, it carries no mechanism name. Fails with
// ErrPreconditionFailed if negotiation is already underway or the
// session is already authorized.
func (s *State) BeginNegotiation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseUnauth {
		return ErrPreconditionFailed
	}
	s.phase = PhaseNegotiating
	return nil
}

// SelectMechanism drives AUTH_SASL_START: the first message that actually
// names a mechanism. It creates the mechanism context and feeds it the
// client's initial response in one step. Fails with ErrPreconditionFailed
// if AUTH_SASL_INIT hasn't run, a context already exists, or mech doesn't
// match the mechanism this server offers.
func (s *State) SelectMechanism(ctx context.Context, mech Mechanism, localAddr, remoteAddr string, clientData []byte, clientDataPresent bool) (serverData []byte, serverDataPresent bool, complete bool, err error) {
	s.mu.Lock()
	if s.phase != PhaseNegotiating || s.ctx != nil || mech.Name() != s.mechanism {
		s.mu.Unlock()
		return nil, false, false, ErrPreconditionFailed
	}

	negCtx, err := mech.NewContext(ctx, localAddr, remoteAddr)
	if err != nil {
		s.phase = PhaseUnauth
		s.mu.Unlock()
		return nil, false, false, ErrAuthFailed
	}
	s.ctx = negCtx
	s.mu.Unlock()

	return s.Step(ctx, clientData, clientDataPresent)
}

// Step drives AUTH_SASL_START/STEP: both call this with the client's
// payload. On failure the context is destroyed and the phase resets to
// UNAUTH so a fresh AUTH_SASL_INIT can be attempted.
func (s *State) Step(ctx context.Context, clientData []byte, clientDataPresent bool) (serverData []byte, serverDataPresent bool, complete bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseNegotiating || s.ctx == nil {
		return nil, false, false, ErrPreconditionFailed
	}

	out, outPresent, done, identity, err := s.ctx.Step(ctx, clientData, clientDataPresent)
	if err != nil {
		s.ctx = nil
		s.phase = PhaseUnauth
		return nil, false, false, ErrAuthFailed
	}

	if done {
		s.identity = identity
		s.ctx = nil
		s.phase = PhaseAuthorized
	}
	return out, outPresent, done, nil
}

// Reset destroys any in-progress context and returns to UNAUTH, used on
// session teardown.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = nil
	if s.required {
		s.phase = PhaseUnauth
	}
}
