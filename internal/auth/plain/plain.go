// Package plain implements a PLAIN-style SASL mechanism: the client's
// initial payload is "\0username\0password", checked in a single step
// against a credential store with bcrypt.
package plain

import (
	"bytes"
	"context"
	"fmt"

	"github.com/virtrpcd/virtrpcd/internal/auth"
	"github.com/virtrpcd/virtrpcd/internal/auth/credstore"
	"golang.org/x/crypto/bcrypt"
)

const MechanismName = "PLAIN"

// Mechanism checks PLAIN credentials against a credstore.Store.
type Mechanism struct {
	Store credstore.Store
}

func New(store credstore.Store) *Mechanism { return &Mechanism{Store: store} }

func (m *Mechanism) Name() string { return MechanismName }

func (m *Mechanism) NewContext(ctx context.Context, localAddr, remoteAddr string) (auth.Context, error) {
	return &sessionCtx{store: m.Store, remoteAddr: remoteAddr}, nil
}

type sessionCtx struct {
	store      credstore.Store
	remoteAddr string
}

// Step is single-round: the entire "\0user\0pass" payload must arrive in
// one call (AUTH_SASL_START), matching how real PLAIN negotiates.
func (c *sessionCtx) Step(ctx context.Context, clientData []byte, present bool) ([]byte, bool, bool, auth.Identity, error) {
	if !present {
		return nil, false, false, auth.Identity{}, fmt.Errorf("plain: missing initial response")
	}
	parts := bytes.SplitN(clientData, []byte{0}, 3)
	if len(parts) != 3 {
		return nil, false, false, auth.Identity{}, fmt.Errorf("plain: malformed initial response")
	}
	username, password := string(parts[1]), parts[2]

	rec, err := c.store.Lookup(ctx, username)
	if err != nil {
		return nil, false, false, auth.Identity{}, auth.ErrAuthFailed
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), password) != nil {
		return nil, false, false, auth.Identity{}, auth.ErrAuthFailed
	}
	return nil, false, true, auth.Identity{Name: username}, nil
}
