// Package credstore defines the durable credential store behind the
// PLAIN mechanism and its memory/sqlite/postgres backends.
package credstore

import (
	"context"
	"errors"
	"time"
)

// Record is one stored credential row.
type Record struct {
	Username     string
	PasswordHash string
	Mechanism    string
	CreatedAt    time.Time
}

// ErrNotFound is returned by Lookup when no record matches.
var ErrNotFound = errors.New("credstore: user not found")

// Store is the interface every backend implements.
type Store interface {
	Lookup(ctx context.Context, username string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]*Record, error)
	Close() error
}
