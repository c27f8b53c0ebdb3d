// Package bufpool provides a tiered sync.Pool for the per-connection
// framing buffers used by the dispatcher. Sizes are tuned for RPC
// envelopes and argument bodies rather than bulk file transfer.
package bufpool

import "sync"

const (
	// SmallSize covers control RPCs (AUTH_*, lookups, scheduler gets/sets).
	SmallSize = 4 << 10
	// MediumSize covers XML descriptions and bounded list replies.
	MediumSize = 64 << 10
	// LargeSize is the ceiling matching the protocol's BUFMAX.
	LargeSize = 256 << 10
)

// Pool is a tiered byte-slice pool keyed by size class.
type Pool struct {
	small, medium, large sync.Pool
}

// New returns a pool using the package's default size tiers.
func New() *Pool {
	p := &Pool{}
	p.small.New = func() any { b := make([]byte, SmallSize); return &b }
	p.medium.New = func() any { b := make([]byte, MediumSize); return &b }
	p.large.New = func() any { b := make([]byte, LargeSize); return &b }
	return p
}

// Get returns a slice of at least size bytes. Sizes above LargeSize are
// allocated directly and never pooled.
func (p *Pool) Get(size int) []byte {
	var ptr *[]byte
	switch {
	case size <= SmallSize:
		ptr = p.small.Get().(*[]byte)
	case size <= MediumSize:
		ptr = p.medium.Get().(*[]byte)
	case size <= LargeSize:
		ptr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}
	return (*ptr)[:size]
}

// Put returns buf to the pool it was drawn from, identified by capacity.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	full := buf[:cap(buf)]
	switch cap(buf) {
	case SmallSize:
		p.small.Put(&full)
	case MediumSize:
		p.medium.Put(&full)
	case LargeSize:
		p.large.Put(&full)
	}
}

var global = New()

// Get draws from the package-level pool.
func Get(size int) []byte { return global.Get(size) }

// Put returns a buffer to the package-level pool.
func Put(buf []byte) { global.Put(buf) }
