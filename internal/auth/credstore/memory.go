package credstore

import (
	"context"
	"sync"
)

// Memory is an in-process map-backed Store, used for tests and single-node
// dev deployments with no durability requirement.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]*Record
}

func NewMemory() *Memory { return &Memory{recs: make(map[string]*Record)} }

func (m *Memory) Lookup(ctx context.Context, username string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recs[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) Put(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.recs[rec.Username] = &cp
	return nil
}

func (m *Memory) Delete(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, username)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.recs))
	for _, r := range m.recs {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
