package session

import (
	"context"
	"sync"
	"time"
)

// MemoryTable is a process-local Table.
type MemoryTable struct {
	mu         sync.Mutex
	unverified map[string]*Session
	verified   map[string]*Session
}

// NewMemoryTable returns an empty MemoryTable.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		unverified: make(map[string]*Session),
		verified:   make(map[string]*Session),
	}
}

// PutUnverified implements Table.
func (t *MemoryTable) PutUnverified(_ context.Context, s *Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.unverified[s.Token] = s.clone()
	return nil
}

// TakeUnverified implements Table.
func (t *MemoryTable) TakeUnverified(_ context.Context, token string) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.unverified[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(t.unverified, token)
	return s, nil
}

// PutVerified implements Table.
func (t *MemoryTable) PutVerified(_ context.Context, s *Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.verified[s.Token] = s.clone()
	return nil
}

// GetVerified implements Table.
func (t *MemoryTable) GetVerified(_ context.Context, token string) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.verified[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

// TouchVerified implements Table.
func (t *MemoryTable) TouchVerified(_ context.Context, token string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.verified[token]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastSeenAt = at
	return nil
}

// DeleteVerified implements Table.
func (t *MemoryTable) DeleteVerified(_ context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.verified, token)
	return nil
}

// ReapUnverified implements Table.
func (t *MemoryTable) ReapUnverified(_ context.Context, before time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for token, s := range t.unverified {
		if s.CreatedAt.Before(before) {
			delete(t.unverified, token)
			n++
		}
	}
	return n, nil
}

// Count returns the number of pending and active sessions.
func (t *MemoryTable) Count() (unverified, verified int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.unverified), len(t.verified)
}

// Close implements Table.
func (t *MemoryTable) Close() error {
	return nil
}
