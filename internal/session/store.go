package session

import (
	"context"
	"sync"
	"time"
)

// Store persists session records keyed by session id.
//
// The manager treats the store as dumb storage: all lifecycle decisions
// (rotation, authentication, destruction) happen in the manager, and the
// store only answers Get/Save/Delete. Implementations must treat ids as
// opaque and must report an expired record as absent.
//
// Two implementations ship: memoryStore below for single-binary
// deployments, and RedisStore for running more than one instance behind
// a load balancer.
type Store interface {
	// Get returns the session for id, or (nil, nil) when the id does not
	// resolve — unknown, destroyed, and expired ids are indistinguishable.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists the record under s.ID, replacing any previous record
	// with that id.
	Save(ctx context.Context, s *Session) error

	// Delete invalidates id immediately. Deleting an unknown id is a
	// no-op, which keeps logout idempotent.
	Delete(ctx context.Context, id string) error
}

// memoryStore is the in-process store. A plain RWMutex-guarded map is
// enough: per §5 there is no cross-request coordination to provide, and
// a lost duplicate write during concurrent idle rotation is harmless.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty in-process session store.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string]Session)}
}

func (m *memoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		// Lazy expiry: the record is dead, remove it on next write path.
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, nil
	}

	// Return a copy so callers can't mutate the stored record without
	// going through Save.
	copied := s
	return &copied, nil
}

func (m *memoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	m.sessions[s.ID] = *s
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
