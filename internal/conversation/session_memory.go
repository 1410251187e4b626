package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory. Suitable for a single instance or tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.SessionID == "" {
		return errors.New("conversation: session id required")
	}
	next := s.clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	next.absorb(m.sessions[s.SessionID])
	m.sessions[s.SessionID] = next
	return nil
}

func (m *MemorySessionStore) LeadSynced(ctx context.Context, id string) (bool, error) {
	return leadSynced(ctx, m.Get, id)
}

func (m *MemorySessionStore) MarkLeadSynced(_ context.Context, id, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LeadSyncedToExternal = true
	if s.ExternalLeadID == "" {
		s.ExternalLeadID = externalID
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}
