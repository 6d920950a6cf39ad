package state

import (
	"context"
	"sync"

	"menucrawler/crawler/internal/domain"
)

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string][]domain.MenuItem
}

// NewMemorySessionStore keeps sessions in process memory only.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		sessions: make(map[string][]domain.MenuItem),
	}
}

func (s *memorySessionStore) Items(_ context.Context, sessionID string) ([]domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MenuItem{}, s.sessions[sessionID]...), nil
}

func (s *memorySessionStore) Append(_ context.Context, sessionID string, items []domain.MenuItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], items...)
	return len(s.sessions[sessionID]), nil
}

func (s *memorySessionStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *memorySessionStore) Close() error {
	return nil
}
