package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ananth-NQI/sessiongate/internal/models"
)

// MemoryStore holds the session document in memory (tests, USE_MEMORY_STORE)
type MemoryStore struct {
	mu       sync.RWMutex
	sessions models.Sessions
	name     string

	// SaveErr, when set, is returned by every Save
	SaveErr error
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(models.Sessions),
		name:     "memory",
	}
}

func (m *MemoryStore) Load(_ context.Context) (models.Sessions, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, sessions models.Sessions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return fmt.Errorf("%w: %v", ErrSave, m.SaveErr)
	}
	m.sessions = sessions.Clone()
	return nil
}

func (m *MemoryStore) Path() string {
	return m.name
}

// Get returns a copy of one entry, for tests and admin views
func (m *MemoryStore) Get(key string) (*models.SessionEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[key]
	return e.Clone(), ok
}

// Put seeds one entry directly
func (m *MemoryStore) Put(key string, entry *models.SessionEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = entry.Clone()
}
