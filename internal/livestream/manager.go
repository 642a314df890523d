package livestream

import (
	"sync"

	"github.com/pkg/errors"
)

// Manager tracks which stream identifiers currently have a live session so a
// second producer cannot claim an identifier that is already owned.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Acquire registers session as the owner of streamID. It fails if another
// session already owns the identifier.
func (m *Manager) Acquire(streamID string, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[streamID]; exists {
		return errors.Errorf("stream %s is already live", streamID)
	}
	m.sessions[streamID] = session
	return nil
}

// Release removes the registration if session still owns streamID.
func (m *Manager) Release(streamID string, session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.sessions[streamID]; exists && current == session {
		delete(m.sessions, streamID)
	}
}

// ActiveCount returns how many sessions are currently registered.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
