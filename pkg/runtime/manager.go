package runtime

import (
	"sort"
	"sync"
)

// Manager owns the sessions of one server process, keyed by document.
// Sessions are created on open and discarded on close; closing a running
// session is an implicit stop.
type Manager struct {
	mu       sync.Mutex
	hooks    Hooks
	sessions map[string]*Session
}

// NewManager creates an empty manager. The hooks are handed to every
// session it opens.
func NewManager(hooks Hooks) *Manager {
	return &Manager{
		hooks:    hooks,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for id, creating an idle one if needed.
func (m *Manager) Open(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := NewSession(id, m.hooks)
	m.sessions[id] = s
	return s
}

// Get looks up an open session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close stops and forgets a session. Closing an unknown id is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.RequestStop()
	}
}

// IDs returns the open session ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
