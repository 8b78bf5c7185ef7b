package progress

import (
	"sync"
)

// EngineFactory builds a fresh engine for a signed-in user.
type EngineFactory func(actingUser string) *Engine

// Manager tracks one engine per active session. Engines are created on
// sign-in and closed on sign-out so no load or subscription outlives its
// session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Engine
	factory  EngineFactory
}

// NewManager create a session manager using factory for new engines.
func NewManager(factory EngineFactory) *Manager {
	return &Manager{
		sessions: make(map[string]*Engine),
		factory:  factory,
	}
}

// Create builds an engine for sessionID and starts its initial load.
// A leftover engine under the same ID is closed first.
func (m *Manager) Create(sessionID, actingUser string) *Engine {
	engine := m.factory(actingUser)

	m.mu.Lock()
	if old, ok := m.sessions[sessionID]; ok {
		old.Close()
	}
	m.sessions[sessionID] = engine
	m.mu.Unlock()

	engine.SwitchViewedUser(actingUser)
	return engine
}

// Get returns the engine of an active session.
func (m *Manager) Get(sessionID string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, ok := m.sessions[sessionID]
	return engine, ok
}

// Remove closes and forgets a session's engine.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	engine, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if ok {
		engine.Close()
	}
}

// Close tears down every active session.
func (m *Manager) Close() {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.sessions))
	for id, engine := range m.sessions {
		engines = append(engines, engine)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, engine := range engines {
		engine.Close()
	}
}
