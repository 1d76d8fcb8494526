// Package terminal serves the play console: one WebSocket per session that
// carries player commands in and narrative replies out.
package terminal

import (
	"log/slog"
	"sync"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/coder/websocket"
)

// Conn is the part of a WebSocket connection the manager needs.
type Conn interface {
	Close(code websocket.StatusCode, reason string) error
}

// SessionManager tracks the live console connection for each session. A
// session has at most one connection; a newer one replaces the older.
type SessionManager struct {
	mu     sync.RWMutex
	active map[domain.SessionKey]Conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[domain.SessionKey]Conn),
	}
}

// GetActive returns the active connection for a session.
func (m *SessionManager) GetActive(key domain.SessionKey) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[key]
}

// Count returns the number of live connections.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds conn for key, closing any connection it replaces.
func (m *SessionManager) Register(key domain.SessionKey, conn Conn) {
	m.mu.Lock()
	existing, exists := m.active[key]
	m.active[key] = conn
	m.mu.Unlock()

	if exists && existing != conn {
		_ = existing.Close(websocket.StatusPolicyViolation, "session opened elsewhere")
	}
	slog.Info("Console session registered", "device_id", key.DeviceID, "world_id", key.WorldID, "variant", key.Variant)
}

// Unregister removes conn for key. A stale conn that has already been
// replaced is ignored.
func (m *SessionManager) Unregister(key domain.SessionKey, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[key]; exists && current == conn {
		delete(m.active, key)
		slog.Info("Console session unregistered", "device_id", key.DeviceID, "world_id", key.WorldID)
	}
}

// CloseSession closes the connection for key, if any. It is the idle
// worker's callback once a session has been ended server-side.
func (m *SessionManager) CloseSession(key domain.SessionKey) {
	m.mu.Lock()
	conn, ok := m.active[key]
	delete(m.active, key)
	m.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "session ended")
	slog.Info("Console session closed", "device_id", key.DeviceID, "world_id", key.WorldID)
}
