// Package webchat connects browser pages to chat controllers over a
// websocket.
package webchat

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// PageRegistry tracks the websocket of every open page.
type PageRegistry struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewPageRegistry creates an empty registry.
func NewPageRegistry() *PageRegistry {
	return &PageRegistry{
		active: make(map[string]*websocket.Conn),
	}
}

// Get returns the connection for a page, or nil.
func (m *PageRegistry) Get(pageID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[pageID]
}

// Count returns the number of open pages.
func (m *PageRegistry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds a page connection.
func (m *PageRegistry) Register(pageID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[pageID] = conn
	slog.Info("Chat page registered", "page_id", pageID)
}

// Unregister removes a page if conn is still the registered connection.
func (m *PageRegistry) Unregister(pageID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.active[pageID]; ok && current == conn {
		delete(m.active, pageID)
		slog.Info("Chat page unregistered", "page_id", pageID)
	}
}

// CloseAll closes every open page, e.g. on shutdown.
func (m *PageRegistry) CloseAll(reason string) {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]*websocket.Conn)
	m.mu.Unlock()

	for pageID, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, reason)
		slog.Info("Chat page closed", "page_id", pageID, "reason", reason)
	}
}
