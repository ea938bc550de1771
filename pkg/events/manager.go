// Package events fans out live ModelRuntime status to dashboard WebSocket
// clients. It is adapted from tarsy's pkg/events.ConnectionManager with the
// Postgres LISTEN/NOTIFY catchup path removed entirely — MLM keeps no
// persisted state (spec "Persisted state layout: none"), so there is
// nothing to catch up from. A connecting client receives every transition
// published after it connects; no snapshot of the current state is sent
// on connect.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tarsy-labs/mlm/pkg/lifecycle"
)

// Manager tracks active WebSocket connections and broadcasts RuntimeView
// snapshots to all of them. One Manager per process.
type Manager struct {
	connections map[string]*connection
	mu          sync.RWMutex

	writeTimeout time.Duration
}

type connection struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager builds a Manager. writeTimeout bounds every send to a client.
func NewManager(writeTimeout time.Duration) *Manager {
	return &Manager{
		connections:  make(map[string]*connection),
		writeTimeout: writeTimeout,
	}
}

// HandleConnection registers conn, keeps it open until the client
// disconnects, and discards whatever it sends — this is a push-only feed,
// mirroring tarsy's read loop but with no subscribe/unsubscribe protocol
// since there is only ever one channel of events.
func (m *Manager) HandleConnection(parentCtx context.Context, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{id: uuid.New().String(), conn: ws, ctx: ctx, cancel: cancel}

	m.register(c)
	defer m.unregister(c)

	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}

// Publish implements lifecycle.EventSink, broadcasting a RuntimeView to
// every connected client.
func (m *Manager) Publish(view lifecycle.RuntimeView) {
	data, err := json.Marshal(struct {
		Type string                `json:"type"`
		View lifecycle.RuntimeView `json:"model"`
	}{Type: "model.status", View: view})
	if err != nil {
		slog.Error("failed to marshal runtime view", "error", err)
		return
	}
	m.broadcast(data)
}

func (m *Manager) broadcast(data []byte) {
	m.mu.RLock()
	conns := make([]*connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := m.send(c, data); err != nil {
			slog.Warn("failed to send to websocket client", "connection_id", c.id, "error", err)
		}
	}
}

func (m *Manager) send(c *connection, data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// ActiveConnections reports the number of connected dashboard clients.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) register(c *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.id] = c
}

func (m *Manager) unregister(c *connection) {
	m.mu.Lock()
	delete(m.connections, c.id)
	m.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
