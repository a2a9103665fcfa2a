// ABOUTME: Tracks open execution-context connections and delivers unsolicited pushes
// ABOUTME: One connection per context id; re-opening on navigation replaces the old channel

package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/easeway/internal/protocol"
)

// ErrConnectionNotFound indicates no open connection has the given id.
var ErrConnectionNotFound = errors.New("connection not found")

// ErrConnectionClosed indicates the connection closed before delivery.
var ErrConnectionClosed = errors.New("connection closed")

// Manager holds every open Connection keyed by execution-context id.
type Manager struct {
	conns  map[string]*Connection
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewManager creates a new Manager instance.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		conns:  make(map[string]*Connection),
		logger: logger.With("component", "peer"),
	}
}

// Open registers conn. A connection already open for the same context is closed
// and returned; it receives nothing further.
func (m *Manager) Open(conn *Connection) *Connection {
	m.mu.Lock()
	prev := m.conns[conn.ID]
	m.conns[conn.ID] = conn
	total := len(m.conns)
	m.mu.Unlock()

	if prev != nil {
		if err := prev.close(); err != nil {
			m.logger.Debug("closing replaced connection", "conn_id", prev.ID, "error", err)
		}
		// Context ids are client-chosen.
		m.logger.Warn("connection replaced",
			"conn_id", conn.ID,
			"name", conn.Name,
			"remote_addr", conn.Addr,
			"previous_addr", prev.Addr,
		)
	}

	m.logger.Info("=== CONNECTION OPENED ===",
		"conn_id", conn.ID,
		"name", conn.Name,
		"total_connections", total,
	)
	return prev
}

// Close removes conn and releases its transport. A connection that has
// already been replaced by a newer one for the same context is only closed.
func (m *Manager) Close(conn *Connection) {
	m.mu.Lock()
	removed := false
	if cur, ok := m.conns[conn.ID]; ok && cur == conn {
		delete(m.conns, conn.ID)
		removed = true
	}
	total := len(m.conns)
	m.mu.Unlock()

	if err := conn.close(); err != nil {
		m.logger.Debug("closing connection transport", "conn_id", conn.ID, "error", err)
	}

	if removed {
		m.logger.Info("=== CONNECTION CLOSED ===",
			"conn_id", conn.ID,
			"name", conn.Name,
			"total_connections", total,
		)
	}
}

// Get retrieves the open connection for a context id.
func (m *Manager) Get(id string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[id]
	return conn, ok
}

// IsOpen reports whether the context has an open connection.
func (m *Manager) IsOpen(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Count returns the number of open connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// List returns a snapshot of open connections, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.conns))
	for _, conn := range m.conns {
		infos = append(infos, conn.info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].OpenedAt.Equal(infos[j].OpenedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].OpenedAt.Before(infos[j].OpenedAt)
	})
	return infos
}

// Push delivers msg to the connection for id.
func (m *Manager) Push(ctx context.Context, id string, msg protocol.Outbound) error {
	conn, ok := m.Get(id)
	if !ok {
		return ErrConnectionNotFound
	}
	if err := conn.Send(ctx, msg); err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			return err
		}
		return fmt.Errorf("pushing %s to %s: %w", msg.Type, id, err)
	}

	m.logger.Debug("push delivered", "conn_id", id, "type", msg.Type)
	return nil
}

// CloseAll closes every connection. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.conns))
	for id, conn := range m.conns {
		conns = append(conns, conn)
		delete(m.conns, id)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.close()
	}
	if len(conns) > 0 {
		m.logger.Info("closed all connections", "count", len(conns))
	}
}
