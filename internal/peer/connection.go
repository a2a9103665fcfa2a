// ABOUTME: Represents one open channel between an execution context and the coordinator
// ABOUTME: Serialises outbound pushes and tracks the page URL the context last reported

package peer

import (
	"context"
	"sync"
	"time"

	"github.com/2389/easeway/internal/protocol"
)

// Sink is the transport half of a Connection: a gRPC stream or a WebSocket.
// Send is never called concurrently for one Sink.
type Sink interface {
	Send(ctx context.Context, msg protocol.Outbound) error
	Close() error
}

// ConnectionParams holds the parameters for creating a Connection.
type ConnectionParams struct {
	ID   string
	Name string
	URL  string
	Addr string // remote address, for logs
	Sink Sink
}

// Connection is a live, named channel opened by one execution context.
type Connection struct {
	ID       string
	Name     string
	Addr     string
	OpenedAt time.Time

	sink Sink

	sendMu sync.Mutex
	mu     sync.RWMutex
	url    string
	closed bool
}

// NewConnection creates a new open Connection.
func NewConnection(p ConnectionParams) *Connection {
	name := p.Name
	if name == "" {
		name = "page"
	}
	return &Connection{
		ID:       p.ID,
		Name:     name,
		Addr:     p.Addr,
		OpenedAt: time.Now().UTC(),
		sink:     p.Sink,
		url:      p.URL,
	}
}

// URL returns the page URL last reported by the context.
func (c *Connection) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

// SetURL records the page URL the context is showing.
func (c *Connection) SetURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
}

// Closed reports whether the connection has been closed.
func (c *Connection) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Send pushes msg to the context. Missed messages are never buffered.
func (c *Connection) Send(ctx context.Context, msg protocol.Outbound) error {
	if c.Closed() {
		return ErrConnectionClosed
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.sink.Send(ctx, msg)
}

// close marks the connection closed and releases its sink. Safe to call twice.
func (c *Connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.sink == nil {
		return nil
	}
	return c.sink.Close()
}

// Info is a snapshot of a connection for listing and fan-out.
type Info struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	URL      string    `json:"url,omitempty"`
	OpenedAt time.Time `json:"opened_at"`
}

func (c *Connection) info() Info {
	return Info{ID: c.ID, Name: c.Name, URL: c.URL(), OpenedAt: c.OpenedAt}
}
