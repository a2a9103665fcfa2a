// ABOUTME: WebSocket transport for Connections at GET /api/connect
// ABOUTME: Inbound text frames are push envelopes; outbound frames are background pushes

package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/easeway/internal/auth"
	"github.com/2389/easeway/internal/peer"
	"github.com/2389/easeway/internal/protocol"
)

const transportWebSocket = "websocket"

// closeGracePeriod bounds how long writing the close frame may take.
const closeGracePeriod = time.Second

// makeUpgrader creates a WebSocket upgrader with origin checking.
func makeUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			return originSet[origin]
		},
	}
}

// handleConnect handles GET /api/connect?context=&name=.
func (g *Gateway) handleConnect(w http.ResponseWriter, r *http.Request) {
	contextID := r.Header.Get(auth.HeaderContextID)
	if contextID == "" {
		contextID = r.URL.Query().Get("context")
	}
	if contextID == "" {
		contextID = uuid.New().String()
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		g.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	if n := g.config.Connections.MaxMessageBytes; n > 0 {
		ws.SetReadLimit(n)
	}

	conn := peer.NewConnection(peer.ConnectionParams{
		ID:   contextID,
		Name: r.URL.Query().Get("name"),
		Addr: r.RemoteAddr,
		Sink: &wsSink{ws: ws},
	})
	g.conns.Open(conn)
	g.metrics.ObserveConnection(transportWebSocket, "open")
	defer func() {
		g.conns.Close(conn)
		g.metrics.ObserveConnection(transportWebSocket, "close")
	}()

	// Request context ends with the hijacked connection; pushes do not depend on it.
	ctx := context.WithoutCancel(r.Context())
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			g.logger.Debug("websocket read ended", "conn_id", conn.ID, "error", err)
			return
		}

		env, err := decodeEnvelope(raw)
		if err != nil {
			g.logger.Warn("invalid frame from context", "conn_id", conn.ID, "error", err)
			continue
		}
		g.router.HandlePush(ctx, conn, env)
	}
}

// wsSink writes pushes onto a WebSocket.
type wsSink struct {
	ws        *websocket.Conn
	closeOnce sync.Once
}

// Send writes msg as one JSON text frame. The peer.Connection serialises calls.
func (s *wsSink) Send(ctx context.Context, msg protocol.Outbound) error {
	return s.ws.WriteJSON(msg)
}

// Close sends a normal close frame and releases the socket, which ends the read loop.
func (s *wsSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// WriteControl may run concurrently with an in-flight Send.
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		err = s.ws.Close()
	})
	return err
}
