// ABOUTME: HTTP API handlers for one-shot messages and the open-context listing
// ABOUTME: Responses are always JSON envelopes; transport-level failures use HTTP status codes

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/2389/easeway/internal/auth"
	"github.com/2389/easeway/internal/protocol"
)

// decodeEnvelope parses one raw frame into an envelope.
func decodeEnvelope(raw []byte) (protocol.Envelope, error) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return protocol.Envelope{}, fmt.Errorf("invalid message: %w", err)
	}
	if env.Type == "" {
		return protocol.Envelope{}, errors.New("invalid message: type is required")
	}
	return env, nil
}

// dispatch hands env to the router and waits for its response. When ctx ends
// first the handler still runs to completion, only the answer is dropped.
func (g *Gateway) dispatch(ctx context.Context, from *auth.Caller, env protocol.Envelope) (protocol.Response, error) {
	replies := make(chan protocol.Response, 1)
	g.router.Dispatch(ctx, from, env, func(resp protocol.Response) {
		replies <- resp
	})

	select {
	case resp := <-replies:
		return resp, nil
	case <-ctx.Done():
		g.logger.Debug("caller left before response", "type", env.Type, "error", ctx.Err())
		return protocol.Response{}, ctx.Err()
	}
}

// handleMessage handles POST /api/message.
func (g *Gateway) handleMessage(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if n := g.config.Connections.MaxMessageBytes; n > 0 {
		body = http.MaxBytesReader(w, r.Body, n)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			g.writeEnvelope(w, http.StatusRequestEntityTooLarge, protocol.Fail("invalid message: body too large"))
			return
		}
		g.writeEnvelope(w, http.StatusBadRequest, protocol.Fail("invalid message: "+err.Error()))
		return
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		g.writeEnvelope(w, http.StatusBadRequest, protocol.Fail(err.Error()))
		return
	}

	resp, err := g.dispatch(r.Context(), auth.CallerFrom(r.Context()), env)
	if err != nil {
		// Client is gone; nothing useful can be written.
		return
	}
	g.writeEnvelope(w, http.StatusOK, resp)
}

// contextsResponse is the body of GET /api/contexts.
type contextsResponse struct {
	Contexts any `json:"contexts"`
	Count    int `json:"count"`
}

// handleListContexts handles GET /api/contexts.
func (g *Gateway) handleListContexts(w http.ResponseWriter, r *http.Request) {
	infos := g.conns.List()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(contextsResponse{Contexts: infos, Count: len(infos)}); err != nil {
		g.logger.Debug("writing contexts response", "error", err)
	}
}

// writeEnvelope writes resp as JSON with the given status.
func (g *Gateway) writeEnvelope(w http.ResponseWriter, status int, resp protocol.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.logger.Debug("writing response", "error", err)
	}
}
