// ABOUTME: Handlers for context-originated pushes arriving over a connection
// ABOUTME: Invoked for effect only; failures are logged, never answered

package router

import (
	"context"
	"errors"

	"github.com/2389/easeway/internal/peer"
	"github.com/2389/easeway/internal/prefs"
	"github.com/2389/easeway/internal/protocol"
)

// HandlePush processes one inbound connection frame. Transports call it
// sequentially per connection so frames are handled in arrival order.
func (r *Router) HandlePush(ctx context.Context, conn *peer.Connection, env protocol.Envelope) {
	ctx = context.WithoutCancel(ctx)
	logger := r.logger.With("conn_id", conn.ID, "type", env.Type)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("push handler panicked", "panic", p)
		}
	}()

	p, err := protocol.DecodePush(env)
	if errors.Is(err, protocol.ErrUnknownType) {
		logger.Warn("ignoring unknown push type")
		return
	}
	if err != nil {
		logger.Warn("ignoring malformed push", "error", err)
		return
	}
	r.metrics.ObservePush(string(env.Type))

	switch m := p.(type) {
	case *protocol.PageLoaded:
		r.pageLoaded(ctx, conn, m)
	case *protocol.FeatureActivated:
		userID := r.active.UserID()
		if userID == "" || m.FeatureName == "" {
			logger.Debug("feature activated", "feature", m.FeatureName)
			return
		}
		if _, err := r.stats.RecordFeatureUsed(ctx, userID, m.FeatureName, 1); err != nil {
			logger.Warn("recording feature activation", "error", err)
		}
	case *protocol.FeatureDeactivated:
		logger.Debug("feature deactivated", "feature", m.FeatureName)
	case *protocol.LogError:
		logger.Error("context reported error", "error", m.Error, "context", string(m.Context))
	}
}

// pageLoaded records the visit and answers with the page's settings snapshot.
func (r *Router) pageLoaded(ctx context.Context, conn *peer.Connection, m *protocol.PageLoaded) {
	logger := r.logger.With("conn_id", conn.ID)
	conn.SetURL(m.URL)

	if userID := r.active.UserID(); userID != "" {
		if domain, ok := prefs.DomainFromURL(m.URL); ok {
			if _, err := r.stats.RecordPageLoad(ctx, userID, domain); err != nil {
				logger.Warn("recording page load", "error", err)
			}
		}
	}

	snap, err := r.requestSettings(ctx, m.URL)
	if err != nil {
		logger.Warn("building settings for loaded page", "error", err)
		return
	}
	if err := r.conns.Push(ctx, conn.ID, protocol.ApplyFeatures(snap)); err != nil {
		logger.Debug("page closed before settings delivery", "error", err)
	}
}
