// ABOUTME: Top-level dispatcher from tagged envelopes to one-shot and push handlers
// ABOUTME: Normalises every handler result, error, or panic into the response envelope

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/2389/easeway/internal/auth"
	"github.com/2389/easeway/internal/broadcast"
	"github.com/2389/easeway/internal/dedupe"
	"github.com/2389/easeway/internal/metrics"
	"github.com/2389/easeway/internal/peer"
	"github.com/2389/easeway/internal/prefs"
	"github.com/2389/easeway/internal/protocol"
	"github.com/2389/easeway/internal/stats"
	"github.com/2389/easeway/internal/store"
)

// Config holds the collaborators the router mediates.
type Config struct {
	Store       store.Store
	Stats       *stats.Aggregator
	Prefs       *prefs.Store
	Active      *auth.ActiveUser
	Connections *peer.Manager
	Broadcaster *broadcast.Broadcaster

	// Dedupe is optional; without it requestId is ignored.
	Dedupe *dedupe.Cache
	// Metrics is optional.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Router is the only path by which execution contexts change persisted state.
type Router struct {
	kv      store.Store
	stats   *stats.Aggregator
	prefs   *prefs.Store
	active  *auth.ActiveUser
	conns   *peer.Manager
	fanout  *broadcast.Broadcaster
	dedupe  *dedupe.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Router.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		kv:      cfg.Store,
		stats:   cfg.Stats,
		prefs:   cfg.Prefs,
		active:  cfg.Active,
		conns:   cfg.Connections,
		fanout:  cfg.Broadcaster,
		dedupe:  cfg.Dedupe,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "router"),
	}
}

// Dispatch routes a one-shot envelope. Unknown types are answered through reply
// before Dispatch returns and it reports false. For known types the handler runs
// in the background, reply is called exactly once when it settles, and Dispatch
// reports true.
func (r *Router) Dispatch(ctx context.Context, from *auth.Caller, env protocol.Envelope, reply func(protocol.Response)) (pending bool) {
	if !protocol.IsRequestType(env.Type) {
		reply(r.Call(ctx, from, env))
		return false
	}

	go func() {
		reply(r.Call(ctx, from, env))
	}()
	return true
}

// Call handles a one-shot envelope and blocks until it settles.
// Once a handler starts it runs to completion even if ctx is cancelled.
func (r *Router) Call(ctx context.Context, from *auth.Caller, env protocol.Envelope) protocol.Response {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	req, err := protocol.DecodeRequest(env)
	if errors.Is(err, protocol.ErrUnknownType) {
		r.logger.Warn("unknown message type", "type", env.Type, "context_id", contextID(from))
		r.metrics.ObserveMessage(string(env.Type), metrics.ResultUnknown, 0)
		return protocol.Fail(err.Error())
	}
	if err != nil {
		r.logger.Debug("rejected message", "type", env.Type, "error", err)
		r.metrics.ObserveMessage(string(env.Type), metrics.ResultError, time.Since(start))
		return protocol.Fail(err.Error())
	}

	var dedupeKey string
	if env.RequestID != "" && r.dedupe != nil {
		dedupeKey = dedupe.Key(contextID(from), env.RequestID)
		if r.dedupe.Seen(dedupeKey) {
			r.logger.Info("duplicate request dropped", "type", env.Type, "request_id", env.RequestID)
			r.metrics.ObserveMessage(string(env.Type), metrics.ResultDuplicate, 0)
			return protocol.Fail(fmt.Sprintf("Duplicate request: %s", env.RequestID))
		}
	}

	data, err := r.run(ctx, from, req)
	if err != nil {
		if dedupeKey != "" {
			r.dedupe.Forget(dedupeKey)
		}
		r.logger.Debug("handler failed", "type", env.Type, "error", err)
		r.metrics.ObserveMessage(string(env.Type), metrics.ResultError, time.Since(start))
		return protocol.Fail(err.Error())
	}

	r.metrics.ObserveMessage(string(env.Type), metrics.ResultOK, time.Since(start))
	return protocol.OK(data)
}

// run invokes the handler for req, converting a panic into an error.
func (r *Router) run(ctx context.Context, from *auth.Caller, req protocol.Request) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panicked",
				"type", req.Type(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			data, err = nil, fmt.Errorf("internal error handling %s", req.Type())
		}
	}()
	return r.handle(ctx, from, req)
}

// broadcast starts a fan-out without waiting for it.
func (r *Router) broadcast(ctx context.Context, filter broadcast.Filter, msg protocol.Outbound) {
	if r.fanout == nil {
		return
	}
	r.fanout.Dispatch(ctx, filter, msg)
}

func contextID(from *auth.Caller) string {
	if from == nil {
		return ""
	}
	return from.ContextID
}
