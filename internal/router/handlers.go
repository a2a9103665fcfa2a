// ABOUTME: One-shot handlers, one per request variant, each returning data or an error
// ABOUTME: State-changing handlers trigger fan-out after the write succeeds

package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/easeway/internal/auth"
	"github.com/2389/easeway/internal/broadcast"
	"github.com/2389/easeway/internal/protocol"
	"github.com/2389/easeway/internal/store"
)

// handle dispatches on the closed request set. Adding a variant without a case
// here panics, which run reports as an internal error.
func (r *Router) handle(ctx context.Context, from *auth.Caller, req protocol.Request) (any, error) {
	switch m := req.(type) {
	case *protocol.SyncSettings:
		return r.syncSettings(ctx, m)
	case *protocol.SyncStats:
		return r.stats.Get(ctx, m.UserID)
	case *protocol.ApplySettings:
		return r.applySettings(ctx, from, m)
	case *protocol.GetWebsitePreferences:
		return r.prefs.Get(ctx, m.UserID, m.Domain)
	case *protocol.SetWebsitePreferences:
		return r.setWebsitePreferences(ctx, m)
	case *protocol.FeatureUsed:
		return r.stats.RecordFeatureUsed(ctx, m.UserID, m.FeatureName, m.Increment())
	case *protocol.RequestSettings:
		return r.requestSettings(ctx, m.URL)
	case *protocol.UpdateStatistics:
		return r.stats.MergeStats(ctx, m.UserID, *m.Stats)
	case *protocol.SetActiveUser:
		return r.setActiveUser(ctx, m)
	case *protocol.GetActiveUser:
		return r.getActiveUser()
	case *protocol.Logout:
		return nil, r.active.Logout(ctx, r.kv)
	case *protocol.ClearData:
		return nil, r.clearData(ctx)
	}
	panic(fmt.Sprintf("no handler for %T", req))
}

func (r *Router) syncSettings(ctx context.Context, m *protocol.SyncSettings) (any, error) {
	if err := r.saveSettings(ctx, m.Settings); err != nil {
		return nil, err
	}
	r.broadcast(ctx, broadcast.All(), protocol.ApplySettingsUpdate(m.Settings))
	return nil, nil
}

// applySettings saves settings and pushes them to the sender's context if it
// has an open connection, otherwise to every context.
func (r *Router) applySettings(ctx context.Context, from *auth.Caller, m *protocol.ApplySettings) (any, error) {
	if err := r.saveSettings(ctx, m.Settings); err != nil {
		return nil, err
	}

	filter := broadcast.All()
	if id := contextID(from); id != "" && r.conns.IsOpen(id) {
		filter = broadcast.Only(id)
	}
	r.broadcast(ctx, filter, protocol.ApplySettingsUpdate(m.Settings))
	return nil, nil
}

func (r *Router) setWebsitePreferences(ctx context.Context, m *protocol.SetWebsitePreferences) (any, error) {
	if err := r.prefs.Set(ctx, m.Preferences); err != nil {
		return nil, err
	}

	settings, err := r.loadSettings(ctx)
	if err != nil {
		// The record is saved; only the push is skipped.
		r.logger.Warn("skipping preference fan-out", "error", err)
		return m.Preferences, nil
	}
	r.broadcast(ctx, broadcast.MatchDomain(m.Preferences.Domain), protocol.ApplyFeatures(protocol.SettingsSnapshot{
		Settings:           settings,
		WebsitePreferences: m.Preferences,
	}))
	return m.Preferences, nil
}

func (r *Router) setActiveUser(ctx context.Context, m *protocol.SetActiveUser) (any, error) {
	id, err := r.active.Login(ctx, r.kv, auth.Session{
		Token:     m.Token,
		UserID:    m.UserID,
		ProfileID: m.ProfileID,
	})
	if errors.Is(err, auth.ErrNoUserID) {
		return nil, &protocol.ValidationError{Field: "userId"}
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (r *Router) getActiveUser() (any, error) {
	id, ok := r.active.Current()
	if !ok {
		return nil, nil
	}
	return id, nil
}

func (r *Router) clearData(ctx context.Context) error {
	if err := r.kv.Remove(ctx, store.AllKeys...); err != nil {
		return fmt.Errorf("clearing data: %w", err)
	}
	r.active.Clear()
	r.logger.Info("all persisted data cleared")
	return nil
}
