// ABOUTME: Global settings persistence and the shared request-settings helper
// ABOUTME: The helper serves REQUEST_SETTINGS replies and PAGE_LOADED pushes alike

package router

import (
	"context"

	"github.com/2389/easeway/internal/prefs"
	"github.com/2389/easeway/internal/protocol"
	"github.com/2389/easeway/internal/store"
)

// loadSettings returns the stored settings, or an empty set if never synced.
func (r *Router) loadSettings(ctx context.Context) (protocol.Settings, error) {
	var s protocol.Settings
	if _, err := store.GetJSON(ctx, r.kv, store.KeySettings, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = protocol.Settings{}
	}
	return s, nil
}

// saveSettings overwrites the settings blob; last writer wins.
func (r *Router) saveSettings(ctx context.Context, s protocol.Settings) error {
	return store.SetJSON(ctx, r.kv, store.KeySettings, s)
}

// requestSettings builds the snapshot a context applies on load: global settings
// plus the active user's record for the URL's domain. It takes no target context;
// callers decide where the snapshot goes.
func (r *Router) requestSettings(ctx context.Context, rawURL string) (protocol.SettingsSnapshot, error) {
	settings, err := r.loadSettings(ctx)
	if err != nil {
		return protocol.SettingsSnapshot{}, err
	}
	snap := protocol.SettingsSnapshot{Settings: settings}

	userID := r.active.UserID()
	domain, ok := prefs.DomainFromURL(rawURL)
	if userID == "" || !ok {
		return snap, nil
	}

	rec, err := r.prefs.Get(ctx, userID, domain)
	if err != nil {
		return protocol.SettingsSnapshot{}, err
	}
	snap.WebsitePreferences = rec
	return snap, nil
}
