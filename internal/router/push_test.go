// ABOUTME: Tests for context-originated pushes handled over a connection
// ABOUTME: PAGE_LOADED records the visit and answers with the page's settings

package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/easeway/internal/auth"
	"github.com/2389/easeway/internal/prefs"
	"github.com/2389/easeway/internal/protocol"
	"github.com/2389/easeway/internal/store"
)

func pushEnv(t *testing.T, typ protocol.MessageType, payload any) protocol.Envelope {
	t.Helper()
	return envelope(t, typ, payload)
}

func TestPageLoaded_RecordsVisitAndPushesSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.active.Login(ctx, h.kv, auth.Session{Token: "tok", UserID: "u1"})
	require.NoError(t, err)
	// Seed state directly so no fan-out races the reply.
	require.NoError(t, h.router.saveSettings(ctx, protocol.Settings{"theme": "dark"}))
	require.NoError(t, h.router.prefs.Set(ctx, &prefs.Record{
		UserID: "u1", Domain: "example.com", Overrides: map[string]any{"fontSize": 20.0},
	}))

	conn, sink := h.open("tab-1", "")
	h.router.HandlePush(ctx, conn, pushEnv(t, protocol.TypePageLoaded, map[string]any{"url": "https://example.com/a", "title": "A"}))

	assert.Equal(t, "https://example.com/a", conn.URL())

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	last := msgs[0]
	assert.Equal(t, protocol.TypeApplyAccessibilityFeatures, last.Type)
	snap, ok := last.Payload.(protocol.SettingsSnapshot)
	require.True(t, ok)
	assert.Equal(t, "dark", snap.Settings["theme"])
	require.NotNil(t, snap.WebsitePreferences)
	assert.Equal(t, 20.0, snap.WebsitePreferences.Overrides["fontSize"])

	rec, err := h.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, rec.WebsitesHistory)
	assert.Equal(t, int64(1), rec.WebsitesVisited)

	// Reloading the same domain changes nothing.
	h.router.HandlePush(ctx, conn, pushEnv(t, protocol.TypePageLoaded, map[string]any{"url": "https://example.com/b"}))
	rec, err = h.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.WebsitesVisited)
}

func TestPageLoaded_NoActiveUser(t *testing.T) {
	h := newHarness(t)
	conn, sink := h.open("tab-1", "")

	h.router.HandlePush(context.Background(), conn, pushEnv(t, protocol.TypePageLoaded, map[string]any{"url": "https://example.com/"}))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	snap := msgs[0].Payload.(protocol.SettingsSnapshot)
	assert.Nil(t, snap.WebsitePreferences)
	assert.False(t, h.kv.Has(store.KeyUsageStatistics))
}

func TestPageLoaded_ClosedConnectionIsQuiet(t *testing.T) {
	h := newHarness(t)
	conn, sink := h.open("tab-1", "")
	h.conns.Close(conn)

	h.router.HandlePush(context.Background(), conn, pushEnv(t, protocol.TypePageLoaded, map[string]any{"url": "https://example.com/"}))
	assert.Empty(t, sink.messages())
}

func TestFeatureActivated_CountsForActiveUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conn, _ := h.open("tab-1", "")

	// Without a user nothing is recorded.
	h.router.HandlePush(ctx, conn, pushEnv(t, protocol.TypeFeatureActivated, map[string]any{"featureName": "dwell-click"}))
	assert.False(t, h.kv.Has(store.KeyUsageStatistics))

	_, err := h.active.Login(ctx, h.kv, auth.Session{Token: "tok", UserID: "u1"})
	require.NoError(t, err)
	h.router.HandlePush(ctx, conn, pushEnv(t, protocol.TypeFeatureActivated, map[string]any{"featureName": "dwell-click"}))
	h.router.HandlePush(ctx, conn, pushEnv(t, protocol.TypeFeatureDeactivated, map[string]any{"featureName": "dwell-click"}))

	rec, err := h.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.FeatureUsage["dwell-click"])
}

func TestHandlePush_IgnoresBadFrames(t *testing.T) {
	h := newHarness(t)
	conn, sink := h.open("tab-1", "")
	ctx := context.Background()

	h.router.HandlePush(ctx, conn, protocol.Envelope{Type: "NOPE"})
	h.router.HandlePush(ctx, conn, protocol.Envelope{Type: protocol.TypeFeatureUsed})
	h.router.HandlePush(ctx, conn, protocol.Envelope{Type: protocol.TypePageLoaded, Payload: json.RawMessage(`[1,2]`)})
	h.router.HandlePush(ctx, conn, pushEnv(t, protocol.TypeLogError, map[string]any{"error": "boom", "context": map[string]any{"line": 3}}))

	assert.Empty(t, sink.messages())
	assert.Equal(t, 0, h.kv.SetCount())
}
