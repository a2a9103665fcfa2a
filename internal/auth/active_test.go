// ABOUTME: Tests for the active user lifecycle
// ABOUTME: Covers restore at startup, login persistence, token subject fallback, and logout

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/easeway/internal/store"
)

func TestActiveUser_StartsEmpty(t *testing.T) {
	a := NewActiveUser(nil)
	_, ok := a.Current()
	assert.False(t, ok)
	assert.Empty(t, a.UserID())
}

func TestActiveUser_RestoreRequiresTokenAndUser(t *testing.T) {
	ctx := context.Background()

	t.Run("both present", func(t *testing.T) {
		kv := store.NewMockStore()
		require.NoError(t, store.SetJSON(ctx, kv, store.KeyAuthToken, "opaque"))
		require.NoError(t, store.SetJSON(ctx, kv, store.KeyActiveUserID, "u1"))
		require.NoError(t, store.SetJSON(ctx, kv, store.KeyActiveProfileID, "p1"))

		a := NewActiveUser(nil)
		ok, err := a.Restore(ctx, kv)
		require.NoError(t, err)
		assert.True(t, ok)

		id, ok := a.Current()
		require.True(t, ok)
		assert.Equal(t, Identity{UserID: "u1", ProfileID: "p1"}, id)
	})

	t.Run("token only", func(t *testing.T) {
		kv := store.NewMockStore()
		require.NoError(t, store.SetJSON(ctx, kv, store.KeyAuthToken, "opaque"))

		a := NewActiveUser(nil)
		ok, err := a.Restore(ctx, kv)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, a.UserID())
	})

	t.Run("user only", func(t *testing.T) {
		kv := store.NewMockStore()
		require.NoError(t, store.SetJSON(ctx, kv, store.KeyActiveUserID, "u1"))

		a := NewActiveUser(nil)
		ok, err := a.Restore(ctx, kv)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("store failure", func(t *testing.T) {
		kv := store.NewMockStore()
		kv.GetErr = errors.New("disk gone")

		a := NewActiveUser(nil)
		_, err := a.Restore(ctx, kv)
		require.Error(t, err)
	})
}

func TestActiveUser_LoginPersistsSession(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMockStore()
	a := NewActiveUser(nil)

	id, err := a.Login(ctx, kv, Session{Token: "tok", UserID: "u1", ProfileID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "u1", a.UserID())

	tok, err := store.GetString(ctx, kv, store.KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	// A fresh coordinator sees the same user after restore.
	restored := NewActiveUser(nil)
	ok, err := restored.Restore(ctx, kv)
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := restored.Current()
	assert.Equal(t, Identity{UserID: "u1", ProfileID: "p1"}, got)
}

func TestActiveUser_LoginUsesTokenSubject(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMockStore()
	a := NewActiveUser(nil)

	tok := signedToken(t, jwt.MapClaims{"sub": "from-token"})
	id, err := a.Login(ctx, kv, Session{Token: tok})
	require.NoError(t, err)
	assert.Equal(t, "from-token", id.UserID)
	assert.False(t, kv.Has(store.KeyActiveProfileID))
}

func TestActiveUser_LoginWithoutUserFails(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMockStore()
	a := NewActiveUser(nil)

	_, err := a.Login(ctx, kv, Session{Token: "opaque"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUserID))
	assert.False(t, kv.Has(store.KeyAuthToken))
	assert.Empty(t, a.UserID())
}

func TestActiveUser_Logout(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMockStore()
	a := NewActiveUser(nil)

	_, err := a.Login(ctx, kv, Session{Token: "tok", UserID: "u1", ProfileID: "p1"})
	require.NoError(t, err)
	require.NoError(t, store.SetJSON(ctx, kv, store.KeySettings, map[string]any{"fontSize": 16}))

	require.NoError(t, a.Logout(ctx, kv))
	assert.Empty(t, a.UserID())
	assert.False(t, kv.Has(store.KeyAuthToken))
	assert.False(t, kv.Has(store.KeyActiveUserID))
	assert.False(t, kv.Has(store.KeyActiveProfileID))
	assert.True(t, kv.Has(store.KeySettings), "logout keeps settings")
}
