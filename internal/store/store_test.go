// ABOUTME: Backend conformance tests shared by SQLite, Badger and Mock stores
// ABOUTME: Covers get/set/remove semantics, JSON helpers, and absent-key handling

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)

	badgerStore, err := NewBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	all := map[string]Store{
		"sqlite": sqlite,
		"badger": badgerStore,
		"mock":   NewMockStore(),
	}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStore_GetMissingKey(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), KeySettings)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, KeySettings, []byte(`{"theme":"light"}`)))
			require.NoError(t, s.Set(ctx, KeySettings, []byte(`{"theme":"dark"}`)))

			got, err := s.Get(ctx, KeySettings)
			require.NoError(t, err)
			assert.JSONEq(t, `{"theme":"dark"}`, string(got))
		})
	}
}

func TestStore_RemoveLeavesOtherKeys(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, KeyAuthToken, []byte(`"tok"`)))
			require.NoError(t, s.Set(ctx, KeyActiveUserID, []byte(`"u1"`)))
			require.NoError(t, s.Set(ctx, KeySettings, []byte(`{}`)))

			require.NoError(t, s.Remove(ctx, KeyAuthToken, KeyActiveUserID, KeyActiveProfileID))

			_, err := s.Get(ctx, KeyAuthToken)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Get(ctx, KeyActiveUserID)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Get(ctx, KeySettings)
			assert.NoError(t, err)
		})
	}
}

func TestStore_RemoveNothing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Remove(context.Background()))
		})
	}
}

func TestGetJSON_AbsentKey(t *testing.T) {
	s := NewMockStore()
	var v map[string]any

	found, err := GetJSON(context.Background(), s, KeySettings, &v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestGetJSON_RoundTripsThroughStore(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, s, KeyActiveUserID, "u1"))

	got, err := GetString(ctx, s, KeyActiveUserID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, KeySettings, []byte("{not json")))

	var v map[string]any
	_, err := GetJSON(ctx, s, KeySettings, &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding settings")
}

func TestGetJSON_WrapsBackendError(t *testing.T) {
	s := NewMockStore()
	boom := errors.New("disk on fire")
	s.GetErr = boom

	var v map[string]any
	_, err := GetJSON(context.Background(), s, KeySettings, &v)
	assert.ErrorIs(t, err, boom)
}
