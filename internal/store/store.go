// ABOUTME: Store interface and key namespace for coordinator persistence
// ABOUTME: Typed get/set/remove over a flat key-value namespace with single-key atomicity

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested key does not exist
var ErrNotFound = errors.New("not found")

// ErrClosed is returned when an operation is attempted on a closed store
var ErrClosed = errors.New("store closed")

// Key names a single persisted value. Each key is written as one unit.
type Key string

// Persisted keys. Preferences and statistics hold every user in a single blob.
const (
	KeySettings           Key = "settings"
	KeyWebsitePreferences Key = "websitePreferences"
	KeyUsageStatistics    Key = "usageStatistics"
	KeyActiveUserID       Key = "activeUserId"
	KeyActiveProfileID    Key = "activeProfileId"
	KeyAuthToken          Key = "authToken"
)

// AllKeys lists every key the coordinator writes, used when clearing data.
var AllKeys = []Key{
	KeySettings,
	KeyWebsitePreferences,
	KeyUsageStatistics,
	KeyActiveUserID,
	KeyActiveProfileID,
	KeyAuthToken,
}

// Store defines the key-value operations every backend provides.
// There are no cross-key transactions: a read-modify-write spanning Get and Set
// can lose updates to a concurrent writer of the same key.
type Store interface {
	// Get returns the raw value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set overwrites the value for key.
	Set(ctx context.Context, key Key, value []byte) error

	// Remove deletes the given keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...Key) error

	// Close releases any resources held by the store
	Close() error
}

// GetJSON decodes the value stored under key into dst.
// Returns false with a nil error when the key is absent.
func GetJSON(ctx context.Context, s Store, key Key, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// GetString returns a string value stored under key, or "" when absent.
func GetString(ctx context.Context, s Store, key Key) (string, error) {
	var v string
	if _, err := GetJSON(ctx, s, key, &v); err != nil {
		return "", err
	}
	return v, nil
}
