// ABOUTME: ActiveUser holds the currently authenticated user for the coordinator
// ABOUTME: Restored from the persisted token and user id at startup, cleared on logout

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/easeway/internal/store"
)

// ErrNoUserID is returned by Login when neither the session nor its token names a user.
var ErrNoUserID = errors.New("session has no userId and token has no subject")

// Session is what an execution context hands over after signing in.
type Session struct {
	Token     string
	UserID    string
	ProfileID string
}

// Identity is the active user and profile.
type Identity struct {
	UserID    string `json:"userId"`
	ProfileID string `json:"profileId,omitempty"`
}

// ActiveUser is the process-wide pointer to the signed-in user.
// It is passed explicitly to whoever needs it rather than held in a package variable.
type ActiveUser struct {
	mu       sync.RWMutex
	identity *Identity
	logger   *slog.Logger
}

// NewActiveUser creates an ActiveUser with nobody signed in.
func NewActiveUser(logger *slog.Logger) *ActiveUser {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActiveUser{logger: logger.With("component", "auth")}
}

// Current returns the active identity, or false when nobody is signed in.
func (a *ActiveUser) Current() (Identity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.identity == nil {
		return Identity{}, false
	}
	return *a.identity, true
}

// UserID returns the active user id, or "" when nobody is signed in.
func (a *ActiveUser) UserID() string {
	id, _ := a.Current()
	return id.UserID
}

func (a *ActiveUser) set(id *Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.identity = id
}

// Clear forgets the active user without touching the store.
func (a *ActiveUser) Clear() {
	a.set(nil)
}

// Restore sets the active user from the persisted token and user id.
// Both must be present; the token is not checked with any authority.
func (a *ActiveUser) Restore(ctx context.Context, kv store.Store) (bool, error) {
	token, err := store.GetString(ctx, kv, store.KeyAuthToken)
	if err != nil {
		return false, fmt.Errorf("reading auth token: %w", err)
	}
	userID, err := store.GetString(ctx, kv, store.KeyActiveUserID)
	if err != nil {
		return false, fmt.Errorf("reading active user: %w", err)
	}
	if token == "" || userID == "" {
		a.logger.Info("no persisted session")
		return false, nil
	}

	profileID, err := store.GetString(ctx, kv, store.KeyActiveProfileID)
	if err != nil {
		return false, fmt.Errorf("reading active profile: %w", err)
	}

	a.set(&Identity{UserID: userID, ProfileID: profileID})
	a.logger.Info("restored persisted session", "user_id", userID, "profile_id", profileID)
	return true, nil
}

// Login persists the session and makes its user active.
// When s.UserID is empty the token's subject is used.
// The three keys are written separately; a failure part-way leaves the earlier ones set.
func (a *ActiveUser) Login(ctx context.Context, kv store.Store, s Session) (Identity, error) {
	userID := s.UserID
	if userID == "" {
		sub, err := SubjectFromToken(s.Token)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrNoUserID, err)
		}
		userID = sub
	}

	if err := store.SetJSON(ctx, kv, store.KeyAuthToken, s.Token); err != nil {
		return Identity{}, err
	}
	if err := store.SetJSON(ctx, kv, store.KeyActiveUserID, userID); err != nil {
		return Identity{}, err
	}
	if s.ProfileID != "" {
		if err := store.SetJSON(ctx, kv, store.KeyActiveProfileID, s.ProfileID); err != nil {
			return Identity{}, err
		}
	} else if err := kv.Remove(ctx, store.KeyActiveProfileID); err != nil {
		return Identity{}, fmt.Errorf("clearing active profile: %w", err)
	}

	id := Identity{UserID: userID, ProfileID: s.ProfileID}
	a.set(&id)
	a.logger.Info("user signed in", "user_id", userID, "profile_id", s.ProfileID)
	return id, nil
}

// Logout removes the persisted session and clears the active user.
func (a *ActiveUser) Logout(ctx context.Context, kv store.Store) error {
	if err := kv.Remove(ctx, store.KeyAuthToken, store.KeyActiveUserID, store.KeyActiveProfileID); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	prev := a.UserID()
	a.Clear()
	a.logger.Info("user signed out", "user_id", prev)
	return nil
}
