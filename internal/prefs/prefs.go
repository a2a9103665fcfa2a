// ABOUTME: Preference Store for per-(user, domain) website overrides
// ABOUTME: Persists a two-level userId -> domain -> record mapping as one blob

package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/easeway/internal/store"
)

// ErrMissingIdentifier is returned by Set when a record lacks userId or domain.
var ErrMissingIdentifier = errors.New("preferences require userId and domain")

// layout is the persisted shape of KeyWebsitePreferences.
type layout map[string]map[string]*Record

// Store reads and upserts WebsitePreference records.
type Store struct {
	kv     store.Store
	mu     sync.Mutex // serialises read-modify-write cycles issued through this Store
	logger *slog.Logger
}

// New creates a preference store over kv.
func New(kv store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		logger: logger.With("component", "prefs"),
	}
}

func (s *Store) load(ctx context.Context) (layout, error) {
	var all layout
	if _, err := store.GetJSON(ctx, s.kv, store.KeyWebsitePreferences, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = make(layout)
	}
	return all, nil
}

// Get returns the record for (userID, domain), or nil when none exists.
func (s *Store) Get(ctx context.Context, userID, domain string) (*Record, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}

	rec, ok := all[userID][NormalizeDomain(domain)]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// Set upserts rec under its own userId and domain.
// Other domains of the same user are left untouched.
func (s *Store) Set(ctx context.Context, rec *Record) error {
	if rec == nil {
		return ErrMissingIdentifier
	}
	if rec.UserID == "" {
		return fmt.Errorf("%w: missing userId", ErrMissingIdentifier)
	}
	domain := NormalizeDomain(rec.Domain)
	if domain == "" {
		return fmt.Errorf("%w: missing domain", ErrMissingIdentifier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	stored := &Record{UserID: rec.UserID, Domain: domain, Overrides: rec.Overrides}
	if all[rec.UserID] == nil {
		all[rec.UserID] = make(map[string]*Record)
	}
	all[rec.UserID][domain] = stored

	if err := store.SetJSON(ctx, s.kv, store.KeyWebsitePreferences, all); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}

	s.logger.Debug("website preferences saved",
		"user_id", rec.UserID,
		"domain", domain,
		"user_domains", len(all[rec.UserID]),
	)
	return nil
}
