// ABOUTME: Statistics Aggregator merging incremental usage into per-user records
// ABOUTME: Owns visited-domain dedup and FIFO truncation of the history sequence

package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/easeway/internal/store"
)

// DefaultHistoryLimit is the number of most recent distinct domains kept per user.
const DefaultHistoryLimit = 100

// ErrNegativeCount is returned when a feature increment is below zero.
var ErrNegativeCount = errors.New("count must be a non-negative integer")

// Aggregator merges usage updates into the usage statistics blob.
//
// Every operation reads the whole blob, mutates one user in memory and writes the
// blob back. Operations issued through the same Aggregator are serialised; writers
// of the same key elsewhere can still interleave and win.
type Aggregator struct {
	kv           store.Store
	historyLimit int
	mu           sync.Mutex
	logger       *slog.Logger
}

// NewAggregator creates an aggregator. A non-positive historyLimit selects DefaultHistoryLimit.
func NewAggregator(kv store.Store, historyLimit int, logger *slog.Logger) *Aggregator {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		kv:           kv,
		historyLimit: historyLimit,
		logger:       logger.With("component", "stats"),
	}
}

func (a *Aggregator) load(ctx context.Context) (map[string]*Record, error) {
	var all map[string]*Record
	if _, err := store.GetJSON(ctx, a.kv, store.KeyUsageStatistics, &all); err != nil {
		return nil, fmt.Errorf("loading statistics: %w", err)
	}
	if all == nil {
		all = make(map[string]*Record)
	}
	return all, nil
}

// update runs fn against userID's record and persists the blob if fn reports a change.
func (a *Aggregator) update(ctx context.Context, userID string, fn func(*Record) bool) (*Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	rec, ok := all[userID]
	if !ok || rec == nil {
		rec = NewRecord()
		all[userID] = rec
	}
	rec.normalize()

	if !fn(rec) {
		return rec, nil
	}

	if err := store.SetJSON(ctx, a.kv, store.KeyUsageStatistics, all); err != nil {
		return nil, fmt.Errorf("saving statistics: %w", err)
	}
	return rec, nil
}

// Get returns userID's record, or a fresh zero record if none exists. Nothing is written.
func (a *Aggregator) Get(ctx context.Context, userID string) (*Record, error) {
	all, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := all[userID]
	if !ok || rec == nil {
		return NewRecord(), nil
	}
	rec.normalize()
	return rec, nil
}

// RecordFeatureUsed adds count to featureUsage[feature]. Totals saturate at math.MaxInt64.
func (a *Aggregator) RecordFeatureUsed(ctx context.Context, userID, feature string, count int64) (*Record, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}

	rec, err := a.update(ctx, userID, func(r *Record) bool {
		r.FeatureUsage[feature] = addCount(r.FeatureUsage[feature], count)
		return true
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug("feature usage recorded",
		"user_id", userID,
		"feature", feature,
		"count", count,
		"total", rec.FeatureUsage[feature],
	)
	return rec, nil
}

// RecordPageLoad appends domain to the history if it is not already present.
// Returns true when the domain was new. Known domains change nothing.
func (a *Aggregator) RecordPageLoad(ctx context.Context, userID, domain string) (bool, error) {
	if domain == "" {
		return false, nil
	}

	added := false
	_, err := a.update(ctx, userID, func(r *Record) bool {
		for _, seen := range r.WebsitesHistory {
			if seen == domain {
				return false
			}
		}

		r.WebsitesHistory = append(r.WebsitesHistory, domain)
		if over := len(r.WebsitesHistory) - a.historyLimit; over > 0 {
			r.WebsitesHistory = append([]string(nil), r.WebsitesHistory[over:]...)
		}
		r.WebsitesVisited++
		added = true
		return true
	})
	if err != nil {
		return false, err
	}

	if added {
		a.logger.Debug("new domain recorded", "user_id", userID, "domain", domain)
	}
	return added, nil
}

// MergeStats adds a partial update into userID's record key by key.
// Counters saturate at math.MaxInt64 rather than wrapping.
func (a *Aggregator) MergeStats(ctx context.Context, userID string, p Partial) (*Record, error) {
	return a.update(ctx, userID, func(r *Record) bool {
		for name, n := range p.FeatureUsage {
			r.FeatureUsage[name] = addCount(r.FeatureUsage[name], n)
		}
		if p.SessionCount != nil {
			r.SessionCount = addCount(r.SessionCount, *p.SessionCount)
		}
		if p.TimeSpent != nil {
			r.TotalTimeSpent += *p.TimeSpent
		}
		return true
	})
}
