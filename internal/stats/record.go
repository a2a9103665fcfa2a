// ABOUTME: UsageStatistics record and the partial update merged into it
// ABOUTME: Partial decoding is lenient: non-numeric or negative fields are dropped

package stats

import (
	"encoding/json"
	"math"
)

// Record accumulates usage for one user.
type Record struct {
	FeatureUsage    map[string]int64 `json:"featureUsage"`
	SessionCount    int64            `json:"sessionCount"`
	TotalTimeSpent  float64          `json:"totalTimeSpent"`
	WebsitesVisited int64            `json:"websitesVisited"`
	WebsitesHistory []string         `json:"websitesHistory"`
}

// NewRecord returns a zero-valued record with an empty usage map and history.
func NewRecord() *Record {
	return &Record{
		FeatureUsage:    make(map[string]int64),
		WebsitesHistory: []string{},
	}
}

// normalize fills nil collections left by older or hand-edited blobs.
func (r *Record) normalize() {
	if r.FeatureUsage == nil {
		r.FeatureUsage = make(map[string]int64)
	}
	if r.WebsitesHistory == nil {
		r.WebsitesHistory = []string{}
	}
}

// Partial is an incremental update. Nil fields are no-ops, never resets.
type Partial struct {
	FeatureUsage map[string]int64
	SessionCount *int64
	TimeSpent    *float64
}

// UnmarshalJSON keeps only fields that are present and numeric.
// Counts must be non-negative integers; timeSpent must be non-negative.
func (p *Partial) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if fu, ok := raw["featureUsage"]; ok {
		var entries map[string]any
		if err := json.Unmarshal(fu, &entries); err == nil {
			for name, v := range entries {
				if n, ok := nonNegativeInteger(v); ok {
					if p.FeatureUsage == nil {
						p.FeatureUsage = make(map[string]int64)
					}
					p.FeatureUsage[name] = n
				}
			}
		}
	}

	if sc, ok := raw["sessionCount"]; ok {
		var v any
		if err := json.Unmarshal(sc, &v); err == nil {
			if n, ok := nonNegativeInteger(v); ok {
				p.SessionCount = &n
			}
		}
	}

	if ts, ok := raw["timeSpent"]; ok {
		var v any
		if err := json.Unmarshal(ts, &v); err == nil {
			if f, ok := v.(float64); ok && f >= 0 && !math.IsInf(f, 0) {
				p.TimeSpent = &f
			}
		}
	}

	return nil
}

// countLimit is 2^63 as a float. float64(math.MaxInt64) rounds up to it, so
// counts must compare strictly below.
const countLimit float64 = 1 << 63

func nonNegativeInteger(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f < 0 || f != math.Trunc(f) || f >= countLimit {
		return 0, false
	}
	return int64(f), true
}

// addCount adds two non-negative counts, saturating at math.MaxInt64.
func addCount(total, n int64) int64 {
	if n > math.MaxInt64-total {
		return math.MaxInt64
	}
	return total + n
}
