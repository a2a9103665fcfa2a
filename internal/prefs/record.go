// ABOUTME: WebsitePreference record with flattened JSON encoding
// ABOUTME: Owning identifiers sit alongside arbitrary override fields in one object

package prefs

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Record is a per-(user, domain) override record.
// On the wire it is a single flat object: {"userId":..,"domain":..,<overrides>}.
type Record struct {
	UserID    string
	Domain    string
	Overrides map[string]any
}

// MarshalJSON flattens the identifiers and overrides into one object.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Overrides)+2)
	for k, v := range r.Overrides {
		out[k] = v
	}
	out["userId"] = r.UserID
	out["domain"] = r.Domain
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object into identifiers and overrides.
// Non-string identifiers are treated as missing.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.UserID, _ = raw["userId"].(string)
	r.Domain, _ = raw["domain"].(string)
	delete(raw, "userId")
	delete(raw, "domain")

	r.Overrides = raw
	return nil
}

// NormalizeDomain lowercases and trims a domain so lookups are case-insensitive.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// DomainFromURL returns the normalised hostname of rawURL.
// It reports false for empty, relative, or unparsable URLs.
func DomainFromURL(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := NormalizeDomain(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}
