// ABOUTME: Target filters for fan-out: every context, one context, or a domain
// ABOUTME: Domain matching compares the page hostname with the domain and its subdomains

package broadcast

import (
	"strings"

	"github.com/2389/easeway/internal/peer"
	"github.com/2389/easeway/internal/prefs"
)

// Filter selects which open contexts receive a push.
type Filter func(peer.Info) bool

// All accepts every open context.
func All() Filter {
	return func(peer.Info) bool { return true }
}

// Only accepts the context with the given id.
func Only(id string) Filter {
	return func(info peer.Info) bool { return info.ID == id }
}

// MatchDomain accepts contexts whose page is on domain or one of its subdomains.
// Contexts that have not reported a URL never match.
func MatchDomain(domain string) Filter {
	domain = prefs.NormalizeDomain(domain)
	return func(info peer.Info) bool {
		if domain == "" {
			return false
		}
		host, ok := prefs.DomainFromURL(info.URL)
		if !ok {
			return false
		}
		return host == domain || strings.HasSuffix(host, "."+domain)
	}
}
