// ABOUTME: HTTP middleware that resolves the calling execution context from headers
// ABOUTME: Mirrors the gRPC interceptors so handlers read the sender the same way

package auth

import (
	"net/http"
)

// HeaderContextID names the sending context on HTTP requests.
const HeaderContextID = "X-Context-ID"

// HeaderConnectionName carries an optional display name.
const HeaderConnectionName = "X-Connection-Name"

// CallerMiddleware attaches a Caller built from request headers.
// Requests without X-Context-ID get an anonymous Caller.
func CallerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := &Caller{
			ContextID: r.Header.Get(HeaderContextID),
			Name:      r.Header.Get(HeaderConnectionName),
			Addr:      r.RemoteAddr,
		}
		if c.ContextID == "" {
			c.ContextID = r.URL.Query().Get("contextId")
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
	})
}
