// Package auth tracks who is talking to the coordinator.
//
// # Active User
//
// ActiveUser holds the signed-in user and profile. At startup Restore reads
// the persisted token and user id; if both are present the user becomes
// active. The token is never checked with an issuer. Login persists a new
// session, taking the user id from the token's "sub" claim when none is
// given. Logout removes the session keys.
//
// # Callers
//
// Every request carries a Caller naming the execution context that sent it:
//
//	UnaryInterceptor()         // gRPC one-shot requests, from x-context-id metadata
//	StreamInterceptor(logger)  // gRPC streams, generating an id when absent
//	CallerMiddleware(next)     // HTTP, from the X-Context-ID header
//
// Handlers read it back with CallerFrom(ctx).
package auth
