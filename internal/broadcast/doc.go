// Package broadcast is the Fan-out Broadcaster.
//
// Delivery is best-effort: no retries, no buffering, and a failure for one
// target never stops the others. Broadcast returns one Outcome per target
// for tests and metrics; callers that answer an execution context ignore
// them and report only whether the state change itself succeeded.
package broadcast
