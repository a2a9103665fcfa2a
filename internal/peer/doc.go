// Package peer is the Connection Manager: it tracks the long-lived channels
// execution contexts open to the coordinator and delivers pushes to them.
//
// A Connection moves from Open to Active to Closed. After Close nothing is
// delivered and nothing is buffered. Transports supply a Sink; the gRPC and
// WebSocket servers in package gateway both do.
package peer
