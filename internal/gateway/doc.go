// Package gateway orchestrates the easeway coordinator's server components.
//
// # Overview
//
// The gateway owns the store, the message router, the connection manager and
// the fan-out broadcaster, and exposes them over two transports. Both
// transports feed the same router, so an execution context sees identical
// behaviour whichever it uses.
//
// # gRPC Service
//
// The Coordinator service carries JSON envelopes inside BytesValue frames:
//
//	service Coordinator {
//	    rpc Send(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	    rpc Connect(stream google.protobuf.BytesValue) returns (stream google.protobuf.BytesValue);
//	}
//
// Send is a one-shot call. Connect opens a Connection for the context named by
// the x-context-id metadata key; a fresh id is assigned when it is absent.
//
// # HTTP API
//
//   - POST /api/message - One-shot envelope, sender from X-Context-ID
//   - GET /api/connect - WebSocket Connection (?context=&name=)
//   - GET /api/contexts - List open connections
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (store answers a read)
//   - GET /metrics - Prometheus metrics, when enabled
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Canceling ctx shuts the servers down, closes every open Connection and then
// the store.
package gateway
