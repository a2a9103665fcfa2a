// ABOUTME: gRPC interceptors that resolve the calling execution context from metadata
// ABOUTME: Streams without a context id are assigned a fresh one

package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// Metadata keys clients use to name themselves.
const (
	MetadataContextID      = "x-context-id"
	MetadataConnectionName = "x-connection-name"
)

// callerFromMetadata builds a Caller from incoming gRPC metadata and peer info.
func callerFromMetadata(ctx context.Context) *Caller {
	c := &Caller{}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(MetadataContextID); len(v) > 0 {
			c.ContextID = v[0]
		}
		if v := md.Get(MetadataConnectionName); len(v) > 0 {
			c.Name = v[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		c.Addr = p.Addr.String()
	}
	return c
}

// UnaryInterceptor attaches the Caller named by metadata to one-shot requests.
func UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		return handler(WithCaller(ctx, callerFromMetadata(ctx)), req)
	}
}

// StreamInterceptor attaches a Caller to every stream, generating a context id when absent.
func StreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		c := callerFromMetadata(ss.Context())
		if c.ContextID == "" {
			c.ContextID = uuid.New().String()
			if logger != nil {
				logger.Debug("assigned context id", "context_id", c.ContextID, "peer_addr", c.Addr)
			}
		}

		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          WithCaller(ss.Context(), c),
		}
		return handler(srv, wrapped)
	}
}

// wrappedServerStream wraps a grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
