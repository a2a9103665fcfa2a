// ABOUTME: Coordinator gRPC service: unary Send for one-shot envelopes, bidi Connect for Connections
// ABOUTME: Connect frames are handled in arrival order; outbound pushes share the stream through a sink

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/easeway/internal/auth"
	"github.com/2389/easeway/internal/peer"
	"github.com/2389/easeway/internal/protocol"
	"github.com/2389/easeway/internal/rpc"
)

const transportGRPC = "grpc"

// coordinatorServer implements rpc.CoordinatorServer.
type coordinatorServer struct {
	gateway *Gateway
	logger  *slog.Logger
}

func newCoordinatorServer(gw *Gateway, logger *slog.Logger) *coordinatorServer {
	return &coordinatorServer{gateway: gw, logger: logger}
}

// Send answers one request envelope. Envelope-level failures are reported in
// the response body, never as gRPC status errors.
func (s *coordinatorServer) Send(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var resp protocol.Response
	env, err := decodeEnvelope(in.GetValue())
	if err != nil {
		resp = protocol.Fail(err.Error())
	} else if resp, err = s.gateway.dispatch(ctx, auth.CallerFrom(ctx), env); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return wrapperspb.Bytes(out), nil
}

// Connect registers the stream as the Connection for the caller's context id.
// Protocol flow:
// 1. Client opens the stream with x-context-id and x-connection-name metadata
// 2. Client sends push frames (PAGE_LOADED, FEATURE_ACTIVATED, ...)
// 3. Server sends APPLY_ACCESSIBILITY_FEATURES frames whenever state changes
// 4. Either side closing the stream closes the Connection
func (s *coordinatorServer) Connect(stream rpc.ConnectServer) error {
	ctx := stream.Context()
	caller := auth.CallerFrom(ctx)
	if caller == nil || caller.ContextID == "" {
		return status.Error(codes.InvalidArgument, "context id is required")
	}

	sink := newGRPCSink(stream)
	conn := peer.NewConnection(peer.ConnectionParams{
		ID:   caller.ContextID,
		Name: caller.Name,
		Addr: caller.Addr,
		Sink: sink,
	})
	g := s.gateway
	g.conns.Open(conn)
	g.metrics.ObserveConnection(transportGRPC, "open")
	defer func() {
		g.conns.Close(conn)
		g.metrics.ObserveConnection(transportGRPC, "close")
	}()

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- s.receiveLoop(ctx, conn, stream)
	}()

	select {
	case err := <-recvErr:
		if err != nil {
			s.logger.Debug("connection stream ended", "conn_id", conn.ID, "error", err)
		}
		return nil
	case <-sink.done:
		s.logger.Debug("connection closed by coordinator", "conn_id", conn.ID)
		return nil
	case <-ctx.Done():
		return nil
	}
}

// receiveLoop hands inbound frames to the router one at a time.
func (s *coordinatorServer) receiveLoop(ctx context.Context, conn *peer.Connection, stream rpc.ConnectServer) error {
	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving frame: %w", err)
		}

		var env protocol.Envelope
		if err := json.Unmarshal(frame.GetValue(), &env); err != nil {
			s.logger.Warn("invalid frame from context", "conn_id", conn.ID, "error", err)
			continue
		}
		s.gateway.router.HandlePush(ctx, conn, env)
	}
}

// grpcSink writes pushes onto a Connect stream.
type grpcSink struct {
	stream    rpc.ConnectServer
	done      chan struct{}
	closeOnce sync.Once
}

func newGRPCSink(stream rpc.ConnectServer) *grpcSink {
	return &grpcSink{stream: stream, done: make(chan struct{})}
}

// Send encodes msg as one frame. The peer.Connection serialises calls.
func (s *grpcSink) Send(ctx context.Context, msg protocol.Outbound) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding push: %w", err)
	}
	return s.stream.Send(wrapperspb.Bytes(raw))
}

// Close ends the stream by returning from the Connect handler.
func (s *grpcSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
