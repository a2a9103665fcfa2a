// ABOUTME: Go client for the Coordinator gRPC service
// ABOUTME: Sends one-shot envelopes and opens Connection streams with context metadata

package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/easeway/internal/auth"
	"github.com/2389/easeway/internal/protocol"
	"github.com/2389/easeway/internal/rpc"
)

// Reply is a decoded response envelope. Data is left raw for the caller to decode.
type Reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client talks to a coordinator over gRPC.
type Client struct {
	conn    *grpc.ClientConn
	rpc     rpc.CoordinatorClient
	context string
}

// Option configures a Client.
type Option func(*Client)

// WithContextID names the execution context one-shot calls are sent from.
func WithContextID(id string) Option {
	return func(c *Client) { c.context = id }
}

// Dial connects to target. Without dial options the connection is plaintext.
func Dial(target string, dialOpts []grpc.DialOption, opts ...Option) (*Client, error) {
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}
	c := &Client{conn: conn, rpc: rpc.NewCoordinatorClient(conn)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) outgoing(ctx context.Context, kv ...string) context.Context {
	if c.context != "" {
		kv = append(kv, auth.MetadataContextID, c.context)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// Send delivers one request envelope and waits for its response.
func (c *Client) Send(ctx context.Context, env protocol.Envelope) (*Reply, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	out, err := c.rpc.Send(c.outgoing(ctx), wrapperspb.Bytes(raw))
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", env.Type, err)
	}

	var reply Reply
	if err := json.Unmarshal(out.GetValue(), &reply); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &reply, nil
}

// Call builds an envelope from typ and payload and sends it.
func (c *Client) Call(ctx context.Context, typ protocol.MessageType, payload any) (*Reply, error) {
	env := protocol.Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		env.Payload = raw
	}
	return c.Send(ctx, env)
}

// Stream is an open Connection as seen from the execution context.
type Stream struct {
	stream rpc.ConnectClient
}

// Connect opens a Connection for contextID. An empty contextID lets the
// coordinator assign one. The stream ends when ctx is cancelled.
func (c *Client) Connect(ctx context.Context, contextID, name string) (*Stream, error) {
	var kv []string
	if contextID != "" {
		kv = append(kv, auth.MetadataContextID, contextID)
	}
	if name != "" {
		kv = append(kv, auth.MetadataConnectionName, name)
	}
	if len(kv) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, kv...)
	}

	s, err := c.rpc.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	return &Stream{stream: s}, nil
}

// Push sends one push frame.
func (s *Stream) Push(typ protocol.MessageType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	frame, err := json.Marshal(protocol.Envelope{Type: typ, Payload: raw})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	if err := s.stream.Send(wrapperspb.Bytes(frame)); err != nil {
		return fmt.Errorf("pushing %s: %w", typ, err)
	}
	return nil
}

// Recv blocks for the next background push.
func (s *Stream) Recv() (protocol.Envelope, error) {
	frame, err := s.stream.Recv()
	if err != nil {
		return protocol.Envelope{}, err
	}
	var env protocol.Envelope
	if err := json.Unmarshal(frame.GetValue(), &env); err != nil {
		return protocol.Envelope{}, fmt.Errorf("decoding push: %w", err)
	}
	return env, nil
}

// CloseSend half-closes the stream, which closes the Connection on the server.
func (s *Stream) CloseSend() error {
	return s.stream.CloseSend()
}
