// ABOUTME: Hand-written gRPC service descriptor for easeway.v1.Coordinator
// ABOUTME: Frames are wrapperspb.BytesValue carrying JSON envelopes

package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "easeway.v1.Coordinator"

// Full method names.
const (
	SendFullMethodName    = "/" + ServiceName + "/Send"
	ConnectFullMethodName = "/" + ServiceName + "/Connect"
)

// ConnectServer is the server side of a Connect stream.
type ConnectServer = grpc.BidiStreamingServer[wrapperspb.BytesValue, wrapperspb.BytesValue]

// ConnectClient is the client side of a Connect stream.
type ConnectClient = grpc.BidiStreamingClient[wrapperspb.BytesValue, wrapperspb.BytesValue]

// CoordinatorServer is implemented by the coordinator's gRPC transport.
type CoordinatorServer interface {
	// Send carries one JSON request envelope and answers with one JSON response envelope.
	Send(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// Connect opens a Connection. Inbound frames are pushes, outbound frames are background pushes.
	Connect(stream ConnectServer) error
}

// RegisterCoordinatorServer registers srv on s.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&CoordinatorServiceDesc, srv)
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendFullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).Send(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(CoordinatorServer).Connect(&grpc.GenericServerStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// CoordinatorServiceDesc is the grpc.ServiceDesc for the Coordinator service.
var CoordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Send",
			Handler:    sendHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "easeway/v1/coordinator.proto",
}

// CoordinatorClient is the client API for the Coordinator service.
type CoordinatorClient interface {
	Send(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Connect(ctx context.Context, opts ...grpc.CallOption) (ConnectClient, error)
}

type coordinatorClient struct {
	cc grpc.ClientConnInterface
}

// NewCoordinatorClient wraps a client connection.
func NewCoordinatorClient(cc grpc.ClientConnInterface) CoordinatorClient {
	return &coordinatorClient{cc: cc}
}

func (c *coordinatorClient) Send(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, SendFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) Connect(ctx context.Context, opts ...grpc.CallOption) (ConnectClient, error) {
	stream, err := c.cc.NewStream(ctx, &CoordinatorServiceDesc.Streams[0], ConnectFullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ClientStream: stream}, nil
}
