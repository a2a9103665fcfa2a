// ABOUTME: Tests for the Coordinator gRPC service over an in-memory bufconn listener
// ABOUTME: Exercises one-shot Send and Connection streams through the real client package

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/easeway/internal/client"
	"github.com/2389/easeway/internal/protocol"
	"github.com/2389/easeway/internal/rpc"
)

// serveBufconn serves gw's gRPC server on an in-memory listener and returns dial options for it.
func serveBufconn(t *testing.T, gw *Gateway) []grpc.DialOption {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gw.grpcServer.Serve(lis) }()
	t.Cleanup(gw.grpcServer.Stop)

	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

func dialTest(t *testing.T, dialOpts []grpc.DialOption, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.Dial("passthrough:///bufnet", dialOpts, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// recvSnapshot reads pushes until one carries a full settings snapshot.
// Settings-only updates from earlier fan-outs may arrive first.
func recvSnapshot(t *testing.T, s *client.Stream) map[string]any {
	t.Helper()
	for {
		env, err := s.Recv()
		require.NoError(t, err)
		require.Equal(t, protocol.TypeApplyAccessibilityFeatures, env.Type)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		if _, ok := payload["websitePreferences"]; ok {
			return payload
		}
	}
}

func TestSend_FeatureUsedThenSyncStats(t *testing.T) {
	gw := newTestGateway(t, nil)
	c := dialTest(t, serveBufconn(t, gw))
	ctx := t.Context()

	for range 3 {
		reply, err := c.Call(ctx, protocol.TypeFeatureUsed, map[string]any{"userId": "u1", "featureName": "contrast"})
		require.NoError(t, err)
		require.True(t, reply.Success, reply.Error)
	}

	reply, err := c.Call(ctx, protocol.TypeSyncStats, map[string]any{"userId": "u1"})
	require.NoError(t, err)
	require.True(t, reply.Success)

	var rec struct {
		FeatureUsage map[string]int64 `json:"featureUsage"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &rec))
	assert.Equal(t, int64(3), rec.FeatureUsage["contrast"])
}

func TestSend_EnvelopeFailures(t *testing.T) {
	gw := newTestGateway(t, nil)
	dialOpts := serveBufconn(t, gw)
	ctx := t.Context()

	c := dialTest(t, dialOpts)
	reply, err := c.Call(ctx, "BOGUS", nil)
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "Unknown message type: BOGUS", reply.Error)

	reply, err = c.Call(ctx, protocol.TypeSyncStats, map[string]any{})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "Missing required field: userId", reply.Error)

	conn, err := grpc.NewClient("passthrough:///bufnet", dialOpts...)
	require.NoError(t, err)
	defer conn.Close()
	out, err := rpc.NewCoordinatorClient(conn).Send(ctx, wrapperspb.Bytes([]byte("not json")))
	require.NoError(t, err)

	var raw client.Reply
	require.NoError(t, json.Unmarshal(out.GetValue(), &raw))
	assert.False(t, raw.Success)
	assert.Contains(t, raw.Error, "invalid message")
}

func TestSend_DuplicateRequestIDPerContext(t *testing.T) {
	gw := newTestGateway(t, nil)
	dialOpts := serveBufconn(t, gw)
	ctx := t.Context()

	env := protocol.Envelope{
		Type:      protocol.TypeFeatureUsed,
		Payload:   []byte(`{"userId":"u1","featureName":"zoom"}`),
		RequestID: "req-1",
	}

	tabA := dialTest(t, dialOpts, client.WithContextID("tab-a"))
	reply, err := tabA.Send(ctx, env)
	require.NoError(t, err)
	require.True(t, reply.Success)

	reply, err = tabA.Send(ctx, env)
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "Duplicate request: req-1", reply.Error)

	// The same id from another context is a different request.
	tabB := dialTest(t, dialOpts, client.WithContextID("tab-b"))
	reply, err = tabB.Send(ctx, env)
	require.NoError(t, err)
	assert.True(t, reply.Success)
}

func TestConnect_PageLoadedPushesSettings(t *testing.T) {
	gw := newTestGateway(t, nil)
	c := dialTest(t, serveBufconn(t, gw))
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	for _, call := range []struct {
		typ     protocol.MessageType
		payload any
	}{
		{protocol.TypeSetActiveUser, map[string]any{"token": "tok", "userId": "u1"}},
		{protocol.TypeSyncSettings, map[string]any{"settings": map[string]any{"theme": "dark"}}},
		{protocol.TypeSetWebsitePreferences, map[string]any{"preferences": map[string]any{"userId": "u1", "domain": "example.com", "fontSize": 18}}},
	} {
		reply, err := c.Call(ctx, call.typ, call.payload)
		require.NoError(t, err)
		require.True(t, reply.Success, reply.Error)
	}

	stream, err := c.Connect(ctx, "tab-1", "reader")
	require.NoError(t, err)
	require.NoError(t, stream.Push(protocol.TypePageLoaded, map[string]any{"url": "https://example.com/page", "title": "Page"}))

	payload := recvSnapshot(t, stream)
	assert.Equal(t, map[string]any{"theme": "dark"}, payload["settings"])
	require.NotNil(t, payload["websitePreferences"])
	assert.Equal(t, "example.com", payload["websitePreferences"].(map[string]any)["domain"])

	infos := gw.conns.List()
	require.Len(t, infos, 1)
	assert.Equal(t, "tab-1", infos[0].ID)
	assert.Equal(t, "reader", infos[0].Name)
	assert.Equal(t, "https://example.com/page", infos[0].URL)
}

func TestConnect_SyncSettingsFansOut(t *testing.T) {
	gw := newTestGateway(t, nil)
	c := dialTest(t, serveBufconn(t, gw))
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	tabA, err := c.Connect(ctx, "tab-a", "")
	require.NoError(t, err)
	tabB, err := c.Connect(ctx, "tab-b", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gw.conns.Count() == 2 }, 5*time.Second, 10*time.Millisecond)

	reply, err := c.Call(ctx, protocol.TypeSyncSettings, map[string]any{"settings": map[string]any{"fontSize": 16}})
	require.NoError(t, err)
	require.True(t, reply.Success)

	for _, s := range []*client.Stream{tabA, tabB} {
		env, err := s.Recv()
		require.NoError(t, err)
		assert.Equal(t, protocol.TypeApplyAccessibilityFeatures, env.Type)
		assert.JSONEq(t, `{"settings":{"fontSize":16}}`, string(env.Payload))
	}
}

func TestConnect_CloseSendClosesConnection(t *testing.T) {
	gw := newTestGateway(t, nil)
	c := dialTest(t, serveBufconn(t, gw))
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	stream, err := c.Connect(ctx, "tab-1", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gw.conns.IsOpen("tab-1") }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, stream.CloseSend())
	assert.Eventually(t, func() bool { return gw.conns.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestConnect_ReopenReplacesStream(t *testing.T) {
	gw := newTestGateway(t, nil)
	c := dialTest(t, serveBufconn(t, gw))
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	first, err := c.Connect(ctx, "tab-1", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gw.conns.IsOpen("tab-1") }, 5*time.Second, 10*time.Millisecond)
	old, _ := gw.conns.Get("tab-1")

	_, err = c.Connect(ctx, "tab-1", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		cur, ok := gw.conns.Get("tab-1")
		return ok && cur != old
	}, 5*time.Second, 10*time.Millisecond)

	_, err = first.Recv()
	assert.True(t, errors.Is(err, io.EOF), "first stream should end cleanly, got %v", err)
	assert.Equal(t, 1, gw.conns.Count())
}

func TestConnect_AssignsContextID(t *testing.T) {
	gw := newTestGateway(t, nil)
	c := dialTest(t, serveBufconn(t, gw))
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	_, err := c.Connect(ctx, "", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gw.conns.Count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, gw.conns.List()[0].ID)
}
