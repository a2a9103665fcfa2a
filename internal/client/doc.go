// Package client is a Go client for the coordinator's gRPC transport.
//
// One-shot calls go through Send or Call and return the decoded response
// envelope:
//
//	c, _ := client.Dial("127.0.0.1:50061", nil, client.WithContextID("tab-1"))
//	reply, err := c.Call(ctx, protocol.TypeSyncStats, map[string]string{"userId": "u1"})
//
// Connect opens a Connection stream. Push sends PAGE_LOADED and friends,
// Recv returns APPLY_ACCESSIBILITY_FEATURES pushes.
package client
