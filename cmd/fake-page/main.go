// ABOUTME: Minimal fake execution context for manual testing: connects over WebSocket and prints pushes.
// ABOUTME: Usage: fake-page [-addr 127.0.0.1:8089] [-page https://example.com/] [-feature contrast]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/easeway/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8089", "coordinator HTTP address")
	contextID := flag.String("id", "", "execution context id (default: random)")
	name := flag.String("name", "fake-page", "connection name")
	page := flag.String("page", "https://example.com/", "page URL reported in PAGE_LOADED")
	feature := flag.String("feature", "", "feature name to report as activated after loading")
	flag.Parse()

	if *contextID == "" {
		*contextID = "fake-" + uuid.New().String()
	}

	if err := run(*addr, *contextID, *name, *page, *feature); err != nil {
		log.Fatal(err)
	}
}

func run(addr, contextID, name, page, feature string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	u := url.URL{
		Scheme:   "ws",
		Host:     addr,
		Path:     "/api/connect",
		RawQuery: url.Values{"context": {contextID}, "name": {name}}.Encode(),
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer ws.Close()
	fmt.Fprintf(os.Stderr, "connected as %s (%s)\n", contextID, name)

	go func() {
		<-ctx.Done()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ws.Close()
	}()

	if err := push(ws, protocol.TypePageLoaded, protocol.PageLoaded{URL: page, Title: "fake page"}); err != nil {
		return err
	}
	if feature != "" {
		if err := push(ws, protocol.TypeFeatureActivated, protocol.FeatureActivated{FeatureName: feature}); err != nil {
			return err
		}
	}

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil // graceful shutdown
			}
			return fmt.Errorf("recv error: %w", err)
		}

		var msg protocol.Envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("unreadable push: %v", err)
			continue
		}
		if msg.Type != protocol.TypeApplyAccessibilityFeatures {
			log.Printf("unexpected push type %s", msg.Type)
			continue
		}
		log.Printf("received %s: %s", msg.Type, msg.Payload)
	}
}

func push(ws *websocket.Conn, typ protocol.MessageType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", typ, err)
	}
	if err := ws.WriteJSON(protocol.Envelope{Type: typ, Payload: raw}); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return fmt.Errorf("sending %s: %w", typ, err)
	}
	return nil
}
