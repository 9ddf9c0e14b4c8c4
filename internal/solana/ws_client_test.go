package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer starts a server that hands every connection to handle.
func wsServer(t *testing.T, handle func(c *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		handle(c)
	}))
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func drain(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func readRequest(t *testing.T, c *websocket.Conn) (wsRequest, bool) {
	t.Helper()
	_, msg, err := c.ReadMessage()
	if err != nil {
		return wsRequest{}, false
	}
	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Errorf("unmarshal request: %v", err)
		return wsRequest{}, false
	}
	return req, true
}

func TestWSClient_Connect(t *testing.T) {
	server, wsURL := wsServer(t, drain)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	server, wsURL := wsServer(t, func(c *websocket.Conn) {
		req, ok := readRequest(t, c)
		if !ok {
			return
		}
		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", req.Method)
		}

		c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 12345})

		time.Sleep(50 * time.Millisecond)
		c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "logsNotification",
			"params": map[string]interface{}{
				"subscription": 12345,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 100},
					"value": map[string]interface{}{
						"signature": "testsig",
						"logs":      []string{"Program log: Test"},
						"err":       nil,
					},
				},
			},
		})

		drain(c)
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{
		Mentions: []string{"testprogram"},
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log, got %d", len(notif.Logs))
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_SubscribeSignature(t *testing.T) {
	server, wsURL := wsServer(t, func(c *websocket.Conn) {
		req, ok := readRequest(t, c)
		if !ok {
			return
		}
		if req.Method != "signatureSubscribe" {
			t.Errorf("expected signatureSubscribe, got %s", req.Method)
		}
		if len(req.Params) == 0 || req.Params[0] != "sig1" {
			t.Errorf("expected sig1 param, got %v", req.Params)
		}

		// subscription IDs start at 0 on real nodes
		c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 0})
		c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"subscription": 0,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 77},
					"value":   map[string]interface{}{"err": map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}}},
				},
			},
		})
		drain(c)
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case notif, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before notification")
		}
		if notif.Slot != 77 {
			t.Errorf("expected slot 77, got %d", notif.Slot)
		}
		if notif.Err == nil {
			t.Error("expected transaction error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed after one notification")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestWSClient_SubscribeErrorResponse(t *testing.T) {
	server, wsURL := wsServer(t, func(c *websocket.Conn) {
		req, ok := readRequest(t, c)
		if !ok {
			return
		}
		c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid params"},
		})
		drain(c)
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, &WSClientConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		SubscribeTimeout:  200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeSignature(ctx, "bad"); err == nil {
		t.Error("expected subscribe timeout")
	}
}

func TestWSClient_Close(t *testing.T) {
	server, wsURL := wsServer(t, drain)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	err = client.Close()
	if err != nil {
		t.Errorf("Close: %v", err)
	}

	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe
	err = client.Close()
	if err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server, wsURL := wsServer(t, drain)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	client.Close()

	if _, err := client.SubscribeLogs(ctx, LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
	if _, err := client.SubscribeSignature(ctx, "sig"); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_CustomConfig(t *testing.T) {
	server, wsURL := wsServer(t, drain)
	defer server.Close()

	config := &WSClientConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
	}

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, config)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
	if client.config.Commitment != CommitmentConfirmed {
		t.Errorf("expected default commitment, got %q", client.config.Commitment)
	}
}
