package broadcast

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return msg
}

func TestHubPublishesToSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?clientId=overlay-1")

	hello := readMessage(t, conn)
	if hello.Type != TypeConnected {
		t.Fatalf("first message type = %q, want %q", hello.Type, TypeConnected)
	}
	if !strings.Contains(string(hello.Data), "overlay-1") {
		t.Fatalf("connected data = %s, want clientId overlay-1", hello.Data)
	}

	hub.Publish(TypeGiveawayEnded, map[string]any{"id": 7, "winners": []string{"1"}})

	msg := readMessage(t, conn)
	if msg.Type != TypeGiveawayEnded {
		t.Fatalf("type = %q, want %q", msg.Type, TypeGiveawayEnded)
	}
	var data struct {
		ID      int      `json:"id"`
		Winners []string `json:"winners"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Unmarshal data failed: %v", err)
	}
	if data.ID != 7 || len(data.Winners) != 1 {
		t.Fatalf("data = %+v", data)
	}
}

func TestPublishOnNilHubIsNoop(t *testing.T) {
	var hub *Hub
	hub.Publish(TypePollEnded, map[string]int{"id": 1})
}
