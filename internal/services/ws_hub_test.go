package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialHub starts a server that registers every connection for userID and
// returns the client side
func dialHub(t *testing.T, hub *WSHub, userID int64) *websocket.Conn {
	t.Helper()
	registered := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Register(userID, conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	return client
}

func TestHubSendToUser(t *testing.T) {
	hub := NewWSHub()
	client := dialHub(t, hub, 7)

	if !hub.IsOnline(7) || hub.OnlineCount() != 1 {
		t.Fatal("user 7 should be online")
	}

	if err := hub.SendToUser(7, WSMessage{Type: WSNewMessage, ConversationID: 3, Message: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got WSMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != WSNewMessage || got.ConversationID != 3 || got.Message != "hello" {
		t.Fatalf("message = %+v", got)
	}
}

func TestHubSendToOfflineUser(t *testing.T) {
	hub := NewWSHub()
	if err := hub.SendToUser(99, WSMessage{Type: WSPong}); err == nil {
		t.Fatal("expected error for offline user")
	}
	if hub.IsOnline(99) {
		t.Fatal("offline user reported online")
	}
}

func TestHubReplaceConnection(t *testing.T) {
	hub := NewWSHub()
	first := dialHub(t, hub, 7)
	dialHub(t, hub, 7)

	if hub.OnlineCount() != 1 {
		t.Fatalf("online = %d, want 1", hub.OnlineCount())
	}

	// the replaced connection is closed by the hub
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("first connection still open")
	}
}
