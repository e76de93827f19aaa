package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, familyID, userID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     nil,
		send:     make(chan []byte, sendBufferSize),
		familyID: familyID,
		userID:   userID,
	}
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return &msg
	default:
		return nil
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1, 1)
	c2 := mockClient(hub, 1, 2)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastFamilyScoping(t *testing.T) {
	hub := NewHub(slog.Default())

	alice := mockClient(hub, 1, 10)
	bob := mockClient(hub, 1, 11)
	carol := mockClient(hub, 2, 20) // different family
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(carol)

	hub.BroadcastFamily(1, 0, NewMessage("auction", "created", 5, nil))

	if msg := receive(t, alice); msg == nil || msg.Type != "auction_created" {
		t.Errorf("alice: got %+v, want auction_created", msg)
	}
	if msg := receive(t, bob); msg == nil || msg.ID != 5 {
		t.Errorf("bob: got %+v, want id 5", msg)
	}
	if msg := receive(t, carol); msg != nil {
		t.Errorf("carol should not receive family 1 broadcasts, got %+v", msg)
	}
}

func TestBroadcastFamilyExcludesActor(t *testing.T) {
	hub := NewHub(slog.Default())

	actor := mockClient(hub, 1, 10)
	other := mockClient(hub, 1, 11)
	hub.Register(actor)
	hub.Register(other)

	hub.BroadcastFamily(1, 10, NewMessage("bid", "placed", 3, map[string]any{"points": float64(8)}))

	if msg := receive(t, actor); msg != nil {
		t.Errorf("actor should be excluded, got %+v", msg)
	}
	msg := receive(t, other)
	if msg == nil {
		t.Fatal("other member should receive the broadcast")
	}
	if msg.Extra["points"] != float64(8) {
		t.Errorf("extra points = %v, want 8", msg.Extra["points"])
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", int64(i), nil))
	}
	// Buffer is full — this one should be silently dropped, not block
	hub.Broadcast(NewMessage("test", "dropped", 999, nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("send buffer length = %d, want %d", got, sendBufferSize)
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("streak", "advanced", 5, nil)
	if msg.Type != "streak_advanced" {
		t.Errorf("type = %q, want %q", msg.Type, "streak_advanced")
	}
	if msg.Entity != "streak" || msg.Action != "advanced" || msg.ID != 5 {
		t.Errorf("unexpected message: %+v", msg)
	}
}
