package realtime

import (
	"encoding/json"
	"testing"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload := <-c.Send():
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		return ev
	default:
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestBroadcastScoping(t *testing.T) {
	hub := NewHub()
	owner := hub.Register("owner-1", false)
	other := hub.Register("owner-2", false)
	staff := hub.Register("staff-1", true)

	hub.Broadcast(Event{Type: EventAppointment, Data: map[string]string{"id": "a1"}}, "owner-1")

	ev := receive(t, owner)
	if ev.Type != EventAppointment {
		t.Fatalf("unexpected event type %q", ev.Type)
	}
	receive(t, staff)

	select {
	case payload := <-other.Send():
		t.Fatalf("owner-2 should not receive owner-1's event: %s", payload)
	default:
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub()
	client := hub.Register("owner-1", false)
	if hub.Count() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.Count())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.Count() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.Count())
	}
	if _, ok := <-client.Send(); ok {
		t.Fatal("send channel should be closed")
	}

	// Broadcasting after the client left must not panic.
	hub.Broadcast(Event{Type: EventMessage, Data: nil}, "owner-1")
}

func TestSlowClientIsSkipped(t *testing.T) {
	hub := NewHub()
	client := hub.Register("owner-1", false)

	for i := 0; i < 100; i++ {
		hub.Broadcast(Event{Type: EventMessage, Data: i}, "owner-1")
	}
	// Buffer holds 32; the rest were dropped without blocking.
	if got := len(client.send); got != 32 {
		t.Fatalf("expected full buffer of 32, got %d", got)
	}
}
