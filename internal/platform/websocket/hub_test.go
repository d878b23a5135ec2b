package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(role, department string) *Client {
	return &Client{
		ID:           "client-" + role + "-" + department,
		UserID:       "user-1",
		Name:         "Test " + role,
		Role:         role,
		DepartmentID: department,
		Send:         make(chan []byte, 16),
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected message: %s", data)
	default:
	}
}

func TestClientRooms(t *testing.T) {
	c := newTestClient("doctor", "cardio")
	rooms := c.Rooms()

	want := map[string]bool{
		RoomAuthenticated:       true,
		RoleRoom("doctor"):      true,
		DepartmentRoom("cardio"): true,
	}
	if len(rooms) != len(want) {
		t.Fatalf("expected %d rooms, got %v", len(want), rooms)
	}
	for _, r := range rooms {
		if !want[r] {
			t.Errorf("unexpected room %q", r)
		}
	}

	// no department -> no department room
	c = newTestClient("nurse", "")
	if len(c.Rooms()) != 2 {
		t.Errorf("expected 2 rooms without department, got %v", c.Rooms())
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	c := newTestClient("doctor", "cardio")

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.RoomCount(RoleRoom("doctor")) != 1 {
		t.Errorf("expected 1 doctor, got %d", hub.RoomCount(RoleRoom("doctor")))
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.RoomCount(RoleRoom("doctor")) != 0 {
		t.Errorf("expected empty doctor room, got %d", hub.RoomCount(RoleRoom("doctor")))
	}

	// Send channel closed on unregister
	if _, open := <-c.Send; open {
		t.Error("expected Send channel to be closed")
	}

	// double unregister must not panic
	hub.Unregister(c)
}

func TestHub_BroadcastToRoles(t *testing.T) {
	hub := NewHub()
	doctor := newTestClient("doctor", "")
	nurse := newTestClient("nurse", "")
	receptionist := newTestClient("receptionist", "")
	hub.Register(doctor)
	hub.Register(nurse)
	hub.Register(receptionist)

	hub.Broadcast(StaffRooms(), Event{Type: "ot:update", Timestamp: time.Now()})

	if ev := receive(t, doctor); ev.Type != "ot:update" {
		t.Errorf("doctor: expected ot:update, got %s", ev.Type)
	}
	if ev := receive(t, nurse); ev.Type != "ot:update" {
		t.Errorf("nurse: expected ot:update, got %s", ev.Type)
	}
	assertEmpty(t, receptionist)
}

func TestHub_BroadcastDeduplicates(t *testing.T) {
	hub := NewHub()
	doctor := newTestClient("doctor", "cardio")
	hub.Register(doctor)

	// Client is in both target rooms; it must receive the event once.
	hub.Broadcast([]string{RoleRoom("doctor"), DepartmentRoom("cardio")},
		Event{Type: "ot:update", Timestamp: time.Now()})

	receive(t, doctor)
	assertEmpty(t, doctor)
}

func TestHub_BroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub()
	slow := newTestClient("doctor", "")
	slow.Send = make(chan []byte) // unbuffered and never drained
	hub.Register(slow)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(StaffRooms(), Event{Type: "ot:update", Timestamp: time.Now()})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}

func TestHub_BroadcastAll(t *testing.T) {
	hub := NewHub()
	doctor := newTestClient("doctor", "")
	receptionist := newTestClient("receptionist", "")
	hub.Register(doctor)
	hub.Register(receptionist)

	hub.BroadcastAll(Event{Type: "emergency:alert", Timestamp: time.Now()})

	receive(t, doctor)
	receive(t, receptionist)
}

func TestProcessMessage_EmergencyAlert(t *testing.T) {
	hub := NewHub()
	sender := newTestClient("doctor", "")
	receptionist := newTestClient("receptionist", "")
	hub.Register(sender)
	hub.Register(receptionist)

	hub.ProcessMessage(sender, ClientMessage{
		Event: "emergency:alert",
		Data:  json.RawMessage(`{"message":"code blue"}`),
	})

	ev := receive(t, receptionist)
	if ev.Type != "emergency:alert" {
		t.Errorf("expected emergency:alert, got %s", ev.Type)
	}
	if ev.Sender != sender.Name {
		t.Errorf("expected sender %q, got %q", sender.Name, ev.Sender)
	}
}

func TestProcessMessage_DepartmentMessage(t *testing.T) {
	hub := NewHub()
	sender := newTestClient("doctor", "cardio")
	sameDept := newTestClient("nurse", "cardio")
	otherDept := newTestClient("nurse", "ortho")
	hub.Register(sender)
	hub.Register(sameDept)
	hub.Register(otherDept)

	hub.ProcessMessage(sender, ClientMessage{
		Event: "department:message",
		Data:  json.RawMessage(`{"department_id":"cardio","message":"rounds at 9"}`),
	})

	ev := receive(t, sameDept)
	if ev.Type != "department:message" {
		t.Errorf("expected department:message, got %s", ev.Type)
	}
	assertEmpty(t, otherDept)
}

func TestProcessMessage_OTStatusToStaffOnly(t *testing.T) {
	hub := NewHub()
	sender := newTestClient("nurse", "")
	admin := newTestClient("admin", "")
	receptionist := newTestClient("receptionist", "")
	hub.Register(sender)
	hub.Register(admin)
	hub.Register(receptionist)

	hub.ProcessMessage(sender, ClientMessage{
		Event: "ot:status",
		Data:  json.RawMessage(`{"ot_number":"OT-1","status":"cleaning"}`),
	})

	receive(t, admin)
	assertEmpty(t, receptionist)
}

// fakeConn scripts inbound frames and records outbound ones.
type fakeConn struct {
	mu       sync.Mutex
	inbound  [][]byte
	outbound [][]byte
	closed   bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return 0, nil, errConnClosed
	}
	msg := f.inbound[0]
	f.inbound = f.inbound[1:]
	return 1, msg, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbound = append(f.outbound, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var errConnClosed = errors.New("connection closed")

func TestReadPump_RelaysAndUnregisters(t *testing.T) {
	hub := NewHub()
	handler := NewHandler(hub, nil, zerolog.Nop())

	listener := newTestClient("nurse", "")
	hub.Register(listener)

	conn := &fakeConn{inbound: [][]byte{
		[]byte(`not json`),
		[]byte(`{"event":"ot:status","data":{"ot_number":"OT-1"}}`),
	}}
	sender := newTestClient("doctor", "")
	sender.conn = conn
	hub.Register(sender)

	handler.readPump(sender)

	// Malformed frame ignored, valid frame relayed to staff rooms.
	ev := receive(t, listener)
	if ev.Type != "ot:status" {
		t.Errorf("expected ot:status, got %s", ev.Type)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected sender unregistered after pump exit, got %d clients", hub.ClientCount())
	}
	if !conn.closed {
		t.Error("expected connection closed after pump exit")
	}
}

func TestWritePump_DrainsSendChannel(t *testing.T) {
	handler := NewHandler(NewHub(), nil, zerolog.Nop())

	conn := &fakeConn{}
	c := newTestClient("doctor", "")
	c.conn = conn
	c.Send <- []byte(`one`)
	c.Send <- []byte(`two`)
	close(c.Send)

	handler.writePump(c)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.outbound) != 2 {
		t.Fatalf("expected 2 frames written, got %d", len(conn.outbound))
	}
	if string(conn.outbound[0]) != "one" || string(conn.outbound[1]) != "two" {
		t.Errorf("unexpected frames: %q", conn.outbound)
	}
}

func TestProcessMessage_UnknownEventDropped(t *testing.T) {
	hub := NewHub()
	sender := newTestClient("doctor", "")
	other := newTestClient("nurse", "")
	hub.Register(sender)
	hub.Register(other)

	hub.ProcessMessage(sender, ClientMessage{Event: "shutdown:everything"})

	assertEmpty(t, other)
}
