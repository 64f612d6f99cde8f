package meet

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"classboard/pkg/domain"
)

type wsEvent struct {
	Event string `json:"event"`
	Data  struct {
		ClassroomID string `json:"classroomId"`
		Text        string `json:"text"`
		From        string `json:"from"`
		Active      bool   `json:"active"`
		RoomID      string `json:"roomId"`
	} `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func join(t *testing.T, conn *websocket.Conn, classroomID string) {
	t.Helper()
	msg := map[string]any{"event": "join:classroom", "data": map[string]string{"classroomId": classroomID}}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt wsEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return evt
}

func TestHubRelaysCaptionsToClassroomChannel(t *testing.T) {
	captions := NewCaptionStore()
	hub := NewHub(captions)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	sender := dial(t, srv)
	listener := dial(t, srv)
	outsider := dial(t, srv)

	join(t, sender, "c1")
	join(t, listener, "c1")
	join(t, outsider, "c2")

	// Joins are processed asynchronously by each client's read loop.
	waitForRoom(t, hub, "c1", 2)

	err := sender.WriteJSON(map[string]any{
		"event": "meet:caption",
		"data":  map[string]string{"classroomId": "c1", "text": "hello class", "from": "teacher"},
	})
	if err != nil {
		t.Fatalf("send caption: %v", err)
	}

	evt := readEvent(t, listener)
	if evt.Event != "meet:caption" || evt.Data.Text != "hello class" || evt.Data.From != "teacher" {
		t.Fatalf("listener got %+v", evt)
	}

	_ = outsider.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray wsEvent
	if err := outsider.ReadJSON(&stray); err == nil {
		t.Fatalf("outsider should not receive c1 captions, got %+v", stray)
	}

	if got := captions.Transcript("c1"); got != "hello class" {
		t.Fatalf("Transcript = %q", got)
	}
}

func TestHubBroadcastsMeetStatus(t *testing.T) {
	hub := NewHub(NewCaptionStore())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	listener := dial(t, srv)
	join(t, listener, "c1")
	waitForRoom(t, hub, "c1", 1)

	hub.BroadcastStatus(domain.MeetStatus{ClassroomID: "c1", Active: true, RoomID: "room-9"})

	evt := readEvent(t, listener)
	if evt.Event != "meet:status" || !evt.Data.Active || evt.Data.RoomID != "room-9" {
		t.Fatalf("got %+v", evt)
	}
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	hub := NewHub(NewCaptionStore())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	listener := dial(t, srv)
	join(t, listener, "c1")
	waitForRoom(t, hub, "c1", 1)

	msg := map[string]any{"event": "leave:classroom", "data": map[string]string{"classroomId": "c1"}}
	if err := listener.WriteJSON(msg); err != nil {
		t.Fatalf("leave: %v", err)
	}
	waitForRoom(t, hub, "c1", 0)

	hub.BroadcastStatus(domain.MeetStatus{ClassroomID: "c1", Active: true})
	_ = listener.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray wsEvent
	if err := listener.ReadJSON(&stray); err == nil {
		t.Fatalf("listener should have left the channel, got %+v", stray)
	}
}

func waitForRoom(t *testing.T, hub *Hub, classroomID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		got := len(hub.rooms[classroomID])
		hub.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d subscribers", classroomID, want)
}
