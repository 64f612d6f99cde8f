package meet

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classboard/pkg/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 10
	sendBuffer     = 32
)

// Hub relays live-session events between clients subscribed to classroom
// channels and appends caption traffic to the transcript buffer.
type Hub struct {
	captions *CaptionStore
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan envelope
	rooms map[string]struct{}
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type inboundEvent struct {
	Event string `json:"event"`
	Data  struct {
		ClassroomID string `json:"classroomId"`
		Text        string `json:"text"`
		From        string `json:"from"`
	} `json:"data"`
}

func NewHub(captions *CaptionStore) *Hub {
	return &Hub{
		captions: captions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and runs the client's event loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan envelope, sendBuffer),
		rooms: make(map[string]struct{}),
	}
	go c.writeLoop()
	c.readLoop()
}

// BroadcastStatus pushes a meet:status event to every subscriber of the
// classroom's channel.
func (h *Hub) BroadcastStatus(status domain.MeetStatus) {
	h.broadcast(status.ClassroomID, envelope{Event: "meet:status", Data: status})
}

func (h *Hub) broadcast(classroomID string, msg envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[classroomID] {
		select {
		case c.send <- msg:
		default:
			// Slow consumer; drop the event rather than block the room.
		}
	}
}

func (h *Hub) join(c *client, classroomID string) {
	if classroomID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[classroomID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[classroomID] = room
	}
	room[c] = struct{}{}
	c.rooms[classroomID] = struct{}{}
}

func (h *Hub) leave(c *client, classroomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[classroomID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, classroomID)
		}
	}
	delete(c.rooms, classroomID)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for classroomID := range c.rooms {
		if room, ok := h.rooms[classroomID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, classroomID)
			}
		}
	}
	close(c.send)
}

func (c *client) readLoop() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var evt inboundEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}
		switch evt.Event {
		case "join:classroom":
			c.hub.join(c, evt.Data.ClassroomID)
		case "leave:classroom":
			c.hub.leave(c, evt.Data.ClassroomID)
		case "meet:caption":
			c.hub.relayCaption(evt.Data.ClassroomID, evt.Data.Text, evt.Data.From)
		}
	}
}

// relayCaption stores the caption and rebroadcasts it verbatim, tagged with
// the sender label and a server timestamp.
func (h *Hub) relayCaption(classroomID, text, from string) {
	if classroomID == "" || text == "" {
		return
	}
	h.captions.Append(classroomID, text)
	if from == "" {
		from = "participant"
	}
	h.broadcast(classroomID, envelope{Event: "meet:caption", Data: domain.Caption{
		ClassroomID: classroomID,
		Text:        text,
		From:        from,
		At:          time.Now().UTC(),
	}})
}

func (c *client) writeLoop() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second))
}
