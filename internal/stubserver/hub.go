package stubserver

import (
	"context"
	"sync"
	"time"

	"market-chat/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one websocket connection to the stub backend.
type client struct {
	id     string
	userID int
	conn   *websocket.Conn
	send   chan events.Envelope
	mu     sync.Mutex
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan events.Envelope, 256),
	}
}

// writeLoop handles outbound envelopes and keepalive pings.
func (c *client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-c.send:
			if !ok {
				return
			}
			c.mu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.conn.WriteJSON(env)
			c.mu.Unlock()
		case <-ticker.C:
			c.mu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			c.mu.Unlock()
		}
	}
}

func (c *client) deliver(env events.Envelope) {
	select {
	case c.send <- env:
	default:
		// Queue full, envelope dropped
	}
}

// hub tracks which clients joined which per-user room and routes envelopes
// to every connection of a user.
type hub struct {
	mu    sync.RWMutex
	rooms map[int]map[*client]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[int]map[*client]struct{})}
}

func (h *hub) join(c *client, userID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.userID != 0 {
		h.removeLocked(c)
	}
	c.userID = userID
	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[*client]struct{})
	}
	h.rooms[userID][c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *hub) removeLocked(c *client) {
	if members, ok := h.rooms[c.userID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.userID)
		}
	}
}

// emitToUser routes an envelope to every connection in the user's room.
func (h *hub) emitToUser(userID int, env events.Envelope) {
	h.mu.RLock()
	for c := range h.rooms[userID] {
		c.deliver(env)
	}
	h.mu.RUnlock()
}
