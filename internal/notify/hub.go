// Package notify fans user-scoped events out to that user's WebSocket connections.
package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event names pushed to clients.
const (
	TaskCreated         = "task-created"
	TaskUpdated         = "task-updated"
	TaskDeleted         = "task-deleted"
	SubjectCreated      = "subject-created"
	SubjectUpdated      = "subject-updated"
	SubjectDeleted      = "subject-deleted"
	SessionCreated      = "session-created"
	GoalCreated         = "goal-created"
	GoalUpdated         = "goal-updated"
	GoalDeleted         = "goal-deleted"
	AchievementUnlocked = "achievement-unlocked"
)

// Publisher delivers an event to every live connection of one user.
// Implementations must not block the caller.
type Publisher interface {
	Publish(userID int, event string, payload any)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(int, string, any) {}

// Message is the frame written to clients.
type Message struct {
	Event string    `json:"event"`
	Data  any       `json:"data"`
	Ts    time.Time `json:"ts"`
}

// Room is the room name for a user.
func Room(userID int) string {
	return "user_" + strconv.Itoa(userID)
}

// Connection is one WebSocket client bound to a room.
type Connection struct {
	ID   string
	Room string
	Conn *websocket.Conn
	Send chan []byte
	mu   sync.Mutex
}

type roomMessage struct {
	room string
	data []byte
}

// Hub owns all connections. Mutations go through the Run loop.
type Hub struct {
	connections map[string]*Connection
	rooms       map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan roomMessage
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan roomMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.rooms[conn.Room] == nil {
				h.rooms[conn.Room] = make(map[string]bool)
			}
			h.rooms[conn.Room][conn.ID] = true
			h.mu.Unlock()
			log.Debug().Str("conn_id", conn.ID).Str("room", conn.Room).Msg("ws connection registered")

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Connection
			for connID := range h.rooms[msg.room] {
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range slow {
				log.Warn().Str("conn_id", conn.ID).Msg("ws buffer full, dropping connection")
				h.remove(conn)
			}
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if ids := h.rooms[conn.Room]; ids != nil {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(h.rooms, conn.Room)
		}
	}
	close(conn.Send)
	log.Debug().Str("conn_id", conn.ID).Msg("ws connection unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.connections {
		close(conn.Send)
		delete(h.connections, id)
	}
	h.rooms = make(map[string]map[string]bool)
}

// NewConnection wraps ws for userID's room. It is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn, userID int) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Room: Room(userID),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

// Register adds conn to its room. It reports false once the hub has stopped.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues the event for the user's room. A full queue drops the event.
func (h *Hub) Publish(userID int, event string, payload any) {
	data, err := json.Marshal(Message{Event: event, Data: payload, Ts: time.Now().UTC()})
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("notify: marshal failed")
		return
	}

	select {
	case h.broadcast <- roomMessage{room: Room(userID), data: data}:
	default:
		log.Warn().Str("event", event).Int("user_id", userID).Msg("notify: broadcast queue full, event dropped")
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasRoom reports whether the user has at least one live connection.
func (h *Hub) HasRoom(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[Room(userID)]) > 0
}

func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}
