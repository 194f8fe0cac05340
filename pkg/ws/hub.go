package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub tracks live connections and their room membership, and fans events
// out to every member of a room. Rooms are keyed by the registry's room id,
// connections by the handle assigned at upgrade time.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection
	rooms       map[string][]uuid.UUID
	logger      zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		rooms:       make(map[string][]uuid.UUID),
		logger:      logger,
	}
}

// Register adds a connection under its handle.
func (h *Hub) Register(connID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[connID]; exists {
		old.Close()
	}
	h.connections[connID] = conn
}

// Unregister closes and removes a connection and drops it from any room.
func (h *Hub) Unregister(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[connID]; exists {
		conn.Close()
		delete(h.connections, connID)
	}

	for roomID, members := range h.rooms {
		for i, id := range members {
			if id == connID {
				h.rooms[roomID] = append(members[:i], members[i+1:]...)
				break
			}
		}
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Join adds a connection to a room's delivery group. Joining twice is a
// no-op; membership must be established before the first Broadcast so no
// member misses the pairing events.
func (h *Hub) Join(roomID string, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range h.rooms[roomID] {
		if id == connID {
			return
		}
	}
	h.rooms[roomID] = append(h.rooms[roomID], connID)
}

// Leave removes a connection from a room.
func (h *Hub) Leave(roomID string, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[roomID]
	for i, id := range members {
		if id == connID {
			h.rooms[roomID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

// Members returns a snapshot of the room's connection handles.
func (h *Hub) Members(roomID string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	out := make([]uuid.UUID, len(members))
	copy(out, members)
	return out
}

// Broadcast queues frame on every member's outbound queue, exactly once
// per member. Successive Broadcast calls from one goroutine reach each
// member in call order: enqueueing happens under the hub lock and each
// connection drains its queue with a single writer.
func (h *Hub) Broadcast(roomID string, frame any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var firstErr error
	for _, connID := range h.rooms[roomID] {
		conn, exists := h.connections[connID]
		if !exists {
			continue
		}
		if err := conn.Send(frame); err != nil && firstErr == nil {
			firstErr = err
			h.logger.Warn().Err(err).Str("room_id", roomID).Msg("broadcast send failed")
		}
	}
	return firstErr
}

// SendTo delivers a frame to a single connection.
func (h *Hub) SendTo(connID uuid.UUID, frame any) error {
	h.mu.RLock()
	conn, exists := h.connections[connID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(frame)
}
