package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"

	"chat-backend/internal/models"
	"chat-backend/internal/observability"
)

// Subscriber is a live connection that can receive room broadcasts.
type Subscriber interface {
	ID() string
	Deliver(payload []byte) error
}

// Hub maintains room membership for live connections.
// Rooms exist only while they have members.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Subscriber
	memberships map[string]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[string]Subscriber),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join adds sub to room. Joining twice is a noop; an empty room or nil subscriber is ignored.
// It reports whether membership changed.
func (h *Hub) Join(sub Subscriber, room string) bool {
	if sub == nil || room == "" {
		return false
	}
	id := sub.ID()

	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	if _, joined := members[id]; joined {
		return false
	}
	members[id] = sub

	joinedRooms, ok := h.memberships[id]
	if !ok {
		joinedRooms = make(map[string]struct{})
		h.memberships[id] = joinedRooms
	}
	joinedRooms[room] = struct{}{}
	return true
}

// LeaveAll removes sub from every room it joined and returns those rooms.
func (h *Hub) LeaveAll(sub Subscriber) []string {
	if sub == nil {
		return nil
	}
	id := sub.ID()

	h.mu.Lock()
	defer h.mu.Unlock()
	joinedRooms := h.memberships[id]
	left := make([]string, 0, len(joinedRooms))
	for room := range joinedRooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		left = append(left, room)
	}
	delete(h.memberships, id)
	sort.Strings(left)
	return left
}

// Broadcast delivers payload to the members of room at the time of the call and returns
// how many accepted it. Delivery happens outside the lock.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.rooms[room]))
	for _, sub := range h.rooms[room] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if err := sub.Deliver(payload); err != nil {
			h.reportDeliveryError(room, sub, err)
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastMessage sends a message event to all connections in a room.
func (h *Hub) BroadcastMessage(room string, msg models.OutboundMessage) int {
	payload, err := json.Marshal(models.RoomEvent{Event: EventMessage, Data: msg})
	if err != nil {
		log.Printf("encode message event room=%s: %v", room, err)
		return 0
	}
	return h.Broadcast(room, payload)
}

// Rooms returns the rooms a subscriber has joined, sorted.
func (h *Hub) Rooms(subID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.memberships[subID]))
	for room := range h.memberships[subID] {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Members returns the number of connections in a room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) reportDeliveryError(room string, sub Subscriber, err error) {
	switch {
	case errors.Is(err, ErrClientClosed):
		// disconnecting; LeaveAll will follow
	case errors.Is(err, ErrSendBufferFull):
		log.Printf("websocket send buffer full conn_id=%s room=%s, frame dropped", sub.ID(), room)
		observability.IncWSEvent("ws_drop")
	default:
		log.Printf("websocket deliver error conn_id=%s room=%s: %v", sub.ID(), room, err)
		observability.IncWSEvent("ws_error")
	}
}
