package handlers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/roomd/internal/room"
)

// roomLookup is the part of the registry the hub reads.
type roomLookup interface {
	GetRoom(id string) (*room.Room, bool)
}

// Hub pushes registry events to the sessions of the affected room's members.
// It is installed as a registry EventSink.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	rooms    roomLookup
}

// NewHub returns a hub with no sessions. SetRooms must be called before events flow.
func NewHub() *Hub {
	return &Hub{sessions: make(map[uuid.UUID]*Session)}
}

// SetRooms attaches the registry the hub resolves room membership from.
func (h *Hub) SetRooms(rooms roomLookup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = rooms
}

func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.ID)
}

// Len returns the number of attached sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Emit implements room.EventSink. Current members receive the event, and so
// does the subject of a player_left event, who is no longer a member.
// Recipients are resolved from the room as it is now, which may already
// differ from the room the event was raised for.
func (h *Hub) Emit(ev room.Event) {
	h.mu.RLock()
	rooms := h.rooms
	h.mu.RUnlock()
	if rooms == nil {
		return
	}

	targets := make(map[uuid.UUID]struct{})
	if r, ok := rooms.GetRoom(ev.RoomID); ok {
		for _, p := range r.Players {
			targets[p.ConnectionID] = struct{}{}
		}
	}

	msg := map[string]interface{}{
		"type":    "room_event",
		"event":   ev.Type,
		"room_id": ev.RoomID,
		"players": ev.Players,
	}
	if ev.UserID != 0 {
		msg["user_id"] = ev.UserID
	}
	if ev.Value != nil {
		msg["value"] = ev.Value
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range targets {
		if s, ok := h.sessions[id]; ok {
			s.Write(msg)
		}
	}
	if ev.Type == room.EventPlayerLeft {
		for _, s := range h.sessions {
			if s.User.ID == ev.UserID {
				if _, sent := targets[s.ID]; !sent {
					s.Write(msg)
				}
			}
		}
	}
}
