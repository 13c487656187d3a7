// internal/room/registry.go
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/roomd/internal/models"
)

// ErrRoomExists is returned by CreateRoom when the id is already registered.
var ErrRoomExists = errors.New("room already exists")

// JoinResult explains the outcome of AdmitPlayer.
type JoinResult int

const (
	JoinOK JoinResult = iota
	JoinRoomNotFound
	JoinRoomFull
	JoinRoomLocked
)

func (r JoinResult) String() string {
	switch r {
	case JoinOK:
		return "ok"
	case JoinRoomNotFound:
		return "room not found"
	case JoinRoomFull:
		return "room is full"
	case JoinRoomLocked:
		return "room is locked"
	}
	return fmt.Sprintf("JoinResult(%d)", int(r))
}

// Registry is the in-memory source of truth for rooms and their members.
// It is safe for concurrent use; every operation runs to completion under one lock.
//
// Missing rooms or players are reported through false/absent results, never errors.
// The only error is ErrRoomExists from CreateRoom.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	ids   []string // registration order, used for listing and user lookup

	sink EventSink
	now  func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEventSink routes mutation events to sink.
func WithEventSink(sink EventSink) RegistryOption {
	return func(r *Registry) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// WithClock overrides the time source used for CreatedAt and event timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms: make(map[string]*Room),
		sink:  discardSink{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom registers a room whose only member is its owner (not ready).
// The room starts unlocked, non-cycling, live, in the selection state.
func (reg *Registry) CreateRoom(id, name string, ownerID int32, owner models.UserInfo, connID uuid.UUID, opts ...CreateOption) (*Room, error) {
	reg.mu.Lock()
	if _, exists := reg.rooms[id]; exists {
		reg.mu.Unlock()
		return nil, fmt.Errorf("create room %q: %w", id, ErrRoomExists)
	}

	r := &Room{
		ID:         id,
		Name:       name,
		OwnerID:    ownerID,
		Players:    make(map[int32]*PlayerInfo),
		MaxPlayers: DefaultMaxPlayers,
		State:      models.SelectionState(),
		Live:       true,
		CreatedAt:  reg.now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.addMember(ownerID, &PlayerInfo{User: owner, ConnectionID: connID})

	reg.rooms[id] = r
	reg.ids = append(reg.ids, id)
	snapshot := r.clone()
	ev := reg.eventLocked(EventRoomCreated, r, ownerID, nil)
	reg.mu.Unlock()

	reg.sink.Emit(ev)
	return snapshot, nil
}

// GetRoom looks up a room by id.
func (reg *Registry) GetRoom(id string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// DeleteRoom removes a room and reports whether it existed.
func (reg *Registry) DeleteRoom(id string) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[id]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	reg.deleteLocked(id)
	ev := reg.eventLocked(EventRoomDeleted, r, 0, nil)
	reg.mu.Unlock()

	reg.sink.Emit(ev)
	return true
}

// ListRooms returns snapshots of every registered room. Callers must not rely on the order.
func (reg *Registry) ListRooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Room, 0, len(reg.ids))
	for _, id := range reg.ids {
		out = append(out, reg.rooms[id].clone())
	}
	return out
}

// Count returns the number of registered rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// AddPlayerToRoom is AdmitPlayer reduced to a success flag.
func (reg *Registry) AddPlayerToRoom(roomID string, userID int32, info models.UserInfo, connID uuid.UUID) bool {
	return reg.AdmitPlayer(roomID, userID, info, connID) == JoinOK
}

// AdmitPlayer adds userID to the room as a not-ready member.
//
// Admission is refused when the room is missing, full or locked. Admitting a
// player who is already a member replaces their info and connection and clears
// their ready flag; the capacity and lock checks still apply to that case.
func (reg *Registry) AdmitPlayer(roomID string, userID int32, info models.UserInfo, connID uuid.UUID) JoinResult {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	switch {
	case !ok:
		reg.mu.Unlock()
		return JoinRoomNotFound
	case len(r.Players) >= r.MaxPlayers:
		reg.mu.Unlock()
		return JoinRoomFull
	case r.Locked:
		reg.mu.Unlock()
		return JoinRoomLocked
	}

	r.addMember(userID, &PlayerInfo{User: info, ConnectionID: connID})
	ev := reg.eventLocked(EventPlayerJoined, r, userID, nil)
	reg.mu.Unlock()

	reg.sink.Emit(ev)
	return JoinOK
}

// RemovePlayerFromRoom drops a member. A room left without members is deleted
// in the same call. When the owner leaves, ownership passes to the first
// remaining member in membership order; no stronger succession rule is promised.
func (reg *Registry) RemovePlayerFromRoom(roomID string, userID int32) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	if _, member := r.Players[userID]; !member {
		reg.mu.Unlock()
		return false
	}

	r.removeMember(userID)
	events := []Event{reg.eventLocked(EventPlayerLeft, r, userID, nil)}
	switch {
	case len(r.Players) == 0:
		reg.deleteLocked(roomID)
		events = append(events, reg.eventLocked(EventRoomDeleted, r, 0, nil))
	case r.OwnerID == userID:
		r.OwnerID = r.order[0]
		events = append(events, reg.eventLocked(EventOwnerChanged, r, r.OwnerID, nil))
	}
	reg.mu.Unlock()

	for _, ev := range events {
		reg.sink.Emit(ev)
	}
	return true
}

// GetRoomByUserID returns the first room, in registration order, that has userID
// as a member. Keeping a player in at most one room is up to the caller.
func (reg *Registry) GetRoomByUserID(userID int32) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, id := range reg.ids {
		r := reg.rooms[id]
		if _, ok := r.Players[userID]; ok {
			return r.clone(), true
		}
	}
	return nil, false
}

// SetRoomState replaces the room state wholesale. No transition rules are checked.
// The registry keeps its own copy of state.Data.
func (reg *Registry) SetRoomState(roomID string, state models.RoomState) bool {
	state = state.Clone()
	return reg.mutate(roomID, EventStateChanged, 0, state.Kind, func(r *Room) {
		r.State = state
	})
}

// SetRoomLocked toggles admission of new players.
func (reg *Registry) SetRoomLocked(roomID string, locked bool) bool {
	return reg.mutate(roomID, EventLockChanged, 0, locked, func(r *Room) {
		r.Locked = locked
	})
}

// SetRoomCycle stores the cycle flag. The registry attaches no behaviour to it.
func (reg *Registry) SetRoomCycle(roomID string, cycle bool) bool {
	return reg.mutate(roomID, EventCycleChanged, 0, cycle, func(r *Room) {
		r.Cycle = cycle
	})
}

// SetPlayerReady sets a member's ready flag.
func (reg *Registry) SetPlayerReady(roomID string, userID int32, ready bool) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	p, ok := r.Players[userID]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	p.IsReady = ready
	ev := reg.eventLocked(EventReadyChanged, r, userID, ready)
	reg.mu.Unlock()

	reg.sink.Emit(ev)
	return true
}

// IsRoomOwner reports whether userID owns the room. Unknown rooms yield false.
func (reg *Registry) IsRoomOwner(roomID string, userID int32) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	return ok && r.OwnerID == userID
}

// ChangeRoomOwner hands ownership to newOwnerID, who must already be a member.
func (reg *Registry) ChangeRoomOwner(roomID string, newOwnerID int32) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	if _, member := r.Players[newOwnerID]; !member {
		reg.mu.Unlock()
		return false
	}
	r.OwnerID = newOwnerID
	ev := reg.eventLocked(EventOwnerChanged, r, newOwnerID, nil)
	reg.mu.Unlock()

	reg.sink.Emit(ev)
	return true
}

// CleanupEmptyRooms deletes every room with no members. Rooms are normally
// removed with their last player, so this is usually a no-op.
func (reg *Registry) CleanupEmptyRooms() {
	reg.mu.Lock()
	var events []Event
	for _, id := range append([]string(nil), reg.ids...) {
		r := reg.rooms[id]
		if len(r.Players) > 0 {
			continue
		}
		reg.deleteLocked(id)
		events = append(events, reg.eventLocked(EventRoomDeleted, r, 0, nil))
	}
	reg.mu.Unlock()

	for _, ev := range events {
		reg.sink.Emit(ev)
	}
}

// mutate applies fn to a room under the lock and emits one event.
func (reg *Registry) mutate(roomID string, typ EventType, userID int32, value interface{}, fn func(*Room)) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	fn(r)
	ev := reg.eventLocked(typ, r, userID, value)
	reg.mu.Unlock()

	reg.sink.Emit(ev)
	return true
}

// deleteLocked removes id from the map and the order slice. Assumes lock is held.
func (reg *Registry) deleteLocked(id string) {
	delete(reg.rooms, id)
	for i, v := range reg.ids {
		if v == id {
			reg.ids = append(reg.ids[:i], reg.ids[i+1:]...)
			return
		}
	}
}

// eventLocked builds an event from the current counts. Assumes lock is held.
func (reg *Registry) eventLocked(typ EventType, r *Room, userID int32, value interface{}) Event {
	return Event{
		Type:    typ,
		RoomID:  r.ID,
		UserID:  userID,
		Players: len(r.Players),
		Rooms:   len(reg.rooms),
		Value:   value,
		At:      reg.now(),
	}
}
