// internal/room/room.go
package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/roomd/internal/models"
)

// DefaultMaxPlayers is the capacity used when a room is created without one.
const DefaultMaxPlayers = 8

// PlayerInfo is one player's membership record inside a room.
type PlayerInfo struct {
	User         models.UserInfo `json:"user"`
	ConnectionID uuid.UUID       `json:"connectionId"` // transport session the player is attached through
	IsReady      bool            `json:"isReady"`
}

// Room is a capacity-bounded group of players sharing a session.
//
// Values handed out by the Registry are snapshots: changing their fields has no
// effect on the registry. All mutation goes through Registry methods.
type Room struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	OwnerID    int32                 `json:"ownerId"`
	Players    map[int32]*PlayerInfo `json:"players"`
	MaxPlayers int                   `json:"maxPlayers"`
	Password   string                `json:"-"`
	State      models.RoomState      `json:"state"`
	Locked     bool                  `json:"locked"`
	Cycle      bool                  `json:"cycle"`
	Live       bool                  `json:"live"`
	CreatedAt  time.Time             `json:"createdAt"`

	// order lists member ids in the order they were first admitted.
	order []int32
}

// PlayerIDs returns member ids in membership order.
func (r *Room) PlayerIDs() []int32 {
	ids := make([]int32, len(r.order))
	copy(ids, r.order)
	return ids
}

// HasPassword reports whether the room was created with a password.
func (r *Room) HasPassword() bool {
	return r.Password != ""
}

// clone deep-copies the room so callers can't reach the registry's maps or state bytes.
func (r *Room) clone() *Room {
	c := *r
	c.State = r.State.Clone()
	c.Players = make(map[int32]*PlayerInfo, len(r.Players))
	for id, p := range r.Players {
		cp := *p
		c.Players[id] = &cp
	}
	c.order = make([]int32, len(r.order))
	copy(c.order, r.order)
	return &c
}

func (r *Room) addMember(userID int32, p *PlayerInfo) {
	if _, exists := r.Players[userID]; !exists {
		r.order = append(r.order, userID)
	}
	r.Players[userID] = p
}

func (r *Room) removeMember(userID int32) {
	delete(r.Players, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// CreateOption customizes a room at creation time.
type CreateOption func(*Room)

// WithMaxPlayers sets the room capacity. Values below 1 keep the default.
func WithMaxPlayers(n int) CreateOption {
	return func(r *Room) {
		if n > 0 {
			r.MaxPlayers = n
		}
	}
}

// WithPassword stores an opaque password value on the room. The registry never checks it.
func WithPassword(password string) CreateOption {
	return func(r *Room) {
		r.Password = password
	}
}
