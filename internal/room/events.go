package room

import (
	"time"

	"github.com/sirupsen/logrus"
)

// EventType names a registry mutation.
type EventType string

const (
	EventRoomCreated  EventType = "room_created"
	EventRoomDeleted  EventType = "room_deleted"
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventOwnerChanged EventType = "owner_changed"
	EventStateChanged EventType = "state_changed"
	EventLockChanged  EventType = "lock_changed"
	EventCycleChanged EventType = "cycle_changed"
	EventReadyChanged EventType = "ready_changed"
)

// Event describes one completed registry mutation. Players and Rooms are the
// member and room counts after the mutation. Value carries the new flag for
// lock, cycle and ready changes and the state kind for state changes.
type Event struct {
	Type    EventType   `json:"type"`
	RoomID  string      `json:"roomId"`
	UserID  int32       `json:"userId,omitempty"` // 0 for room-level events
	Players int         `json:"players"`
	Rooms   int         `json:"rooms"`
	Value   interface{} `json:"value,omitempty"`
	At      time.Time   `json:"at"`
}

// EventSink consumes registry events. Emit is called outside the registry lock
// and must not block for long; it is best-effort and has no return value.
//
// Events of one operation arrive in order, but events of concurrent operations
// may reach a sink in a different order than the mutations were applied. Use
// At, Players and Rooms as the state at the time of the event, not as a
// sequence number.
type EventSink interface {
	Emit(ev Event)
}

// SinkFunc adapts a plain function to EventSink.
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

type discardSink struct{}

func (discardSink) Emit(Event) {}

// LogSink writes one structured log line per event.
type LogSink struct {
	Logger logrus.FieldLogger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger logrus.FieldLogger) *LogSink {
	return &LogSink{Logger: logger}
}

func (s *LogSink) Emit(ev Event) {
	fields := logrus.Fields{
		"event":   ev.Type,
		"room":    ev.RoomID,
		"players": ev.Players,
		"rooms":   ev.Rooms,
	}
	if ev.UserID != 0 {
		fields["user"] = ev.UserID
	}
	if ev.Value != nil {
		fields["value"] = ev.Value
	}
	s.Logger.WithFields(fields).Debug("room registry event")
}

// MultiSink fans each event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
