// internal/handlers/room_server.go
package handlers

import (
	"net/http"
	"time"

	"github.com/jason-s-yu/roomd/internal/auth"
	"github.com/jason-s-yu/roomd/internal/middleware"
	"github.com/jason-s-yu/roomd/internal/models"
	"github.com/jason-s-yu/roomd/internal/room"
	"github.com/sirupsen/logrus"
)

// sessionBuffer is the outbound queue size of each WebSocket session.
const sessionBuffer = 32

// RoomServer hosts the room registry behind HTTP and WebSocket endpoints.
type RoomServer struct {
	Registry *room.Registry
	Sessions *auth.Sessions

	hub    *Hub
	users  *userLocks
	logger logrus.FieldLogger
}

// NewRoomServer builds a registry whose events go to the session hub, a log
// sink, and any extra sinks (Redis, archive).
func NewRoomServer(logger logrus.FieldLogger, sessions *auth.Sessions, extra ...room.EventSink) *RoomServer {
	hub := NewHub()
	sinks := room.MultiSink{hub, room.NewLogSink(logger)}
	sinks = append(sinks, extra...)

	reg := room.NewRegistry(room.WithEventSink(sinks))
	hub.SetRooms(reg)

	return &RoomServer{
		Registry: reg,
		Sessions: sessions,
		hub:      hub,
		users:    newUserLocks(),
		logger:   logger,
	}
}

// Routes returns the HTTP handler serving every endpoint, wrapped in request logging.
func (s *RoomServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", PingHandler)
	mux.HandleFunc("GET /rooms", ListRoomsHandler(s))
	mux.HandleFunc("GET /rooms/{id}", GetRoomHandler(s))
	mux.HandleFunc("GET /ws", RoomWSHandler(s))
	return middleware.LogMiddleware(s.logger)(mux)
}

// PingHandler answers liveness probes.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// PlayerSummary is the public view of a room member.
type PlayerSummary struct {
	ID      int32  `json:"id"`
	Name    string `json:"name"`
	IsReady bool   `json:"isReady"`
}

// RoomSummary is the public view of a room. Connection ids and the password
// hash are left out.
type RoomSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	OwnerID     int32            `json:"ownerId"`
	Players     []PlayerSummary  `json:"players"`
	MaxPlayers  int              `json:"maxPlayers"`
	Locked      bool             `json:"locked"`
	Cycle       bool             `json:"cycle"`
	Live        bool             `json:"live"`
	HasPassword bool             `json:"hasPassword"`
	State       models.RoomState `json:"state"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// SummarizeRoom builds the public view of r, listing players in membership order.
func SummarizeRoom(r *room.Room) RoomSummary {
	sum := RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		OwnerID:     r.OwnerID,
		Players:     make([]PlayerSummary, 0, len(r.Players)),
		MaxPlayers:  r.MaxPlayers,
		Locked:      r.Locked,
		Cycle:       r.Cycle,
		Live:        r.Live,
		HasPassword: r.HasPassword(),
		State:       r.State,
		CreatedAt:   r.CreatedAt,
	}
	for _, id := range r.PlayerIDs() {
		p := r.Players[id]
		sum.Players = append(sum.Players, PlayerSummary{ID: id, Name: p.User.Name, IsReady: p.IsReady})
	}
	return sum
}
