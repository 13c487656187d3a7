// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/roomd/internal/auth"
	"github.com/jason-s-yu/roomd/internal/middleware"
	"github.com/jason-s-yu/roomd/internal/models"
	"github.com/jason-s-yu/roomd/internal/room"
	"github.com/sirupsen/logrus"
)

// RoomWSHandler upgrades to a WebSocket speaking the "room" subprotocol and
// runs the session until the client goes away.
func RoomWSHandler(s *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "room" {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		user, ok := s.authenticate(r)
		if !ok {
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		sess := NewSession(user, sessionBuffer, cancel, s.logger)
		s.hub.Add(sess)
		middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, user.ID, sess.ID.String())

		go s.writePump(ctx, c, sess)
		err = s.readPump(ctx, c, sess)

		s.disconnect(sess)
		middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, user.ID, sess.ID.String(), err)
	}
}

// readPump decodes client packets and dispatches them until the socket fails.
func (s *RoomServer) readPump(ctx context.Context, c *websocket.Conn, sess *Session) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			sess.WriteError("only text messages are supported")
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			sess.WriteError("Invalid JSON format")
			continue
		}
		s.handleMessage(sess, packet)
	}
}

// writePump drains the session queue onto the socket and keeps it alive with pings.
func (s *RoomServer) writePump(ctx context.Context, c *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case msg := <-sess.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warnf("failed to marshal outgoing msg for user %v: %v", sess.User.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Warnf("failed to write to websocket for user %v: %v", sess.User.ID, err)
				sess.Close()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				sess.Close()
				return
			}
		}
	}
}

// disconnect detaches the session and drops its player from their room, unless
// a newer connection of the same user has taken the seat over.
func (s *RoomServer) disconnect(sess *Session) {
	sess.Close()
	s.hub.Remove(sess)

	unlock := s.users.lock(sess.User.ID)
	defer unlock()
	rm, ok := s.Registry.GetRoomByUserID(sess.User.ID)
	if !ok {
		return
	}
	if p := rm.Players[sess.User.ID]; p.ConnectionID != sess.ID {
		return
	}
	s.Registry.RemovePlayerFromRoom(rm.ID, sess.User.ID)
}

// handleMessage interprets the "type" field of a client packet. Packets of one
// user are handled one at a time, whichever socket they arrive on.
func (s *RoomServer) handleMessage(sess *Session, packet map[string]interface{}) {
	unlock := s.users.lock(sess.User.ID)
	defer unlock()

	action, _ := packet["type"].(string)
	log := s.logger.WithFields(logrus.Fields{"user": sess.User.ID, "action": action})

	switch action {
	case "create_room":
		s.createRoom(sess, packet, log)
	case "join_room":
		s.joinRoom(sess, packet, log)
	case "leave_room":
		rm, ok := s.currentRoom(sess)
		if !ok {
			return
		}
		s.Registry.RemovePlayerFromRoom(rm.ID, sess.User.ID)
		sess.WriteOK(action, nil)
	case "ready", "cancel_ready":
		rm, ok := s.currentRoom(sess)
		if !ok {
			return
		}
		s.Registry.SetPlayerReady(rm.ID, sess.User.ID, action == "ready")
		sess.WriteOK(action, nil)
	case "lock_room":
		locked, ok := packet["locked"].(bool)
		if !ok {
			sess.WriteError("lock_room requires a boolean 'locked'")
			return
		}
		if rm, ok := s.ownedRoom(sess); ok {
			s.Registry.SetRoomLocked(rm.ID, locked)
			sess.WriteOK(action, nil)
		}
	case "cycle_room":
		cycle, ok := packet["cycle"].(bool)
		if !ok {
			sess.WriteError("cycle_room requires a boolean 'cycle'")
			return
		}
		if rm, ok := s.ownedRoom(sess); ok {
			s.Registry.SetRoomCycle(rm.ID, cycle)
			sess.WriteOK(action, nil)
		}
	case "transfer_owner":
		target, ok := intField(packet, "userId")
		if !ok {
			sess.WriteError("transfer_owner requires a numeric 'userId'")
			return
		}
		rm, ok := s.ownedRoom(sess)
		if !ok {
			return
		}
		if !s.Registry.ChangeRoomOwner(rm.ID, target) {
			sess.WriteError("target player is not in the room")
			return
		}
		sess.WriteOK(action, nil)
	case "set_state":
		raw, err := json.Marshal(packet["state"])
		var state models.RoomState
		if err != nil || packet["state"] == nil || json.Unmarshal(raw, &state) != nil || state.Kind == "" {
			sess.WriteError("set_state requires a 'state' object with a 'kind'")
			return
		}
		if rm, ok := s.ownedRoom(sess); ok {
			s.Registry.SetRoomState(rm.ID, state)
			sess.WriteOK(action, nil)
		}
	case "get_room":
		if rm, ok := s.currentRoom(sess); ok {
			sess.WriteOK(action, map[string]interface{}{"room": SummarizeRoom(rm)})
		}
	default:
		log.Debug("unknown message type")
		sess.WriteError("Unknown message type")
	}
}

func (s *RoomServer) createRoom(sess *Session, packet map[string]interface{}, log logrus.FieldLogger) {
	id, _ := packet["id"].(string)
	if id == "" {
		sess.WriteError("create_room requires an 'id'")
		return
	}
	if _, inRoom := s.Registry.GetRoomByUserID(sess.User.ID); inRoom {
		sess.WriteError("already in a room")
		return
	}
	name, _ := packet["name"].(string)
	if name == "" {
		name = id
	}

	opts := []room.CreateOption{}
	if n, ok := intField(packet, "maxPlayers"); ok {
		if n < 1 {
			sess.WriteError("maxPlayers must be positive")
			return
		}
		opts = append(opts, room.WithMaxPlayers(int(n)))
	}
	if password, _ := packet["password"].(string); password != "" {
		hash, err := auth.HashRoomPassword(password)
		if err != nil {
			log.WithError(err).Error("hash room password")
			sess.WriteError("could not create room")
			return
		}
		opts = append(opts, room.WithPassword(hash))
	}

	rm, err := s.Registry.CreateRoom(id, name, sess.User.ID, sess.User, sess.ID, opts...)
	if errors.Is(err, room.ErrRoomExists) {
		sess.WriteError("room already exists")
		return
	}
	if err != nil {
		log.WithError(err).Error("create room")
		sess.WriteError("could not create room")
		return
	}
	sess.WriteOK("create_room", map[string]interface{}{"room": SummarizeRoom(rm)})
}

func (s *RoomServer) joinRoom(sess *Session, packet map[string]interface{}, log logrus.FieldLogger) {
	id, _ := packet["id"].(string)
	target, ok := s.Registry.GetRoom(id)
	if !ok {
		sess.WriteError(room.JoinRoomNotFound.String())
		return
	}
	if current, inRoom := s.Registry.GetRoomByUserID(sess.User.ID); inRoom && current.ID != id {
		sess.WriteError("already in a room")
		return
	}

	password, _ := packet["password"].(string)
	match, err := auth.CheckRoomPassword(password, target.Password)
	if err != nil {
		log.WithError(err).Error("check room password")
		sess.WriteError("could not join room")
		return
	}
	if !match {
		sess.WriteError("wrong room password")
		return
	}

	if res := s.Registry.AdmitPlayer(id, sess.User.ID, sess.User, sess.ID); res != room.JoinOK {
		sess.WriteError(res.String())
		return
	}
	rm, ok := s.Registry.GetRoom(id)
	if !ok {
		sess.WriteError(room.JoinRoomNotFound.String())
		return
	}
	sess.WriteOK("join_room", map[string]interface{}{"room": SummarizeRoom(rm)})
}

// currentRoom finds the session user's room, replying with an error when there is none.
func (s *RoomServer) currentRoom(sess *Session) (*room.Room, bool) {
	rm, ok := s.Registry.GetRoomByUserID(sess.User.ID)
	if !ok {
		sess.WriteError("not in a room")
	}
	return rm, ok
}

// ownedRoom is currentRoom restricted to the room owner.
func (s *RoomServer) ownedRoom(sess *Session) (*room.Room, bool) {
	rm, ok := s.currentRoom(sess)
	if !ok {
		return nil, false
	}
	if !s.Registry.IsRoomOwner(rm.ID, sess.User.ID) {
		sess.WriteError("only the room owner can do that")
		return nil, false
	}
	return rm, true
}

// intField reads a JSON number that must be a whole int32.
func intField(packet map[string]interface{}, key string) (int32, bool) {
	f, ok := packet[key].(float64)
	if !ok || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int32(f), true
}
