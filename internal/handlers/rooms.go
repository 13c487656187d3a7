// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"
)

// ListRoomsHandler returns every registered room as JSON.
func ListRoomsHandler(s *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.authenticate(r); !ok {
			http.Error(w, "missing or invalid auth_token", http.StatusUnauthorized)
			return
		}

		rooms := s.Registry.ListRooms()
		out := make([]RoomSummary, 0, len(rooms))
		for _, rm := range rooms {
			out = append(out, SummarizeRoom(rm))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// GetRoomHandler returns one room by the {id} path value.
func GetRoomHandler(s *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.authenticate(r); !ok {
			http.Error(w, "missing or invalid auth_token", http.StatusUnauthorized)
			return
		}

		rm, ok := s.Registry.GetRoom(r.PathValue("id"))
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SummarizeRoom(rm))
	}
}
