package models

import "encoding/json"

// StateSelection is the kind every room starts in, before a chart is picked.
const StateSelection = "selection"

// RoomState is produced by the game-state protocol and passed through the room
// registry untouched. Data carries whatever the protocol needs for Kind.
type RoomState struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SelectionState returns the canonical initial state of a new room.
func SelectionState() RoomState {
	return RoomState{Kind: StateSelection}
}

// Clone returns a copy of s that shares no bytes with it.
func (s RoomState) Clone() RoomState {
	if s.Data != nil {
		s.Data = append(json.RawMessage(nil), s.Data...)
	}
	return s
}
