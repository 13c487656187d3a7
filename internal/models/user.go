package models

// UserInfo is the identity/profile payload a player carries into a room.
// The room registry stores it as-is and never inspects it.
type UserInfo struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}
