// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room session handler.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected without the room subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // Missing, invalid or expired auth token.
)
