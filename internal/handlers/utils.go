package handlers

import (
	"net/http"
	"strings"

	"github.com/jason-s-yu/roomd/internal/models"
)

// authCookieName is the cookie carrying the session JWT.
const authCookieName = "auth_token"

// extractToken returns the session token from the auth cookie, falling back to
// an "Authorization: Bearer" header. Empty if neither is present.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(authCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// authenticate resolves the calling user from the request token.
func (s *RoomServer) authenticate(r *http.Request) (models.UserInfo, bool) {
	token := extractToken(r)
	if token == "" {
		return models.UserInfo{}, false
	}
	u, err := s.Sessions.Authenticate(token)
	if err != nil {
		s.logger.WithError(err).Debug("rejected session token")
		return models.UserInfo{}, false
	}
	return u, true
}
