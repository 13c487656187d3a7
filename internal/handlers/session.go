// internal/handlers/session.go
package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/roomd/internal/models"
	"github.com/sirupsen/logrus"
)

// Session is one player's live WebSocket connection. Its ID is the
// connection id stored in the player's room membership record.
type Session struct {
	ID      uuid.UUID
	User    models.UserInfo
	Cancel  context.CancelFunc
	OutChan chan map[string]interface{}

	logger    logrus.FieldLogger
	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession builds a session with a fresh connection id and an outbound queue of size buffer.
func NewSession(user models.UserInfo, buffer int, cancel context.CancelFunc, logger logrus.FieldLogger) *Session {
	return &Session{
		ID:      uuid.New(),
		User:    user,
		Cancel:  cancel,
		OutChan: make(chan map[string]interface{}, buffer),
		logger:  logger,
		closed:  make(chan struct{}),
	}
}

// Write queues msg without blocking. Messages to a full or closed session are dropped.
func (s *Session) Write(msg map[string]interface{}) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		s.logger.WithFields(logrus.Fields{
			"user": s.User.ID,
			"conn": s.ID,
		}).Warnf("outbound queue full, dropped message type '%s'", msgType)
	}
}

// WriteError sends {"type": "error", "message": msg}.
func (s *Session) WriteError(msg string) {
	s.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// WriteOK acknowledges a request. extra fields are merged into the reply.
func (s *Session) WriteOK(forType string, extra map[string]interface{}) {
	msg := map[string]interface{}{
		"type": "ok",
		"for":  forType,
	}
	for k, v := range extra {
		msg[k] = v
	}
	s.Write(msg)
}

// Close stops delivery to the session and cancels its context.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.Cancel != nil {
			s.Cancel()
		}
	})
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}
