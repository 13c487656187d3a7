// internal/database/room_event.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/roomd/internal/room"
)

const createRoomEventsTable = `
	CREATE TABLE IF NOT EXISTS room_events (
		id          BIGSERIAL PRIMARY KEY,
		event_type  TEXT        NOT NULL,
		room_id     TEXT        NOT NULL,
		user_id     INTEGER,
		players     INTEGER     NOT NULL,
		rooms       INTEGER     NOT NULL,
		value       JSONB,
		occurred_at TIMESTAMPTZ NOT NULL
	)
`

const insertRoomEvent = `
	INSERT INTO room_events (event_type, room_id, user_id, players, rooms, value, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Execer is the subset of pgxpool.Pool the archive needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EventArchive appends registry events to the room_events table. It is an
// audit trail only; rooms are never reloaded from it.
type EventArchive struct {
	db Execer
}

// NewEventArchive wraps db.
func NewEventArchive(db Execer) *EventArchive {
	return &EventArchive{db: db}
}

// EnsureSchema creates the room_events table if needed.
func (a *EventArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, createRoomEventsTable); err != nil {
		return fmt.Errorf("create room_events: %w", err)
	}
	return nil
}

// Insert writes one event row. Meant to be wrapped in a room.AsyncSink.
func (a *EventArchive) Insert(ctx context.Context, ev room.Event) error {
	var userID *int32
	if ev.UserID != 0 {
		userID = &ev.UserID
	}
	var value []byte
	if ev.Value != nil {
		b, err := json.Marshal(ev.Value)
		if err != nil {
			return fmt.Errorf("marshal event value: %w", err)
		}
		value = b
	}

	_, err := a.db.Exec(ctx, insertRoomEvent,
		string(ev.Type),
		ev.RoomID,
		userID,
		ev.Players,
		ev.Rooms,
		value,
		ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert room event %s/%s: %w", ev.Type, ev.RoomID, err)
	}
	return nil
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// InsertBatch archives events in a single transaction; either all rows land or none.
func InsertBatch(ctx context.Context, db TxBeginner, events []room.Event) error {
	return pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		a := NewEventArchive(tx)
		for _, ev := range events {
			if err := a.Insert(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}
