// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/roomd/internal/room"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list room events are pushed to.
const DefaultQueueName = "roomd_events"

// RoomEventRecord is the JSON shape pushed to Redis for downstream consumers.
type RoomEventRecord struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"room_id"`
	UserID    int32       `json:"user_id,omitempty"`
	Players   int         `json:"players"`
	Rooms     int         `json:"rooms"`
	Value     interface{} `json:"value,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewRoomEventRecord converts a registry event into its queue record.
func NewRoomEventRecord(ev room.Event) RoomEventRecord {
	return RoomEventRecord{
		Type:      string(ev.Type),
		RoomID:    ev.RoomID,
		UserID:    ev.UserID,
		Players:   ev.Players,
		Rooms:     ev.Rooms,
		Value:     ev.Value,
		Timestamp: ev.At.UnixMilli(),
	}
}

// Event converts the record back into a registry event. Value keeps its
// JSON-decoded form (bool, string, float64).
func (rec RoomEventRecord) Event() room.Event {
	return room.Event{
		Type:    room.EventType(rec.Type),
		RoomID:  rec.RoomID,
		UserID:  rec.UserID,
		Players: rec.Players,
		Rooms:   rec.Rooms,
		Value:   rec.Value,
		At:      time.UnixMilli(rec.Timestamp).UTC(),
	}
}

// Connect opens a Redis client and checks it with a PING.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher pushes room events onto a Redis list.
type Publisher struct {
	rdb   redis.Cmdable
	queue string
}

// NewPublisher returns a publisher for queue; an empty queue uses DefaultQueueName.
func NewPublisher(rdb redis.Cmdable, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// Publish serializes ev and RPUSHes it. Meant to be wrapped in a room.AsyncSink.
func (p *Publisher) Publish(ctx context.Context, ev room.Event) error {
	data, err := json.Marshal(NewRoomEventRecord(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal room event: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
