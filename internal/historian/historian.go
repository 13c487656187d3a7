// internal/historian/historian.go is an asynchronous archiver that pops room
// events from a Redis queue and persists them in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/roomd/internal/cache"
	"github.com/jason-s-yu/roomd/internal/room"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Queue is the part of a Redis client the historian pops from.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// FlushFunc persists one batch of events.
type FlushFunc func(ctx context.Context, events []room.Event) error

// Service drains a Redis list of room events into a FlushFunc.
type Service struct {
	queue      Queue
	queueName  string
	flush      FlushFunc
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	logger     logrus.FieldLogger

	batch     []room.Event
	lastFlush time.Time
}

// NewService builds a historian. batchSize and flushDelay bound how long an
// event waits before it is written.
func NewService(queue Queue, queueName string, flush FlushFunc, batchSize int, flushDelay time.Duration, logger logrus.FieldLogger) *Service {
	if batchSize < 1 {
		batchSize = 1
	}
	if queueName == "" {
		queueName = cache.DefaultQueueName
	}
	return &Service{
		queue:      queue,
		queueName:  queueName,
		flush:      flush,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		popTimeout: time.Second,
		logger:     logger,
		batch:      make([]room.Event, 0, batchSize),
	}
}

// Run pops and archives events until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	s.lastFlush = time.Now()
	s.logger.Infof("historian draining redis list %q", s.queueName)

	for ctx.Err() == nil {
		if ev, ok := s.pop(ctx); ok {
			s.batch = append(s.batch, ev)
		}
		if len(s.batch) >= s.batchSize || (len(s.batch) > 0 && time.Since(s.lastFlush) >= s.flushDelay) {
			s.flushBatch(ctx)
		}
	}

	// ctx is done; give the last batch its own deadline.
	finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flushBatch(finalCtx)
	s.logger.Info("historian shutting down")
}

// pop waits up to popTimeout for one record.
func (s *Service) pop(ctx context.Context) (room.Event, bool) {
	res, err := s.queue.BLPop(ctx, s.popTimeout, s.queueName).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.logger.WithError(err).Warn("BLPop failed")
			// back off a little so a dead Redis doesn't spin the loop
			select {
			case <-ctx.Done():
			case <-time.After(s.popTimeout):
			}
		}
		return room.Event{}, false
	}
	// res[0] is the list name and res[1] the payload.
	if len(res) < 2 {
		return room.Event{}, false
	}

	var rec cache.RoomEventRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		s.logger.WithError(err).Warn("invalid room event record")
		return room.Event{}, false
	}
	return rec.Event(), true
}

func (s *Service) flushBatch(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.flush(ctx, s.batch); err != nil {
		s.logger.WithError(err).Errorf("failed to archive %d room events", len(s.batch))
	} else {
		s.logger.Debugf("archived %d room events", len(s.batch))
	}
	s.batch = s.batch[:0]
}
