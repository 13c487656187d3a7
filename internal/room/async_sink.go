package room

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AsyncSink queues events and hands them to a delivery function on its own
// goroutine, so slow backends (Redis, Postgres) never stall registry callers.
// When the queue is full, events are dropped with a warning.
type AsyncSink struct {
	name    string
	deliver func(ctx context.Context, ev Event) error
	logger  logrus.FieldLogger
	timeout time.Duration

	// drainTimeout bounds delivery of leftover events once Run's context ends.
	drainTimeout time.Duration

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewAsyncSink builds a sink with a queue of the given size. Call Run to start delivery.
func NewAsyncSink(name string, buffer int, logger logrus.FieldLogger, deliver func(ctx context.Context, ev Event) error) *AsyncSink {
	if buffer < 1 {
		buffer = 1
	}
	return &AsyncSink{
		name:         name,
		deliver:      deliver,
		logger:       logger,
		timeout:      5 * time.Second,
		drainTimeout: 2 * time.Second,
		queue:        make(chan Event, buffer),
		done:         make(chan struct{}),
	}
}

// Emit enqueues ev without blocking.
func (s *AsyncSink) Emit(ev Event) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.queue <- ev:
	default:
		s.logger.WithFields(logrus.Fields{
			"sink":  s.name,
			"event": ev.Type,
			"room":  ev.RoomID,
		}).Warn("event queue full, dropping event")
	}
}

// Run delivers queued events until ctx is cancelled or Close is called. After
// cancellation it keeps delivering what is already queued for up to the drain
// timeout; whatever is left after that is dropped with a warning.
func (s *AsyncSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case <-s.done:
			return
		case ev := <-s.queue:
			if ctx.Err() != nil {
				s.drain(ev)
				return
			}
			s.deliverOne(context.WithoutCancel(ctx), ev)
		}
	}
}

// drain delivers pending and then the queued events until the queue is empty
// or the drain timeout passes.
func (s *AsyncSink) drain(pending ...Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()

	for _, ev := range pending {
		s.deliverOne(ctx, ev)
	}
	for ctx.Err() == nil {
		select {
		case ev := <-s.queue:
			s.deliverOne(ctx, ev)
		default:
			return
		}
	}
	if n := len(s.queue); n > 0 {
		s.logger.WithFields(logrus.Fields{"sink": s.name, "dropped": n}).Warn("dropping queued events at shutdown")
	}
}

func (s *AsyncSink) deliverOne(ctx context.Context, ev Event) {
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.deliver(dctx, ev); err != nil {
		s.logger.WithFields(logrus.Fields{
			"sink":  s.name,
			"event": ev.Type,
			"room":  ev.RoomID,
		}).WithError(err).Warn("event delivery failed")
	}
}

// Close stops Run and makes further Emit calls no-ops.
func (s *AsyncSink) Close() {
	s.once.Do(func() { close(s.done) })
}
