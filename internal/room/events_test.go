package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSinkFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	reg := NewRegistry(WithEventSink(NewLogSink(logger)))
	_, err := reg.CreateRoom("r1", "Room", 1, user(1), uuid.New())
	require.NoError(t, err)
	require.True(t, reg.SetRoomLocked("r1", true))

	require.Len(t, hook.AllEntries(), 2)
	entry := hook.LastEntry()
	assert.Equal(t, EventLockChanged, entry.Data["event"])
	assert.Equal(t, "r1", entry.Data["room"])
	assert.Equal(t, true, entry.Data["value"])
	assert.NotContains(t, entry.Data, "user")
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	var seen []EventType
	reg := NewRegistry(WithEventSink(MultiSink{a, b, SinkFunc(func(ev Event) { seen = append(seen, ev.Type) })}))

	_, err := reg.CreateRoom("r1", "Room", 1, user(1), uuid.New())
	require.NoError(t, err)
	require.True(t, reg.DeleteRoom("r1"))

	want := []EventType{EventRoomCreated, EventRoomDeleted}
	assert.Equal(t, want, a.types())
	assert.Equal(t, want, b.types())
	assert.Equal(t, want, seen)
}

func TestAsyncSinkDelivers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	delivered := make(chan Event, 4)
	sink := NewAsyncSink("test", 4, logger, func(ctx context.Context, ev Event) error {
		delivered <- ev
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r1"})

	select {
	case ev := <-delivered:
		assert.Equal(t, "r1", ev.RoomID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewAsyncSink("test", 1, logger, func(ctx context.Context, ev Event) error { return nil })

	// Run is not started, so the second event has nowhere to go.
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r1"})
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r2"})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "r2", hook.LastEntry().Data["room"])
}

func TestAsyncSinkLogsDeliveryErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	failed := make(chan struct{})
	sink := NewAsyncSink("test", 1, logger, func(ctx context.Context, ev Event) error {
		defer close(failed)
		return errors.New("backend down")
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	sink.Emit(Event{Type: EventPlayerJoined, RoomID: "r1"})
	<-failed

	assert.Eventually(t, func() bool {
		e := hook.LastEntry()
		return e != nil && e.Message == "event delivery failed"
	}, time.Second, 10*time.Millisecond)
}

func TestAsyncSinkClose(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewAsyncSink("test", 1, logger, func(ctx context.Context, ev Event) error { return nil })
	sink.Close()
	sink.Close()

	sink.Emit(Event{Type: EventRoomCreated})
	sink.Emit(Event{Type: EventRoomCreated})
	assert.Empty(t, hook.AllEntries())
}

func TestAsyncSinkDrainsQueueAfterCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var delivered []string
	sink := NewAsyncSink("test", 4, logger, func(ctx context.Context, ev Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivered = append(delivered, ev.RoomID)
		return nil
	})
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r1"})
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r2"})
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r3"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)

	assert.Equal(t, []string{"r1", "r2", "r3"}, delivered)
}

func TestAsyncSinkDrainGivesUp(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewAsyncSink("test", 4, logger, func(ctx context.Context, ev Event) error {
		<-ctx.Done()
		return ctx.Err()
	})
	sink.drainTimeout = 20 * time.Millisecond
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r1"})
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r2"})
	sink.Emit(Event{Type: EventRoomCreated, RoomID: "r3"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "dropping queued events at shutdown", last.Message)
	assert.Equal(t, 2, last.Data["dropped"])
}
