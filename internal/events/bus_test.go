package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

func TestBus_FiltersByJob(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	one, stopOne := bus.Subscribe("job-1")
	all, stopAll := bus.Subscribe("")
	defer stopAll()
	require.Equal(t, 2, bus.Subscribers())

	require.NoError(t, bus.Publish(ctx, domain.LifecycleEvent{JobID: "job-2", Type: domain.EventAssigned}))
	require.NoError(t, bus.Publish(ctx, domain.LifecycleEvent{JobID: "job-1", Type: domain.EventAccepted}))

	ev := <-one
	require.Equal(t, "job-1", ev.JobID)
	require.Equal(t, domain.EventAccepted, ev.Type)
	require.Len(t, all, 2)

	stopOne()
	stopOne()
	_, open := <-one
	require.False(t, open, "unsubscribe closes the channel")
	require.Equal(t, 1, bus.Subscribers())

	// Publishing after unsubscribe must not panic on the closed channel.
	require.NoError(t, bus.Publish(ctx, domain.LifecycleEvent{JobID: "job-1"}))
}

func TestBus_DropsForSlowSubscribers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()
	bus.buffer = 1

	ch, stop := bus.Subscribe("")
	defer stop()
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(ctx, domain.LifecycleEvent{JobID: "job-1"}))
	}
	require.Len(t, ch, 1)
	require.Equal(t, uint64(2), bus.Dropped())
}

type failing struct{ err error }

func (f failing) Publish(context.Context, domain.LifecycleEvent) error { return f.err }

func TestMulti_JoinsErrors(t *testing.T) {
	errA := errors.New("broker down")
	errB := errors.New("disk full")
	bus := NewBus()
	ch, stop := bus.Subscribe("")
	defer stop()

	err := Multi{failing{errA}, nil, bus, failing{errB}}.Publish(context.Background(), domain.LifecycleEvent{JobID: "job-1"})
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
	require.Len(t, ch, 1, "healthy publishers still receive the event")

	require.NoError(t, Multi{bus}.Publish(context.Background(), domain.LifecycleEvent{}))
}
