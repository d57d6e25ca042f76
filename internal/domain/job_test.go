package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJobStatus_Transitions(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to JobStatus }{
		{JobStatusOpen, JobStatusAssigned},
		{JobStatusOpen, JobStatusPendingAssignment},
		{JobStatusOpen, JobStatusCancelled},
		{JobStatusPendingAssignment, JobStatusOpen},
		{JobStatusPendingAssignment, JobStatusAssigned},
		{JobStatusAssigned, JobStatusOpen},
		{JobStatusAssigned, JobStatusConfirmed},
		{JobStatusAssigned, JobStatusCompleted},
		{JobStatusConfirmed, JobStatusCompleted},
		{JobStatusConfirmed, JobStatusCancelled},
	}
	for _, tt := range allowed {
		require.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	denied := []struct{ from, to JobStatus }{
		{JobStatusOpen, JobStatusConfirmed},
		{JobStatusOpen, JobStatusCompleted},
		{JobStatusConfirmed, JobStatusOpen},
		{JobStatusCompleted, JobStatusCancelled},
		{JobStatusCancelled, JobStatusOpen},
		{JobStatusCompleted, JobStatusAssigned},
	}
	for _, tt := range denied {
		require.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	require.True(t, JobStatusCompleted.Terminal())
	require.True(t, JobStatusCancelled.Terminal())
	require.False(t, JobStatusConfirmed.Terminal())
	require.True(t, JobStatusPendingAssignment.Staffable())
	require.False(t, JobStatusAssigned.Staffable())
	require.False(t, JobStatus("paused").Valid())
}

func TestJob_Transition(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	job := Job{Status: JobStatusOpen, UpdatedAt: created}

	require.NoError(t, job.Transition(JobStatusOpen, later))
	require.Equal(t, created, job.UpdatedAt, "a same-status transition is a no-op")

	require.ErrorIs(t, job.Transition(JobStatusCompleted, later), ErrInvalidTransition)
	require.Equal(t, JobStatusOpen, job.Status)

	require.NoError(t, job.Transition(JobStatusAssigned, later))
	require.Equal(t, JobStatusAssigned, job.Status)
	require.Equal(t, later, job.UpdatedAt)
}

func TestJob_OpenSlots(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3, Job{RequiredSlots: 3}.OpenSlots())
	require.Equal(t, 1, Job{RequiredSlots: 3, ReservedSlots: 2}.OpenSlots())
	require.Equal(t, 0, Job{RequiredSlots: 2, ReservedSlots: 5}.OpenSlots())
}

func TestTimeWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC)
	w := TimeWindow{Start: base, End: base.Add(2 * time.Hour)}

	require.True(t, w.Valid())
	require.False(t, TimeWindow{Start: base, End: base}.Valid())

	adjacent := TimeWindow{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)}
	require.False(t, w.Overlaps(adjacent), "half-open windows that touch do not overlap")

	inside := TimeWindow{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)}
	require.True(t, w.Overlaps(inside))
	require.True(t, inside.Overlaps(w))
}

func TestLocation_DistanceKm(t *testing.T) {
	t.Parallel()

	copenhagen := Location{Lat: 55.6761, Lng: 12.5683}
	aarhus := Location{Lat: 56.1629, Lng: 10.2039}

	require.InDelta(t, 156.9, copenhagen.DistanceKm(aarhus), 0.5)
	require.InDelta(t, 0, copenhagen.DistanceKm(copenhagen), 1e-9)
	require.False(t, Location{Address: "somewhere"}.HasCoordinates())
}

func TestBooster_Serves(t *testing.T) {
	t.Parallel()

	copenhagen := Location{Lat: 55.6761, Lng: 12.5683}
	nearby := Location{Lat: 55.7, Lng: 12.6}
	aarhus := Location{Lat: 56.1629, Lng: 10.2039}

	b := Booster{Location: copenhagen, RadiusKm: 25}
	require.True(t, b.Serves(nearby))
	require.False(t, b.Serves(aarhus))
	require.True(t, b.Serves(Location{}), "unknown job location places no constraint")
	require.True(t, Booster{}.Serves(aarhus), "unknown booster base places no constraint")
	require.False(t, Booster{Location: copenhagen}.Serves(nearby), "zero radius serves nothing")
}

func TestAssignment_Expired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	pending := Assignment{Status: AssignmentStatusPending, ExpiresAt: now}

	require.True(t, pending.Expired(now), "expiry is inclusive")
	require.False(t, pending.Expired(now.Add(-time.Second)))

	accepted := Assignment{Status: AssignmentStatusAccepted, ExpiresAt: now.Add(-time.Hour)}
	require.False(t, accepted.Expired(now), "accepted assignments never expire")
	require.True(t, accepted.Status.Active())
	require.False(t, AssignmentStatusSuperseded.Active())
}
