package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

func TestSweeper_ExpiresReplacesThenEscalates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.addBooster(t, "bst_anna", 4.9)
	h.addBooster(t, "bst_bella", 4.5)

	job := h.book(t, booking{}).Job
	_, err := h.engine.Matching.AutoAssign(ctx, admin, job.ID)
	require.NoError(t, err)

	report, err := h.engine.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.Expired, "nothing is overdue yet")

	h.clock.Advance(reserveIn + time.Second)
	report, err = h.engine.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Jobs)
	require.Equal(t, 1, report.Expired)
	require.Equal(t, 1, report.Replacements)
	require.Zero(t, report.Escalated)

	assignments, err := h.store.ListAssignments(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	require.Equal(t, 1, h.job(t, job.ID).ReservedSlots)

	h.clock.Advance(reserveIn + time.Second)
	report, err = h.engine.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Expired)
	require.Zero(t, report.Replacements)
	require.Equal(t, 1, report.Escalated)

	got := h.job(t, job.ID)
	require.Equal(t, domain.JobStatusPendingAssignment, got.Status)
	require.Zero(t, got.ReservedSlots)

	types := h.events.types(job.ID)
	require.Contains(t, types, domain.EventExpired)
	require.Contains(t, types, domain.EventReassigned)
	require.Contains(t, types, domain.EventEscalated)

	report, err = h.engine.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, app.SweepReport{}, report)
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Sweeper.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
