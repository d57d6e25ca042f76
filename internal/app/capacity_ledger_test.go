package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

func TestCapacityLedger_ReserveSlot(t *testing.T) {
	t.Parallel()

	t.Run("concurrent reservations never exceed capacity", func(t *testing.T) {
		h := newHarness(t)
		job := h.book(t, booking{slots: 2}).Job

		const racers = 12
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			won      int
			rejected int
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := h.engine.Ledger.ReserveSlot(context.Background(), app.ReserveInput{
					JobID:     job.ID,
					BoosterID: fmt.Sprintf("bst_%02d", i),
					Origin:    domain.AssignmentOriginManual,
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					won++
				case errors.Is(err, domain.ErrCapacityExceeded):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		require.Equal(t, 2, won)
		require.Equal(t, racers-2, rejected)
		require.Equal(t, 2, h.job(t, job.ID).ReservedSlots)
	})

	t.Run("one active slot per booster", func(t *testing.T) {
		h := newHarness(t)
		job := h.book(t, booking{slots: 3}).Job
		in := app.ReserveInput{JobID: job.ID, BoosterID: "bst_anna", Origin: domain.AssignmentOriginManual}

		_, err := h.engine.Ledger.ReserveSlot(context.Background(), in)
		require.NoError(t, err)
		_, err = h.engine.Ledger.ReserveSlot(context.Background(), in)
		require.ErrorIs(t, err, domain.ErrBoosterAlreadyOnJob)
		require.Equal(t, 1, h.job(t, job.ID).ReservedSlots)
	})

	t.Run("terminal jobs are not staffable", func(t *testing.T) {
		h := newHarness(t)
		job := h.book(t, booking{}).Job
		_, err := h.engine.Lifecycle.Cancel(context.Background(), customer, job.ID, "changed plans")
		require.NoError(t, err)

		_, err = h.engine.Ledger.ReserveSlot(context.Background(), app.ReserveInput{JobID: job.ID, BoosterID: "bst_anna"})
		require.ErrorIs(t, err, domain.ErrJobNotStaffable)
	})

	t.Run("missing ids are rejected", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.engine.Ledger.ReserveSlot(context.Background(), app.ReserveInput{JobID: "job"})
		require.ErrorIs(t, err, domain.ErrInvalidID)
	})
}

func TestCapacityLedger_ReleaseSlot(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	job := h.book(t, booking{}).Job
	res, err := h.engine.Ledger.ReserveSlot(context.Background(), app.ReserveInput{JobID: job.ID, BoosterID: "bst_anna"})
	require.NoError(t, err)

	require.ErrorIs(t, h.engine.Ledger.ReleaseSlot(context.Background(), res.Token, domain.AssignmentStatusAccepted), domain.ErrInvalidTransition)

	require.NoError(t, h.engine.Ledger.ReleaseSlot(context.Background(), res.Token, domain.AssignmentStatusRejected))
	require.NoError(t, h.engine.Ledger.ReleaseSlot(context.Background(), res.Token, domain.AssignmentStatusRejected))
	require.Equal(t, 0, h.job(t, job.ID).ReservedSlots, "a second release does not decrement again")

	wrongJob := res.Token
	wrongJob.JobID = "other"
	require.ErrorIs(t, h.engine.Ledger.ReleaseSlot(context.Background(), wrongJob, domain.AssignmentStatusRejected), domain.ErrAssignmentNotFound)
}

func TestCapacityLedger_ExpiresStaleReservations(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	job := h.book(t, booking{}).Job
	ctx := context.Background()

	_, err := h.engine.Ledger.ReserveSlot(ctx, app.ReserveInput{JobID: job.ID, BoosterID: "bst_anna"})
	require.NoError(t, err)

	_, err = h.engine.Ledger.ReserveSlot(ctx, app.ReserveInput{JobID: job.ID, BoosterID: "bst_bella"})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	h.clock.Advance(reserveIn + time.Minute)

	res, err := h.engine.Ledger.ReserveSlot(ctx, app.ReserveInput{JobID: job.ID, BoosterID: "bst_bella"})
	require.NoError(t, err, "the lapsed reservation makes room")
	require.Len(t, res.Expired, 1)
	require.Equal(t, "bst_anna", res.Expired[0].BoosterID)
	require.Equal(t, 1, h.job(t, job.ID).ReservedSlots)
	require.Contains(t, h.events.types(job.ID), domain.EventExpired)
}
