package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

func TestResponseHandler_Respond(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	setup := func(t *testing.T) (*harness, string) {
		h := newHarness(t)
		h.addBooster(t, "bst_anna", 4.9)
		h.addBooster(t, "bst_bella", 4.5)
		job := h.book(t, booking{}).Job
		res, err := h.engine.Matching.AutoAssign(ctx, admin, job.ID)
		require.NoError(t, err)
		require.Equal(t, "bst_anna", res.Reserved[0].BoosterID)
		return h, job.ID
	}

	t.Run("accept fills the job", func(t *testing.T) {
		h, jobID := setup(t)

		res, err := h.respond(t, jobID, "bst_anna", domain.ResponseAccept)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeAccepted, res.Outcome)
		require.Equal(t, domain.AssignmentStatusAccepted, res.Assignment.Status)
		require.NotNil(t, res.Assignment.RespondedAt)
		require.Equal(t, domain.JobStatusAssigned, res.Job.Status)

		again, err := h.respond(t, jobID, "bst_anna", domain.ResponseAccept)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeUnchanged, again.Outcome)
		require.Equal(t, 1, h.job(t, jobID).ReservedSlots)

		require.Equal(t, []domain.EventType{domain.EventAssigned, domain.EventAccepted, domain.EventAssigned}, h.events.types(jobID))
	})

	t.Run("reject cascades to the next candidate then escalates", func(t *testing.T) {
		h, jobID := setup(t)

		res, err := h.respond(t, jobID, "bst_anna", domain.ResponseReject)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeRejected, res.Outcome)
		require.NotNil(t, res.Replacement)
		require.Equal(t, "bst_bella", res.Replacement.BoosterID)
		require.False(t, res.Escalated)

		anna, err := h.store.GetBooster(ctx, "bst_anna")
		require.NoError(t, err)
		require.Equal(t, 1, anna.RejectionCount)

		res, err = h.respond(t, jobID, "bst_bella", domain.ResponseReject)
		require.NoError(t, err)
		require.Nil(t, res.Replacement, "a booster who declined is not offered the job again")
		require.True(t, res.Escalated)

		job := h.job(t, jobID)
		require.Equal(t, domain.JobStatusPendingAssignment, job.Status)
		require.Equal(t, 0, job.ReservedSlots)
		require.Contains(t, h.events.types(jobID), domain.EventReassigned)
	})

	t.Run("a late accept after rejecting is a conflict", func(t *testing.T) {
		h, jobID := setup(t)

		_, err := h.respond(t, jobID, "bst_anna", domain.ResponseReject)
		require.NoError(t, err)

		res, err := h.respond(t, jobID, "bst_anna", domain.ResponseAccept)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeConflict, res.Outcome)
		require.Equal(t, domain.AssignmentStatusRejected, res.Assignment.Status)

		again, err := h.respond(t, jobID, "bst_anna", domain.ResponseReject)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeUnchanged, again.Outcome)
	})

	t.Run("accepting a lapsed reservation fails and replaces it", func(t *testing.T) {
		h, jobID := setup(t)
		h.clock.Advance(reserveIn + time.Second)

		res, err := h.respond(t, jobID, "bst_anna", domain.ResponseAccept)
		require.ErrorIs(t, err, domain.ErrReservationExpired)
		require.Equal(t, domain.AssignmentStatusExpired, res.Assignment.Status)
		require.NotNil(t, res.Replacement)
		require.Equal(t, "bst_bella", res.Replacement.BoosterID)
		require.Equal(t, 1, h.job(t, jobID).ReservedSlots)
	})

	t.Run("responses on a cancelled job are ignored", func(t *testing.T) {
		h, jobID := setup(t)
		cancelled, err := h.engine.Lifecycle.Cancel(ctx, customer, jobID, "")
		require.NoError(t, err)
		require.Len(t, cancelled.Superseded, 1)
		require.NotNil(t, cancelled.Superseded[0].RespondedAt)
		require.Equal(t, h.clock.Now(), *cancelled.Superseded[0].RespondedAt)

		res, err := h.respond(t, jobID, "bst_anna", domain.ResponseAccept)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeIgnored, res.Outcome)
	})

	t.Run("validation", func(t *testing.T) {
		h, jobID := setup(t)

		_, err := h.engine.Responses.Respond(ctx, domain.Actor{ID: "bst_bella", Role: domain.RoleBooster}, app.RespondInput{
			JobID: jobID, BoosterID: "bst_anna", Action: domain.ResponseAccept,
		})
		require.ErrorIs(t, err, domain.ErrForbidden)

		_, err = h.respond(t, jobID, "bst_anna", "maybe")
		require.ErrorIs(t, err, domain.ErrInvalidAction)

		_, err = h.respond(t, jobID, "bst_bella", domain.ResponseAccept)
		require.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	})
}

func TestResponseHandler_Apply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.addBooster(t, "bst_sfx", 4.6, domain.SpecialtyMakeup, domain.SpecialtySFX)
	h.addBooster(t, "bst_makeup", 4.9, domain.SpecialtyMakeup)

	job := h.book(t, booking{specialties: []string{"makeup", "sfx"}}).Job

	_, err := h.engine.Responses.Apply(ctx, domain.Actor{ID: "bst_makeup", Role: domain.RoleBooster}, job.ID, "bst_makeup")
	require.ErrorIs(t, err, domain.ErrBoosterNotQualified)

	_, err = h.engine.Responses.Apply(ctx, domain.Actor{ID: "bst_makeup", Role: domain.RoleBooster}, job.ID, "bst_sfx")
	require.ErrorIs(t, err, domain.ErrForbidden)

	res, err := h.engine.Responses.Apply(ctx, domain.Actor{ID: "bst_sfx", Role: domain.RoleBooster}, job.ID, "bst_sfx")
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusAssigned, res.Job.Status)

	view, err := h.engine.Bookings.GetJob(ctx, domain.Actor{ID: "bst_sfx", Role: domain.RoleBooster}, job.ID)
	require.NoError(t, err)
	require.Len(t, view.Assignments, 1)
	require.Equal(t, domain.AssignmentStatusAccepted, view.Assignments[0].Status)
	require.Equal(t, domain.AssignmentOriginSelf, view.Assignments[0].Origin)
	require.Nil(t, view.Payment)

	_, err = h.engine.Bookings.GetJob(ctx, domain.Actor{ID: "bst_makeup", Role: domain.RoleBooster}, job.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestResponseHandler_TwoSlotCascade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("sfx reject offers the next ranked artist", func(t *testing.T) {
		h := newHarness(t)
		h.addBooster(t, "bst_plain", 5.0, domain.SpecialtyMakeup)
		h.addBooster(t, "bst_a", 4.9, domain.SpecialtySFX)
		h.addBooster(t, "bst_b", 4.8, domain.SpecialtySFX)
		h.addBooster(t, "bst_c", 4.5, domain.SpecialtySFX)
		job := h.book(t, booking{slots: 2, specialties: []string{"sfx"}}).Job

		res, err := h.engine.Matching.AutoAssign(ctx, admin, job.ID)
		require.NoError(t, err)
		require.Len(t, res.Reserved, 2)
		require.Equal(t, "bst_a", res.Reserved[0].BoosterID)
		require.Equal(t, "bst_b", res.Reserved[1].BoosterID)

		out, err := h.respond(t, job.ID, "bst_a", domain.ResponseReject)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeRejected, out.Outcome)
		require.NotNil(t, out.Replacement)
		require.Equal(t, "bst_c", out.Replacement.BoosterID)
		require.Equal(t, 2, h.job(t, job.ID).ReservedSlots)
	})

	t.Run("rejecting one accepted slot reopens only that slot", func(t *testing.T) {
		h := newHarness(t)
		h.addBooster(t, "bst_anna", 4.9)
		h.addBooster(t, "bst_bella", 4.8)
		h.addBooster(t, "bst_cara", 4.5)
		job := h.book(t, booking{slots: 2}).Job

		_, err := h.engine.Matching.AutoAssign(ctx, admin, job.ID)
		require.NoError(t, err)
		_, err = h.respond(t, job.ID, "bst_anna", domain.ResponseAccept)
		require.NoError(t, err)
		out, err := h.respond(t, job.ID, "bst_bella", domain.ResponseAccept)
		require.NoError(t, err)
		require.Equal(t, domain.JobStatusAssigned, out.Job.Status)

		out, err = h.respond(t, job.ID, "bst_anna", domain.ResponseReject)
		require.NoError(t, err)
		require.Equal(t, app.OutcomeRejected, out.Outcome)
		require.NotNil(t, out.Replacement)
		require.Equal(t, "bst_cara", out.Replacement.BoosterID)
		require.Equal(t, domain.JobStatusOpen, out.Job.Status)
		require.Equal(t, 2, out.Job.ReservedSlots)

		reassigned := 0
		for _, typ := range h.events.types(job.ID) {
			if typ == domain.EventReassigned {
				reassigned++
			}
		}
		require.Equal(t, 1, reassigned)

		view, err := h.engine.Bookings.GetJob(ctx, admin, job.ID)
		require.NoError(t, err)
		statuses := map[string]domain.AssignmentStatus{}
		for _, a := range view.Assignments {
			statuses[a.BoosterID] = a.Status
		}
		require.Equal(t, map[string]domain.AssignmentStatus{
			"bst_anna":  domain.AssignmentStatusRejected,
			"bst_bella": domain.AssignmentStatusAccepted,
			"bst_cara":  domain.AssignmentStatusPending,
		}, statuses)
	})
}

func TestResponseHandler_LapsedSlotsAreRefilled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	setup := func(t *testing.T) (*harness, string) {
		h := newHarness(t)
		h.addBooster(t, "bst_anna", 4.9)
		h.addBooster(t, "bst_bella", 4.8)
		job := h.book(t, booking{slots: 2}).Job
		res, err := h.engine.Matching.AutoAssign(ctx, admin, job.ID)
		require.NoError(t, err)
		require.Len(t, res.Reserved, 2)
		h.clock.Advance(reserveIn + time.Second)
		return h, job.ID
	}
	holders := func(t *testing.T, h *harness, jobID string) map[string]domain.AssignmentStatus {
		view, err := h.engine.Bookings.GetJob(ctx, admin, jobID)
		require.NoError(t, err)
		out := map[string]domain.AssignmentStatus{}
		for _, a := range view.Assignments {
			out[a.BoosterID] = a.Status
		}
		return out
	}

	t.Run("apply", func(t *testing.T) {
		h, jobID := setup(t)
		h.addBooster(t, "bst_cara", 4.5)
		h.addBooster(t, "bst_dora", 4.7)

		res, err := h.engine.Responses.Apply(ctx, domain.Actor{ID: "bst_cara", Role: domain.RoleBooster}, jobID, "bst_cara")
		require.NoError(t, err)
		require.Equal(t, 2, res.Job.ReservedSlots)
		require.Equal(t, domain.JobStatusOpen, res.Job.Status)

		got := holders(t, h, jobID)
		require.Equal(t, domain.AssignmentStatusAccepted, got["bst_cara"])
		require.Equal(t, domain.AssignmentStatusPending, got["bst_dora"])
		require.Equal(t, domain.AssignmentStatusExpired, got["bst_anna"])
		require.Equal(t, domain.AssignmentStatusExpired, got["bst_bella"])
		require.Contains(t, h.events.types(jobID), domain.EventReassigned)
	})

	t.Run("manual assign", func(t *testing.T) {
		h, jobID := setup(t)
		h.addBooster(t, "bst_cara", 4.5)
		h.addBooster(t, "bst_dora", 4.7)

		_, err := h.engine.Matching.AssignManual(ctx, admin, jobID, "bst_cara")
		require.NoError(t, err)

		job := h.job(t, jobID)
		require.Equal(t, 2, job.ReservedSlots)
		got := holders(t, h, jobID)
		require.Equal(t, domain.AssignmentStatusPending, got["bst_cara"])
		require.Equal(t, domain.AssignmentStatusPending, got["bst_dora"])
	})

	t.Run("escalates when nobody is left", func(t *testing.T) {
		h, jobID := setup(t)
		h.addBooster(t, "bst_cara", 4.5)

		res, err := h.engine.Responses.Apply(ctx, domain.Actor{ID: "bst_cara", Role: domain.RoleBooster}, jobID, "bst_cara")
		require.NoError(t, err)
		require.Equal(t, domain.JobStatusPendingAssignment, res.Job.Status)
		require.Equal(t, 1, res.Job.ReservedSlots)
		require.Contains(t, h.events.types(jobID), domain.EventEscalated)
	})
}
