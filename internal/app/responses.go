package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

type ResponseOutcome string

const (
	OutcomeAccepted  ResponseOutcome = "accepted"
	OutcomeRejected  ResponseOutcome = "rejected"
	OutcomeUnchanged ResponseOutcome = "unchanged"
	OutcomeConflict  ResponseOutcome = "conflict"
	OutcomeIgnored   ResponseOutcome = "ignored"
)

// ResponseHandler applies booster accept and reject responses.
type ResponseHandler struct {
	jobs     JobRepository
	boosters BoosterRepository
	pool     *CandidatePool
	ledger   *CapacityLedger
	machine  *StateMachine
	matcher  *MatchingEngine
	clock    clock.Clock
	events   emitter
	metrics  Metrics
	logger   *slog.Logger
}

type RespondInput struct {
	JobID     string
	BoosterID string
	Action    domain.ResponseAction
}

type RespondResult struct {
	Outcome     ResponseOutcome
	Assignment  domain.Assignment
	Job         domain.Job
	Replacement *domain.SlotToken
	Escalated   bool
}

// Respond records a booster's answer to a reservation.
//
// The job row stays locked for the whole transaction, so responses on one
// job are ordered against each other and against cancellation. A reject
// releases the slot and then makes exactly one replacement attempt.
func (h *ResponseHandler) Respond(ctx context.Context, actor domain.Actor, in RespondInput) (RespondResult, error) {
	if !in.Action.Valid() {
		return RespondResult{}, domain.ErrInvalidAction
	}
	if !actor.CanActAsBooster(in.BoosterID) {
		return RespondResult{}, domain.ErrForbidden
	}

	var (
		result    RespondResult
		expired   bool
		released  bool
		jobMoved  bool
		prevState domain.AssignmentStatus
	)
	err := h.jobs.WithTx(ctx, func(txCtx context.Context) error {
		job, err := h.jobs.GetJobForUpdate(txCtx, in.JobID)
		if err != nil {
			return err
		}
		result.Job = job

		a, err := h.jobs.LatestAssignment(txCtx, job.ID, in.BoosterID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.ErrAssignmentNotFound
		}
		result.Assignment = *a
		prevState = a.Status

		if job.Status.Terminal() {
			result.Outcome = OutcomeIgnored
			return nil
		}

		now := h.clock.Now()
		token := domain.SlotToken{AssignmentID: a.ID, JobID: a.JobID, BoosterID: a.BoosterID, ExpiresAt: a.ExpiresAt}

		switch in.Action {
		case domain.ResponseAccept:
			switch a.Status {
			case domain.AssignmentStatusAccepted:
				result.Outcome = OutcomeUnchanged
				return nil
			case domain.AssignmentStatusExpired:
				expired = true
				return nil
			case domain.AssignmentStatusRejected, domain.AssignmentStatusSuperseded:
				result.Outcome = OutcomeConflict
				return nil
			}
			if a.Expired(now) {
				if err := h.ledger.ReleaseSlot(txCtx, token, domain.AssignmentStatusExpired); err != nil {
					return err
				}
				result.Assignment.Status = domain.AssignmentStatusExpired
				expired = true
				released = true
				return nil
			}
			if err := h.jobs.UpdateAssignmentStatus(txCtx, a.ID, a.Status, domain.AssignmentStatusAccepted, now); err != nil {
				return err
			}
			result.Assignment.Status = domain.AssignmentStatusAccepted
			result.Assignment.RespondedAt = &now
			result.Outcome = OutcomeAccepted

		case domain.ResponseReject:
			if !a.Status.Active() {
				result.Outcome = OutcomeUnchanged
				return nil
			}
			if job.Status == domain.JobStatusConfirmed {
				// Dropping out of a confirmed job is handled by staff.
				return domain.ErrInvalidTransition
			}
			if err := h.ledger.ReleaseSlot(txCtx, token, domain.AssignmentStatusRejected); err != nil {
				return err
			}
			if err := h.boosters.IncrementRejections(txCtx, a.BoosterID); err != nil {
				return err
			}
			result.Assignment.Status = domain.AssignmentStatusRejected
			result.Assignment.RespondedAt = &now
			result.Outcome = OutcomeRejected
			released = true
		}

		result.Job, jobMoved, err = h.machine.reconcileLocked(txCtx, job.ID)
		return err
	})
	if err != nil {
		h.metrics.Response(string(in.Action), "error")
		return RespondResult{}, err
	}

	if expired {
		h.metrics.Response(string(in.Action), "expired")
		if released {
			h.ledger.emitExpired(ctx, []domain.Assignment{result.Assignment})
			h.replace(ctx, &result, in.BoosterID)
		}
		return result, domain.ErrReservationExpired
	}

	h.metrics.Response(string(in.Action), string(result.Outcome))
	switch result.Outcome {
	case OutcomeConflict:
		h.logger.Warn("response ignored",
			"job_id", in.JobID,
			"booster_id", in.BoosterID,
			"action", in.Action,
			"assignment_status", prevState,
			"err", domain.ErrAlreadyResponded,
		)
		return result, nil
	case OutcomeUnchanged, OutcomeIgnored:
		return result, nil
	case OutcomeAccepted:
		h.events.emit(ctx, h.responseEvent(result, domain.EventAccepted))
	case OutcomeRejected:
		h.events.emit(ctx, h.responseEvent(result, domain.EventRejected))
	}

	if jobMoved && result.Job.Status == domain.JobStatusAssigned {
		h.machine.emitJob(ctx, result.Job, domain.EventAssigned, "")
	}
	if released {
		h.replace(ctx, &result, in.BoosterID)
	}
	return result, nil
}

// replace runs the single re-matching attempt for a released slot. A
// failure here never undoes the response that caused it.
func (h *ResponseHandler) replace(ctx context.Context, result *RespondResult, boosterID string) {
	token, err := h.matcher.FindReplacement(ctx, result.Job.ID, boosterID)
	switch {
	case errors.Is(err, domain.ErrNoCandidateAvailable):
		result.Escalated = true
	case err != nil:
		h.logger.Error("find replacement", "job_id", result.Job.ID, "err", err)
	default:
		result.Replacement = token
	}
	if job, err := h.jobs.GetJob(ctx, result.Job.ID); err == nil {
		result.Job = job
	}
}

func (h *ResponseHandler) responseEvent(r RespondResult, typ domain.EventType) domain.LifecycleEvent {
	return domain.LifecycleEvent{
		JobID:      r.Job.ID,
		Type:       typ,
		BoosterID:  r.Assignment.BoosterID,
		JobStatus:  r.Job.Status,
		OccurredAt: h.clock.Now(),
	}
}

type ApplyResult struct {
	Token domain.SlotToken
	Job   domain.Job
}

// Apply lets a booster take an open slot directly. Reserving and accepting
// happen in one step, so the first qualified applicant wins the last slot.
func (h *ResponseHandler) Apply(ctx context.Context, actor domain.Actor, jobID, boosterID string) (ApplyResult, error) {
	if !actor.CanActAsBooster(boosterID) {
		return ApplyResult{}, domain.ErrForbidden
	}
	b, err := h.boosters.GetBooster(ctx, boosterID)
	if err != nil {
		return ApplyResult{}, err
	}
	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		return ApplyResult{}, err
	}
	ok, err := h.pool.Qualifies(ctx, b, CandidateQuery{
		Specialties: job.Specialties,
		Location:    job.Location,
		Window:      job.Window,
		JobID:       job.ID,
	})
	if err != nil {
		return ApplyResult{}, err
	}
	if !ok {
		return ApplyResult{}, domain.ErrBoosterNotQualified
	}

	var (
		result ApplyResult
		moved  bool
		lapsed []domain.Assignment
	)
	err = h.jobs.WithTx(ctx, func(txCtx context.Context) error {
		res, err := h.ledger.ReserveSlot(txCtx, ReserveInput{
			JobID:     jobID,
			BoosterID: boosterID,
			Origin:    domain.AssignmentOriginSelf,
			Accepted:  true,
		})
		if err != nil {
			return err
		}
		result.Token = res.Token
		lapsed = res.Expired
		result.Job, moved, err = h.machine.reconcileLocked(txCtx, jobID)
		return err
	})
	if err != nil {
		h.metrics.Response("apply", "error")
		return ApplyResult{}, err
	}

	h.metrics.Response("apply", string(OutcomeAccepted))
	h.events.emit(ctx, domain.LifecycleEvent{
		JobID:      jobID,
		Type:       domain.EventAccepted,
		BoosterID:  boosterID,
		JobStatus:  result.Job.Status,
		Detail:     string(domain.AssignmentOriginSelf),
		OccurredAt: h.clock.Now(),
	})
	if moved && result.Job.Status == domain.JobStatusAssigned {
		h.machine.emitJob(ctx, result.Job, domain.EventAssigned, "")
	}
	if len(lapsed) > 0 {
		h.matcher.RefillLapsed(ctx, jobID, lapsed)
		if job, err := h.jobs.GetJob(ctx, jobID); err == nil {
			result.Job = job
		}
	}
	return result, nil
}
