package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

const defaultReservationTTL = 24 * time.Hour

// CapacityLedger enforces, per job, that pending plus accepted assignments
// never exceed the required slot count.
type CapacityLedger struct {
	jobs    JobRepository
	clock   clock.Clock
	ttl     time.Duration
	events  emitter
	metrics Metrics
	logger  *slog.Logger
}

type ReserveInput struct {
	JobID     string
	BoosterID string
	Origin    domain.AssignmentOrigin
	// Accepted skips the pending step. Only self-application with a
	// verified skill match sets it.
	Accepted bool
}

type ReserveResult struct {
	Token      domain.SlotToken
	Assignment domain.Assignment
	// Expired lists stale reservations released while making room.
	Expired []domain.Assignment
}

// ReserveSlot takes one slot on the job for the booster.
//
// Stale pending reservations on the job are expired first. The slot itself
// is taken by a conditional increment, so concurrent callers racing for the
// last slot cannot both succeed.
func (l *CapacityLedger) ReserveSlot(ctx context.Context, in ReserveInput) (ReserveResult, error) {
	if in.JobID == "" || in.BoosterID == "" {
		return ReserveResult{}, domain.ErrInvalidID
	}

	now := l.clock.Now()
	var result ReserveResult

	err := l.jobs.WithTx(ctx, func(txCtx context.Context) error {
		job, err := l.jobs.GetJobForUpdate(txCtx, in.JobID)
		if err != nil {
			return err
		}
		if !job.Status.Staffable() {
			return domain.ErrJobNotStaffable
		}

		expired, err := l.expireLocked(txCtx, job.ID, now)
		if err != nil {
			return err
		}
		result.Expired = expired

		if existing, err := l.jobs.LatestAssignment(txCtx, job.ID, in.BoosterID); err != nil {
			return err
		} else if existing != nil && existing.Status.Active() {
			return domain.ErrBoosterAlreadyOnJob
		}

		ok, err := l.jobs.TryReserveSlot(txCtx, job.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCapacityExceeded
		}

		a := domain.Assignment{
			ID:        newUUID(),
			JobID:     job.ID,
			BoosterID: in.BoosterID,
			Status:    domain.AssignmentStatusPending,
			Origin:    in.Origin,
			ExpiresAt: now.Add(l.ttl),
			CreatedAt: now,
		}
		if in.Accepted {
			a.Status = domain.AssignmentStatusAccepted
			a.RespondedAt = &now
		}
		if err := l.jobs.CreateAssignment(txCtx, a); err != nil {
			return err
		}

		// A reservation on an escalated job means staffing is moving again.
		if job.Status == domain.JobStatusPendingAssignment {
			if err := l.jobs.UpdateJobStatus(txCtx, job.ID, domain.JobStatusOpen, now); err != nil {
				return err
			}
		}

		result.Assignment = a
		result.Token = domain.SlotToken{
			AssignmentID: a.ID,
			JobID:        a.JobID,
			BoosterID:    a.BoosterID,
			ExpiresAt:    a.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		l.metrics.ReservationAttempt(reservationResult(err))
		return ReserveResult{}, err
	}

	l.metrics.ReservationAttempt("reserved")
	l.emitExpired(ctx, result.Expired)
	return result, nil
}

// ReleaseSlot frees the slot held by token, recording the assignment as to.
func (l *CapacityLedger) ReleaseSlot(ctx context.Context, token domain.SlotToken, to domain.AssignmentStatus) error {
	if to.Active() {
		return domain.ErrInvalidTransition
	}
	now := l.clock.Now()
	return l.jobs.WithTx(ctx, func(txCtx context.Context) error {
		a, err := l.jobs.GetAssignment(txCtx, token.AssignmentID)
		if err != nil {
			return err
		}
		if a.JobID != token.JobID {
			return domain.ErrAssignmentNotFound
		}
		if !a.Status.Active() {
			// Already released; the counter was decremented then.
			return nil
		}
		if err := l.jobs.UpdateAssignmentStatus(txCtx, a.ID, a.Status, to, now); err != nil {
			return err
		}
		return l.jobs.ReleaseSlots(txCtx, a.JobID, 1, now)
	})
}

// ConfirmedCount returns the number of accepted assignments on the job.
func (l *CapacityLedger) ConfirmedCount(ctx context.Context, jobID string) (int, error) {
	return l.jobs.CountAssignments(ctx, jobID, domain.AssignmentStatusAccepted)
}

// ExpireStale releases overdue pending reservations on one job.
func (l *CapacityLedger) ExpireStale(ctx context.Context, jobID string) ([]domain.Assignment, error) {
	now := l.clock.Now()
	var expired []domain.Assignment
	err := l.jobs.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := l.jobs.GetJobForUpdate(txCtx, jobID); err != nil {
			return err
		}
		var err error
		expired, err = l.expireLocked(txCtx, jobID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.emitExpired(ctx, expired)
	return expired, nil
}

// expireLocked must run inside a transaction holding the job row.
func (l *CapacityLedger) expireLocked(ctx context.Context, jobID string, now time.Time) ([]domain.Assignment, error) {
	expired, err := l.jobs.ExpirePending(ctx, jobID, now)
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}
	if err := l.jobs.ReleaseSlots(ctx, jobID, len(expired), now); err != nil {
		return nil, err
	}
	return expired, nil
}

func (l *CapacityLedger) emitExpired(ctx context.Context, expired []domain.Assignment) {
	for _, a := range expired {
		l.logger.Info("reservation expired", "job_id", a.JobID, "booster_id", a.BoosterID)
		l.events.emit(ctx, domain.LifecycleEvent{
			JobID:      a.JobID,
			Type:       domain.EventExpired,
			BoosterID:  a.BoosterID,
			OccurredAt: l.clock.Now(),
		})
	}
}

func reservationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrBoosterAlreadyOnJob):
		return "duplicate"
	case errors.Is(err, domain.ErrJobNotStaffable):
		return "not_staffable"
	default:
		return "error"
	}
}
