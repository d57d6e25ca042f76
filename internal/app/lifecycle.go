package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// StateMachine owns job status transitions. Every change goes through the
// transition table in domain.JobStatus and emits a lifecycle event.
type StateMachine struct {
	jobs     JobRepository
	ledger   *CapacityLedger
	payments *PaymentManager
	clock    clock.Clock
	events   emitter
	logger   *slog.Logger
}

// Reconcile moves a job between open and assigned based on its accepted count.
func (m *StateMachine) Reconcile(ctx context.Context, jobID string) (domain.Job, error) {
	var job domain.Job
	var changed bool
	err := m.jobs.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		job, changed, err = m.reconcileLocked(txCtx, jobID)
		return err
	})
	if err != nil {
		return domain.Job{}, err
	}
	if changed && job.Status == domain.JobStatusAssigned {
		m.emitJob(ctx, job, domain.EventAssigned, "")
	}
	return job, nil
}

// reconcileLocked must run inside a transaction. It locks the job row.
func (m *StateMachine) reconcileLocked(ctx context.Context, jobID string) (domain.Job, bool, error) {
	job, err := m.jobs.GetJobForUpdate(ctx, jobID)
	if err != nil {
		return domain.Job{}, false, err
	}
	accepted, err := m.ledger.ConfirmedCount(ctx, jobID)
	if err != nil {
		return domain.Job{}, false, err
	}

	var next domain.JobStatus
	switch {
	case job.Status.Staffable() && accepted >= job.RequiredSlots:
		next = domain.JobStatusAssigned
	case job.Status == domain.JobStatusAssigned && accepted < job.RequiredSlots:
		next = domain.JobStatusOpen
	default:
		return job, false, nil
	}

	now := m.clock.Now()
	if err := job.Transition(next, now); err != nil {
		return domain.Job{}, false, err
	}
	if err := m.jobs.UpdateJobStatus(ctx, job.ID, job.Status, now); err != nil {
		return domain.Job{}, false, err
	}
	return job, true, nil
}

// Escalate surfaces a job whose open slots could not be matched.
func (m *StateMachine) Escalate(ctx context.Context, jobID, reason string) (domain.Job, error) {
	var job domain.Job
	var changed bool
	err := m.jobs.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = m.jobs.GetJobForUpdate(txCtx, jobID)
		if err != nil {
			return err
		}
		if job.Status != domain.JobStatusOpen || job.OpenSlots() == 0 {
			return nil
		}
		now := m.clock.Now()
		if err := job.Transition(domain.JobStatusPendingAssignment, now); err != nil {
			return err
		}
		changed = true
		return m.jobs.UpdateJobStatus(txCtx, job.ID, job.Status, now)
	})
	if err != nil {
		return domain.Job{}, err
	}
	if changed {
		m.logger.Warn("job needs manual staffing", "job_id", job.ID, "open_slots", job.OpenSlots(), "reason", reason)
		m.emitJob(ctx, job, domain.EventEscalated, reason)
	}
	return job, nil
}

// Confirm locks in a fully staffed job's service date.
func (m *StateMachine) Confirm(ctx context.Context, actor domain.Actor, jobID string) (domain.Job, error) {
	if !actor.CanManageStaffing() {
		return domain.Job{}, domain.ErrForbidden
	}
	job, err := m.transition(ctx, jobID, domain.JobStatusConfirmed)
	if err != nil {
		return domain.Job{}, err
	}
	m.emitJob(ctx, job, domain.EventConfirmed, "")
	return job, nil
}

type CompleteResult struct {
	Job     domain.Job
	Payment domain.PaymentAuthorization
}

// Complete records service delivery and captures the payment. A failed
// capture leaves the job completed and the payment flagged for remediation;
// the error wraps ErrPaymentCaptureFailed.
func (m *StateMachine) Complete(ctx context.Context, actor domain.Actor, jobID string, finalAmount *int64) (CompleteResult, error) {
	if !actor.CanManageStaffing() {
		return CompleteResult{}, domain.ErrForbidden
	}

	var job domain.Job
	var already bool
	err := m.jobs.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = m.jobs.GetJobForUpdate(txCtx, jobID)
		if err != nil {
			return err
		}
		if job.Status == domain.JobStatusCompleted {
			already = true
			return nil
		}
		now := m.clock.Now()
		if err := job.Transition(domain.JobStatusCompleted, now); err != nil {
			return err
		}
		return m.jobs.UpdateJobStatus(txCtx, job.ID, job.Status, now)
	})
	if err != nil {
		return CompleteResult{}, err
	}
	if !already {
		m.emitJob(ctx, job, domain.EventCompleted, "")
	}

	payment, err := m.payments.Capture(ctx, job, finalAmount)
	if err != nil {
		return CompleteResult{Job: job, Payment: payment}, err
	}
	return CompleteResult{Job: job, Payment: payment}, nil
}

type CancelResult struct {
	Job        domain.Job
	Payment    domain.PaymentAuthorization
	Superseded []domain.Assignment
}

// Cancel ends a job and releases its authorization in the same call.
// Cancelling an already cancelled job repeats the release, which is idempotent.
func (m *StateMachine) Cancel(ctx context.Context, actor domain.Actor, jobID, reason string) (CancelResult, error) {
	var job domain.Job
	var superseded []domain.Assignment
	var changed bool

	err := m.jobs.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = m.jobs.GetJobForUpdate(txCtx, jobID)
		if err != nil {
			return err
		}
		if !actor.CanCancel(job.CustomerID) {
			return domain.ErrForbidden
		}
		if job.Status == domain.JobStatusCancelled {
			return nil
		}

		now := m.clock.Now()
		if err := job.Transition(domain.JobStatusCancelled, now); err != nil {
			return err
		}
		if err := m.jobs.UpdateJobStatus(txCtx, job.ID, job.Status, now); err != nil {
			return err
		}
		superseded, err = m.jobs.SupersedeActive(txCtx, job.ID, now)
		if err != nil {
			return err
		}
		if err := m.jobs.ResetReservedSlots(txCtx, job.ID, now); err != nil {
			return err
		}
		job.ReservedSlots = 0
		changed = true
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}

	if changed {
		m.logger.Info("job cancelled", "job_id", job.ID, "superseded", len(superseded), "reason", reason)
		m.emitJob(ctx, job, domain.EventCancelled, reason)
	}

	result := CancelResult{Job: job, Superseded: superseded}
	payment, err := m.payments.Release(ctx, job.ID)
	result.Payment = payment
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// transition loads, validates and stores a single status change.
func (m *StateMachine) transition(ctx context.Context, jobID string, next domain.JobStatus) (domain.Job, error) {
	var job domain.Job
	err := m.jobs.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = m.jobs.GetJobForUpdate(txCtx, jobID)
		if err != nil {
			return err
		}
		from := job.Status
		now := m.clock.Now()
		if err := job.Transition(next, now); err != nil {
			return fmt.Errorf("%s -> %s: %w", from, next, err)
		}
		return m.jobs.UpdateJobStatus(txCtx, job.ID, job.Status, now)
	})
	if err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (m *StateMachine) emitJob(ctx context.Context, job domain.Job, typ domain.EventType, detail string) {
	m.events.emit(ctx, domain.LifecycleEvent{
		JobID:      job.ID,
		Type:       typ,
		JobStatus:  job.Status,
		Detail:     detail,
		OccurredAt: m.clock.Now(),
	})
}
