package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

const defaultRejectionPenaltyStep = 3

// MatchingEngine proposes boosters for a job's open slots.
type MatchingEngine struct {
	jobs        JobRepository
	pool        *CandidatePool
	ledger      *CapacityLedger
	machine     *StateMachine
	clock       clock.Clock
	events      emitter
	metrics     Metrics
	logger      *slog.Logger
	penaltyStep int
}

// Rank returns candidates for the job's open slots in offer order.
//
// Boosters with any assignment history on the job are excluded, so a
// booster who declined or let a reservation lapse is not offered the same job
// again. Repeat decliners elsewhere sink by penalty tier but stay eligible.
func (e *MatchingEngine) Rank(ctx context.Context, job domain.Job) ([]domain.Booster, error) {
	history, err := e.jobs.ListAssignments(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	exclude := make([]string, 0, len(history))
	for _, a := range history {
		if a.Status == domain.AssignmentStatusSuperseded {
			continue
		}
		exclude = append(exclude, a.BoosterID)
	}

	candidates, err := e.pool.FindCandidates(ctx, CandidateQuery{
		Specialties: job.Specialties,
		Location:    job.Location,
		Window:      job.Window,
		ExcludeIDs:  exclude,
		JobID:       job.ID,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return e.penaltyTier(candidates[i]) < e.penaltyTier(candidates[j])
	})
	return candidates, nil
}

func (e *MatchingEngine) penaltyTier(b domain.Booster) int {
	if e.penaltyStep <= 0 {
		return 0
	}
	return b.RejectionCount / e.penaltyStep
}

type BroadcastResult struct {
	Job       domain.Job
	Notified  []string
	Escalated bool
}

// Broadcast offers an open job to every qualified booster. Slots go to
// whoever applies first through the capacity ledger.
func (e *MatchingEngine) Broadcast(ctx context.Context, actor domain.Actor, jobID string) (BroadcastResult, error) {
	if !actor.CanManageStaffing() {
		return BroadcastResult{}, domain.ErrForbidden
	}
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return BroadcastResult{}, err
	}
	if !job.Status.Staffable() || job.OpenSlots() == 0 {
		return BroadcastResult{}, domain.ErrJobNotStaffable
	}

	candidates, err := e.Rank(ctx, job)
	if err != nil {
		return BroadcastResult{}, err
	}
	if len(candidates) == 0 {
		e.metrics.MatchingAttempt("broadcast", "exhausted")
		job, err = e.machine.Escalate(ctx, job.ID, "broadcast found no qualified boosters")
		if err != nil {
			return BroadcastResult{}, err
		}
		return BroadcastResult{Job: job, Escalated: true}, nil
	}

	notified := make([]string, 0, len(candidates))
	for _, b := range candidates {
		e.events.emit(ctx, domain.LifecycleEvent{
			JobID:      job.ID,
			Type:       domain.EventBroadcast,
			BoosterID:  b.ID,
			JobStatus:  job.Status,
			OccurredAt: e.clock.Now(),
		})
		notified = append(notified, b.ID)
	}
	e.metrics.MatchingAttempt("broadcast", "offered")
	e.logger.Info("job broadcast", "job_id", job.ID, "candidates", len(notified))
	return BroadcastResult{Job: job, Notified: notified}, nil
}

type AutoAssignResult struct {
	Job       domain.Job
	Reserved  []domain.SlotToken
	Escalated bool
}

// AutoAssign reserves a pending slot for the next ranked booster until the
// job has no open slots or the pool runs dry.
func (e *MatchingEngine) AutoAssign(ctx context.Context, actor domain.Actor, jobID string) (AutoAssignResult, error) {
	if !actor.CanManageStaffing() {
		return AutoAssignResult{}, domain.ErrForbidden
	}
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return AutoAssignResult{}, err
	}
	if !job.Status.Staffable() {
		return AutoAssignResult{}, domain.ErrInvalidTransition
	}

	// Lazily expire before counting, so stale reservations do not look like filled slots.
	if _, err := e.ledger.ExpireStale(ctx, job.ID); err != nil {
		return AutoAssignResult{}, err
	}
	if job, err = e.jobs.GetJob(ctx, jobID); err != nil {
		return AutoAssignResult{}, err
	}

	remaining := job.OpenSlots()
	if remaining == 0 {
		return AutoAssignResult{Job: job}, nil
	}

	candidates, err := e.Rank(ctx, job)
	if err != nil {
		return AutoAssignResult{}, err
	}

	var (
		reserved []domain.SlotToken
		lapsed   []domain.Assignment
	)
	full := false
	for _, b := range candidates {
		if remaining == 0 {
			break
		}
		res, err := e.ledger.ReserveSlot(ctx, ReserveInput{
			JobID:     job.ID,
			BoosterID: b.ID,
			Origin:    domain.AssignmentOriginAuto,
		})
		if err != nil {
			if errors.Is(err, domain.ErrBoosterAlreadyOnJob) {
				continue
			}
			if errors.Is(err, domain.ErrCapacityExceeded) || errors.Is(err, domain.ErrJobNotStaffable) {
				// Another writer filled or closed the job first.
				full = true
				break
			}
			return AutoAssignResult{}, err
		}
		reserved = append(reserved, res.Token)
		lapsed = append(lapsed, res.Expired...)
		remaining--
		e.events.emit(ctx, domain.LifecycleEvent{
			JobID:      job.ID,
			Type:       domain.EventAssigned,
			BoosterID:  b.ID,
			OccurredAt: e.clock.Now(),
		})
	}
	e.RefillLapsed(ctx, job.ID, lapsed)

	if job, err = e.jobs.GetJob(ctx, jobID); err != nil {
		return AutoAssignResult{}, err
	}
	result := AutoAssignResult{Job: job, Reserved: reserved}
	if remaining > 0 && !full {
		e.metrics.MatchingAttempt("auto", "exhausted")
		job, err = e.machine.Escalate(ctx, job.ID, "auto-assign ran out of candidates")
		if err != nil {
			return AutoAssignResult{}, err
		}
		result.Job = job
		result.Escalated = true
		return result, nil
	}
	e.metrics.MatchingAttempt("auto", "reserved")
	return result, nil
}

// AssignManual lets an admin reserve a slot for a specific booster.
// Skill and calendar checks are the admin's call; the booster must be active.
func (e *MatchingEngine) AssignManual(ctx context.Context, actor domain.Actor, jobID, boosterID string) (domain.SlotToken, error) {
	if !actor.CanManageStaffing() {
		return domain.SlotToken{}, domain.ErrForbidden
	}
	b, err := e.pool.boosters.GetBooster(ctx, boosterID)
	if err != nil {
		return domain.SlotToken{}, err
	}
	if !b.Active {
		return domain.SlotToken{}, domain.ErrBoosterNotFound
	}
	res, err := e.ledger.ReserveSlot(ctx, ReserveInput{
		JobID:     jobID,
		BoosterID: boosterID,
		Origin:    domain.AssignmentOriginManual,
	})
	if err != nil {
		return domain.SlotToken{}, err
	}
	e.events.emit(ctx, domain.LifecycleEvent{
		JobID:      jobID,
		Type:       domain.EventAssigned,
		BoosterID:  boosterID,
		Detail:     "manual",
		OccurredAt: e.clock.Now(),
	})
	e.RefillLapsed(ctx, jobID, res.Expired)
	return res.Token, nil
}

// FindReplacement makes one re-matching attempt for one released slot.
// It returns (nil, nil) when another writer already refilled the slot and
// ErrNoCandidateAvailable after escalating the job.
func (e *MatchingEngine) FindReplacement(ctx context.Context, jobID, replacedBoosterID string) (*domain.SlotToken, error) {
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Staffable() || job.OpenSlots() == 0 {
		return nil, nil
	}

	candidates, err := e.Rank(ctx, job)
	if err != nil {
		return nil, err
	}
	for _, b := range candidates {
		res, err := e.ledger.ReserveSlot(ctx, ReserveInput{
			JobID:     job.ID,
			BoosterID: b.ID,
			Origin:    domain.AssignmentOriginReplace,
		})
		if err != nil {
			if errors.Is(err, domain.ErrBoosterAlreadyOnJob) {
				continue
			}
			if errors.Is(err, domain.ErrCapacityExceeded) || errors.Is(err, domain.ErrJobNotStaffable) {
				e.metrics.MatchingAttempt("replacement", "refilled")
				return nil, nil
			}
			return nil, err
		}
		e.metrics.MatchingAttempt("replacement", "reserved")
		e.logger.Info("replacement reserved", "job_id", job.ID, "booster_id", b.ID, "replaces", replacedBoosterID)
		e.events.emit(ctx, domain.LifecycleEvent{
			JobID:      job.ID,
			Type:       domain.EventReassigned,
			BoosterID:  b.ID,
			Detail:     replacedBoosterID,
			OccurredAt: e.clock.Now(),
		})
		e.RefillLapsed(ctx, job.ID, res.Expired)
		return &res.Token, nil
	}

	e.metrics.MatchingAttempt("replacement", "exhausted")
	if _, err := e.machine.Escalate(ctx, job.ID, "no replacement booster available"); err != nil {
		return nil, err
	}
	return nil, domain.ErrNoCandidateAvailable
}

// RefillLapsed makes one replacement attempt per reservation that a reserve
// call expired on the way. Those rows are no longer pending, so the sweeper
// would never see them. It stops once the job is full or escalated.
func (e *MatchingEngine) RefillLapsed(ctx context.Context, jobID string, lapsed []domain.Assignment) {
	for _, a := range lapsed {
		token, err := e.FindReplacement(ctx, jobID, a.BoosterID)
		if err != nil {
			if !errors.Is(err, domain.ErrNoCandidateAvailable) {
				e.logger.Warn("refill lapsed reservation", "job_id", jobID, "booster_id", a.BoosterID, "err", err)
			}
			return
		}
		if token == nil {
			return
		}
	}
}
