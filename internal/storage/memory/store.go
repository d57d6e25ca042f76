// Package memory is an in-process implementation of the engine's
// repositories. It backs local development and the engine tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

type txKey struct{}

// Store keeps all state behind one mutex. A transaction holds the mutex for
// its whole duration and restores a snapshot if fn fails, which makes every
// transaction serializable.
type Store struct {
	mu sync.Mutex

	jobs           map[string]domain.Job
	assignments    []domain.Assignment
	assignmentIdx  map[string]int
	boosters       map[string]domain.Booster
	unavailability []domain.Unavailability
	payments       map[string]domain.PaymentAuthorization
	discounts      map[string]domain.DiscountCode
	redemptions    []domain.DiscountRedemption
}

func New() *Store {
	return &Store{
		jobs:          make(map[string]domain.Job),
		assignmentIdx: make(map[string]int),
		boosters:      make(map[string]domain.Booster),
		payments:      make(map[string]domain.PaymentAuthorization),
		discounts:     make(map[string]domain.DiscountCode),
	}
}

type snapshot struct {
	jobs           map[string]domain.Job
	assignments    []domain.Assignment
	assignmentIdx  map[string]int
	boosters       map[string]domain.Booster
	unavailability []domain.Unavailability
	payments       map[string]domain.PaymentAuthorization
	discounts      map[string]domain.DiscountCode
	redemptions    []domain.DiscountRedemption
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		jobs:           maps.Clone(s.jobs),
		assignments:    slices.Clone(s.assignments),
		assignmentIdx:  maps.Clone(s.assignmentIdx),
		boosters:       maps.Clone(s.boosters),
		unavailability: slices.Clone(s.unavailability),
		payments:       maps.Clone(s.payments),
		discounts:      maps.Clone(s.discounts),
		redemptions:    slices.Clone(s.redemptions),
	}
}

func (s *Store) restore(snap snapshot) {
	s.jobs = snap.jobs
	s.assignments = snap.assignments
	s.assignmentIdx = snap.assignmentIdx
	s.boosters = snap.boosters
	s.unavailability = snap.unavailability
	s.payments = snap.payments
	s.discounts = snap.discounts
	s.redemptions = snap.redemptions
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store mutex unless ctx already runs inside a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Jobs.

func (s *Store) CreateJob(ctx context.Context, job domain.Job) error {
	defer s.lock(ctx)()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (domain.Job, error) {
	defer s.lock(ctx)()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

// GetJobForUpdate is GetJob; the transaction already holds the store lock.
func (s *Store) GetJobForUpdate(ctx context.Context, id string) (domain.Job, error) {
	return s.GetJob(ctx, id)
}

func (s *Store) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, now time.Time) error {
	defer s.lock(ctx)()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	job.UpdatedAt = now
	s.jobs[id] = job
	return nil
}

func (s *Store) ListJobsByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	defer s.lock(ctx)()
	var out []domain.Job
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TryReserveSlot(ctx context.Context, jobID string, now time.Time) (bool, error) {
	defer s.lock(ctx)()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, domain.ErrJobNotFound
	}
	if !job.Status.Staffable() || job.ReservedSlots >= job.RequiredSlots {
		return false, nil
	}
	job.ReservedSlots++
	job.UpdatedAt = now
	s.jobs[jobID] = job
	return true, nil
}

func (s *Store) ReleaseSlots(ctx context.Context, jobID string, n int, now time.Time) error {
	defer s.lock(ctx)()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.ReservedSlots = max(job.ReservedSlots-n, 0)
	job.UpdatedAt = now
	s.jobs[jobID] = job
	return nil
}

func (s *Store) ResetReservedSlots(ctx context.Context, jobID string, now time.Time) error {
	defer s.lock(ctx)()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.ReservedSlots = 0
	job.UpdatedAt = now
	s.jobs[jobID] = job
	return nil
}

// Assignments.

func (s *Store) CreateAssignment(ctx context.Context, a domain.Assignment) error {
	defer s.lock(ctx)()
	if _, ok := s.jobs[a.JobID]; !ok {
		return domain.ErrJobNotFound
	}
	if _, ok := s.assignmentIdx[a.ID]; ok {
		return fmt.Errorf("assignment %s already exists", a.ID)
	}
	if a.Status.Active() {
		for _, existing := range s.assignments {
			if existing.JobID == a.JobID && existing.BoosterID == a.BoosterID && existing.Status.Active() {
				return domain.ErrBoosterAlreadyOnJob
			}
		}
	}
	s.assignmentIdx[a.ID] = len(s.assignments)
	s.assignments = append(s.assignments, a)
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	defer s.lock(ctx)()
	i, ok := s.assignmentIdx[id]
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	return s.assignments[i], nil
}

func (s *Store) LatestAssignment(ctx context.Context, jobID, boosterID string) (*domain.Assignment, error) {
	defer s.lock(ctx)()
	for i := len(s.assignments) - 1; i >= 0; i-- {
		a := s.assignments[i]
		if a.JobID == jobID && a.BoosterID == boosterID {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Store) ListAssignments(ctx context.Context, jobID string) ([]domain.Assignment, error) {
	defer s.lock(ctx)()
	var out []domain.Assignment
	for _, a := range s.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) UpdateAssignmentStatus(ctx context.Context, id string, from, to domain.AssignmentStatus, at time.Time) error {
	defer s.lock(ctx)()
	i, ok := s.assignmentIdx[id]
	if !ok || s.assignments[i].Status != from {
		return domain.ErrAssignmentNotFound
	}
	a := s.assignments[i]
	a.Status = to
	if to == domain.AssignmentStatusAccepted || to == domain.AssignmentStatusRejected {
		a.RespondedAt = &at
	}
	s.assignments[i] = a
	return nil
}

func (s *Store) ExpirePending(ctx context.Context, jobID string, now time.Time) ([]domain.Assignment, error) {
	defer s.lock(ctx)()
	var out []domain.Assignment
	for i, a := range s.assignments {
		if a.JobID != jobID || !a.Expired(now) {
			continue
		}
		a.Status = domain.AssignmentStatusExpired
		s.assignments[i] = a
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListOverdueJobIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	defer s.lock(ctx)()
	seen := make(map[string]struct{})
	var out []string
	for _, a := range s.assignments {
		if !a.Expired(now) {
			continue
		}
		if _, ok := seen[a.JobID]; ok {
			continue
		}
		if job, ok := s.jobs[a.JobID]; !ok || job.Status.Terminal() {
			continue
		}
		seen[a.JobID] = struct{}{}
		out = append(out, a.JobID)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SupersedeActive(ctx context.Context, jobID string, now time.Time) ([]domain.Assignment, error) {
	defer s.lock(ctx)()
	var out []domain.Assignment
	for i, a := range s.assignments {
		if a.JobID != jobID || !a.Status.Active() {
			continue
		}
		a.Status = domain.AssignmentStatusSuperseded
		if a.RespondedAt == nil {
			at := now
			a.RespondedAt = &at
		}
		s.assignments[i] = a
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) CountAssignments(ctx context.Context, jobID string, status domain.AssignmentStatus) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Status == status {
			n++
		}
	}
	return n, nil
}

// Boosters.

func (s *Store) UpsertBooster(ctx context.Context, b domain.Booster) error {
	defer s.lock(ctx)()
	b.Specialties = b.Specialties.Normalize()
	if existing, ok := s.boosters[b.ID]; ok && b.RejectionCount == 0 {
		b.RejectionCount = existing.RejectionCount
	}
	s.boosters[b.ID] = b
	return nil
}

func (s *Store) AddUnavailability(ctx context.Context, u domain.Unavailability) error {
	defer s.lock(ctx)()
	if _, ok := s.boosters[u.BoosterID]; !ok {
		return domain.ErrBoosterNotFound
	}
	s.unavailability = append(s.unavailability, u)
	return nil
}

func (s *Store) ListQualifiedBoosters(ctx context.Context, required domain.SpecialtySet) ([]domain.Booster, error) {
	defer s.lock(ctx)()
	var out []domain.Booster
	for _, b := range s.boosters {
		if b.Active && b.Specialties.Covers(required) {
			out = append(out, s.withActiveSlots(b))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *Store) GetBooster(ctx context.Context, id string) (domain.Booster, error) {
	defer s.lock(ctx)()
	b, ok := s.boosters[id]
	if !ok {
		return domain.Booster{}, domain.ErrBoosterNotFound
	}
	return s.withActiveSlots(b), nil
}

func (s *Store) withActiveSlots(b domain.Booster) domain.Booster {
	b.ActiveSlots = 0
	for _, a := range s.assignments {
		if a.BoosterID != b.ID || !a.Status.Active() {
			continue
		}
		if job, ok := s.jobs[a.JobID]; ok && !job.Status.Terminal() {
			b.ActiveSlots++
		}
	}
	return b
}

func (s *Store) BusyBoosterIDs(ctx context.Context, window domain.TimeWindow, excludeJobID string) (map[string]struct{}, error) {
	defer s.lock(ctx)()
	busy := make(map[string]struct{})
	for _, u := range s.unavailability {
		if u.Window.Overlaps(window) {
			busy[u.BoosterID] = struct{}{}
		}
	}
	for _, a := range s.assignments {
		if a.JobID == excludeJobID || !a.Status.Active() {
			continue
		}
		job, ok := s.jobs[a.JobID]
		if !ok || job.Status.Terminal() {
			continue
		}
		if job.Window.Overlaps(window) {
			busy[a.BoosterID] = struct{}{}
		}
	}
	return busy, nil
}

func (s *Store) IncrementRejections(ctx context.Context, boosterID string) error {
	defer s.lock(ctx)()
	b, ok := s.boosters[boosterID]
	if !ok {
		return domain.ErrBoosterNotFound
	}
	b.RejectionCount++
	s.boosters[boosterID] = b
	return nil
}

// Payments.

func (s *Store) CreatePayment(ctx context.Context, p domain.PaymentAuthorization) error {
	defer s.lock(ctx)()
	if _, ok := s.jobs[p.JobID]; !ok {
		return domain.ErrJobNotFound
	}
	if _, ok := s.payments[p.JobID]; ok {
		return fmt.Errorf("payment for job %s already exists", p.JobID)
	}
	s.payments[p.JobID] = p
	return nil
}

func (s *Store) GetPaymentByJob(ctx context.Context, jobID string) (domain.PaymentAuthorization, error) {
	defer s.lock(ctx)()
	p, ok := s.payments[jobID]
	if !ok {
		return domain.PaymentAuthorization{}, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Store) GetPaymentByJobForUpdate(ctx context.Context, jobID string) (domain.PaymentAuthorization, error) {
	return s.GetPaymentByJob(ctx, jobID)
}

func (s *Store) UpdatePayment(ctx context.Context, p domain.PaymentAuthorization) error {
	defer s.lock(ctx)()
	if _, ok := s.payments[p.JobID]; !ok {
		return domain.ErrPaymentNotFound
	}
	s.payments[p.JobID] = p
	return nil
}

func (s *Store) ListStrandedAuthorizations(ctx context.Context, limit int) ([]domain.PaymentAuthorization, error) {
	defer s.lock(ctx)()
	var out []domain.PaymentAuthorization
	for jobID, p := range s.payments {
		if p.Status != domain.PaymentStatusAuthorized {
			continue
		}
		if job, ok := s.jobs[jobID]; ok && job.Status == domain.JobStatusCancelled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.Before(out[k].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Discounts.

func (s *Store) UpsertDiscount(ctx context.Context, d domain.DiscountCode) error {
	defer s.lock(ctx)()
	if existing, ok := s.discounts[d.Code]; ok {
		d.RedemptionCount = existing.RedemptionCount
	}
	s.discounts[d.Code] = d
	return nil
}

func (s *Store) GetDiscount(ctx context.Context, code string) (domain.DiscountCode, error) {
	defer s.lock(ctx)()
	d, ok := s.discounts[code]
	if !ok {
		return domain.DiscountCode{}, domain.ErrDiscountNotFound
	}
	return d, nil
}

// GetDiscountForUpdate is GetDiscount; the store lock already serializes
// transactions.
func (s *Store) GetDiscountForUpdate(ctx context.Context, code string) (domain.DiscountCode, error) {
	return s.GetDiscount(ctx, code)
}

func (s *Store) CountCustomerRedemptions(ctx context.Context, code, customerID string) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, r := range s.redemptions {
		if r.Code == code && r.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) Redeem(ctx context.Context, r domain.DiscountRedemption) (bool, error) {
	defer s.lock(ctx)()
	d, ok := s.discounts[r.Code]
	if !ok {
		return false, domain.ErrDiscountNotFound
	}
	if d.MaxRedemptions != nil && d.RedemptionCount >= *d.MaxRedemptions {
		return false, nil
	}
	d.RedemptionCount++
	s.discounts[r.Code] = d
	s.redemptions = append(s.redemptions, r)
	return true, nil
}

func (s *Store) UndoRedemption(ctx context.Context, code, jobID string) error {
	defer s.lock(ctx)()
	for i, r := range s.redemptions {
		if r.Code != code || r.JobID != jobID {
			continue
		}
		s.redemptions = slices.Delete(s.redemptions, i, i+1)
		if d, ok := s.discounts[code]; ok && d.RedemptionCount > 0 {
			d.RedemptionCount--
			s.discounts[code] = d
		}
		return nil
	}
	return nil
}
