package app

import (
	"context"
	"time"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

// Transactor runs fn in a transaction carried by the context. Nested calls
// join the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// JobRepository stores jobs, their assignments and the per-job slot counter.
//
// Lock order for every write path is job row, then assignments, then
// payment, then discount rows.
type JobRepository interface {
	Transactor
	CreateJob(ctx context.Context, job domain.Job) error
	GetJob(ctx context.Context, id string) (domain.Job, error)
	GetJobForUpdate(ctx context.Context, id string) (domain.Job, error)
	UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, now time.Time) error
	ListJobsByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error)

	// TryReserveSlot increments reserved_slots only while it is below
	// required_slots and the job is staffable. It reports whether a slot was taken.
	TryReserveSlot(ctx context.Context, jobID string, now time.Time) (bool, error)
	// ReleaseSlots decrements reserved_slots by n, never below zero.
	ReleaseSlots(ctx context.Context, jobID string, n int, now time.Time) error
	ResetReservedSlots(ctx context.Context, jobID string, now time.Time) error

	CreateAssignment(ctx context.Context, a domain.Assignment) error
	GetAssignment(ctx context.Context, id string) (domain.Assignment, error)
	LatestAssignment(ctx context.Context, jobID, boosterID string) (*domain.Assignment, error)
	ListAssignments(ctx context.Context, jobID string) ([]domain.Assignment, error)
	// UpdateAssignmentStatus moves an assignment from one status to another.
	// It returns ErrAssignmentNotFound when the row is not in status from.
	UpdateAssignmentStatus(ctx context.Context, id string, from, to domain.AssignmentStatus, at time.Time) error
	// ExpirePending marks the job's overdue pending assignments expired and returns them.
	ExpirePending(ctx context.Context, jobID string, now time.Time) ([]domain.Assignment, error)
	// ListOverdueJobIDs returns jobs that hold pending reservations past their bound.
	ListOverdueJobIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	SupersedeActive(ctx context.Context, jobID string, now time.Time) ([]domain.Assignment, error)
	CountAssignments(ctx context.Context, jobID string, status domain.AssignmentStatus) (int, error)
}

// BoosterRepository is the read side of the booster directory plus the
// rejection counter the engine maintains.
type BoosterRepository interface {
	// ListQualifiedBoosters returns active boosters whose specialties cover required.
	ListQualifiedBoosters(ctx context.Context, required domain.SpecialtySet) ([]domain.Booster, error)
	GetBooster(ctx context.Context, id string) (domain.Booster, error)
	// BusyBoosterIDs returns boosters blocked in window, either by their calendar
	// or by an active assignment on another non-terminal job.
	BusyBoosterIDs(ctx context.Context, window domain.TimeWindow, excludeJobID string) (map[string]struct{}, error)
	IncrementRejections(ctx context.Context, boosterID string) error
}

// PaymentRepository stores the one authorization each job owns.
type PaymentRepository interface {
	Transactor
	CreatePayment(ctx context.Context, p domain.PaymentAuthorization) error
	GetPaymentByJob(ctx context.Context, jobID string) (domain.PaymentAuthorization, error)
	GetPaymentByJobForUpdate(ctx context.Context, jobID string) (domain.PaymentAuthorization, error)
	UpdatePayment(ctx context.Context, p domain.PaymentAuthorization) error
	// ListStrandedAuthorizations returns authorizations still held for cancelled jobs.
	ListStrandedAuthorizations(ctx context.Context, limit int) ([]domain.PaymentAuthorization, error)
}

// DiscountRepository stores discount codes and their redemptions.
type DiscountRepository interface {
	Transactor
	GetDiscount(ctx context.Context, code string) (domain.DiscountCode, error)
	// GetDiscountForUpdate reads the code and locks it until the surrounding
	// transaction ends.
	GetDiscountForUpdate(ctx context.Context, code string) (domain.DiscountCode, error)
	CountCustomerRedemptions(ctx context.Context, code, customerID string) (int, error)
	// Redeem records a redemption if the global cap still allows one.
	// It reports false, without writing, when the cap is reached.
	Redeem(ctx context.Context, r domain.DiscountRedemption) (bool, error)
	UndoRedemption(ctx context.Context, code, jobID string) error
}

// DirectoryWriter loads booster and discount data the engine itself only
// reads. The seed command and tests use it.
type DirectoryWriter interface {
	UpsertBooster(ctx context.Context, b domain.Booster) error
	AddUnavailability(ctx context.Context, u domain.Unavailability) error
	UpsertDiscount(ctx context.Context, d domain.DiscountCode) error
}
