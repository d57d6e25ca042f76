package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// BookingService is the intake path: validate, quote, authorize, persist.
type BookingService struct {
	jobs            JobRepository
	payments        PaymentRepository
	paymentManager  *PaymentManager
	matcher         *MatchingEngine
	clock           clock.Clock
	logger          *slog.Logger
	defaultCurrency string
}

type CreateJobInput struct {
	CustomerID    string
	ClientType    domain.ClientType
	Source        domain.JobSource
	Specialties   []string
	RequiredSlots int
	Window        domain.TimeWindow
	Location      domain.Location
	AmountMinor   int64
	Currency      string
	DiscountCode  string
	PaymentToken  string
	Notes         string
	// AutoAssign starts matching right after the booking is stored.
	AutoAssign bool
}

type CreateJobResult struct {
	Job        domain.Job
	Payment    domain.PaymentAuthorization
	AutoAssign *AutoAssignResult
}

// CreateJob books a job. Payment is authorized before any row is written;
// a failed authorization leaves nothing behind.
func (s *BookingService) CreateJob(ctx context.Context, actor domain.Actor, in CreateJobInput) (CreateJobResult, error) {
	job, err := s.buildJob(actor, in)
	if err != nil {
		return CreateJobResult{}, err
	}

	quote, err := s.paymentManager.Quote(ctx, job.AmountMinor, job.Currency, in.DiscountCode, job.CustomerID)
	if err != nil {
		return CreateJobResult{}, err
	}
	payment, err := s.paymentManager.Authorize(ctx, job.ID, quote, in.PaymentToken)
	if err != nil {
		return CreateJobResult{}, err
	}

	err = s.jobs.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.jobs.CreateJob(txCtx, job); err != nil {
			return err
		}
		return s.payments.CreatePayment(txCtx, payment)
	})
	if err != nil {
		s.paymentManager.Void(ctx, payment)
		return CreateJobResult{}, err
	}

	s.logger.Info("job booked",
		"job_id", job.ID,
		"customer_id", job.CustomerID,
		"slots", job.RequiredSlots,
		"amount_minor", payment.AmountMinor,
		"discount_code", payment.DiscountCode,
	)

	result := CreateJobResult{Job: job, Payment: payment}
	if in.AutoAssign {
		assigned, err := s.matcher.AutoAssign(ctx, domain.SystemActor, job.ID)
		if err != nil {
			s.logger.Warn("auto-assign after booking", "job_id", job.ID, "err", err)
		} else {
			result.AutoAssign = &assigned
			result.Job = assigned.Job
		}
	}
	return result, nil
}

func (s *BookingService) buildJob(actor domain.Actor, in CreateJobInput) (domain.Job, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return domain.Job{}, domain.ErrCustomerRequired
	}
	if !actor.CanBook(in.CustomerID) {
		return domain.Job{}, domain.ErrForbidden
	}
	if in.ClientType == "" {
		in.ClientType = domain.ClientTypePrivate
	}
	if !in.ClientType.Valid() {
		return domain.Job{}, domain.ErrInvalidClientType
	}
	if in.Source == "" {
		in.Source = domain.JobSourceBookingForm
	}
	specialties, err := domain.ParseSpecialties(in.Specialties)
	if err != nil {
		return domain.Job{}, err
	}
	if in.RequiredSlots < 1 {
		return domain.Job{}, domain.ErrInvalidSlotCount
	}
	if !in.Window.Valid() {
		return domain.Job{}, domain.ErrInvalidWindow
	}
	if in.AmountMinor <= 0 {
		return domain.Job{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := s.clock.Now()
	return domain.Job{
		ID:            newUUID(),
		CustomerID:    in.CustomerID,
		ClientType:    in.ClientType,
		Source:        in.Source,
		Specialties:   specialties,
		RequiredSlots: in.RequiredSlots,
		Status:        domain.JobStatusOpen,
		Window:        in.Window,
		Location:      in.Location,
		AmountMinor:   in.AmountMinor,
		Currency:      currency,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

type JobView struct {
	Job         domain.Job
	Assignments []domain.Assignment
	Payment     *domain.PaymentAuthorization
}

// GetJob returns a job with its assignment history and payment state.
// Boosters only see jobs they hold or held an assignment on.
func (s *BookingService) GetJob(ctx context.Context, actor domain.Actor, id string) (JobView, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	assignments, err := s.jobs.ListAssignments(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	if !canView(actor, job, assignments) {
		return JobView{}, domain.ErrForbidden
	}

	view := JobView{Job: job, Assignments: assignments}
	if actor.Role == domain.RoleBooster {
		return view, nil
	}
	p, err := s.payments.GetPaymentByJob(ctx, id)
	switch {
	case err == nil:
		view.Payment = &p
	case !errors.Is(err, domain.ErrPaymentNotFound):
		return JobView{}, err
	}
	return view, nil
}

func canView(actor domain.Actor, job domain.Job, assignments []domain.Assignment) bool {
	if actor.CanCancel(job.CustomerID) {
		return true
	}
	for _, a := range assignments {
		if actor.CanActAsBooster(a.BoosterID) {
			return true
		}
	}
	return false
}

// ListJobs returns jobs in one status, the admin queue for pending_assignment.
func (s *BookingService) ListJobs(ctx context.Context, actor domain.Actor, status domain.JobStatus, limit int) ([]domain.Job, error) {
	if !actor.CanManageStaffing() {
		return nil, domain.ErrForbidden
	}
	if status == "" {
		status = domain.JobStatusPendingAssignment
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.jobs.ListJobsByStatus(ctx, status, limit)
}

// Candidates previews the ranked boosters matching would offer.
func (s *BookingService) Candidates(ctx context.Context, actor domain.Actor, jobID string) ([]domain.Booster, error) {
	if !actor.CanManageStaffing() {
		return nil, domain.ErrForbidden
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.matcher.Rank(ctx, job)
}
