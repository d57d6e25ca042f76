package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
	"github.com/bb-booking/beautyboosters/internal/payment/sandbox"
	"github.com/bb-booking/beautyboosters/internal/storage/memory"
)

var (
	testNow   = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	jobStart  = time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC)
	admin     = domain.Actor{ID: "adm_1", Role: domain.RoleAdmin}
	customer  = domain.Actor{ID: "cus_1", Role: domain.RoleCustomer}
	reserveIn = 24 * time.Hour
)

type recorder struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (r *recorder) Publish(_ context.Context, ev domain.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types(jobID string) []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EventType
	for _, ev := range r.events {
		if ev.JobID == jobID {
			out = append(out, ev.Type)
		}
	}
	return out
}

type harness struct {
	store    *memory.Store
	provider *sandbox.Provider
	clock    *clock.Manual
	events   *recorder
	engine   *app.Engine
}

func newHarness(t *testing.T, opts ...app.EngineOption) *harness {
	t.Helper()
	h := &harness{
		store:    memory.New(),
		provider: sandbox.New(),
		clock:    clock.NewManual(testNow),
		events:   &recorder{},
	}
	opts = append([]app.EngineOption{
		app.WithPublisher(h.events),
		app.WithReservationTTL(reserveIn),
	}, opts...)
	h.engine = app.NewEngine(app.Deps{
		Jobs:      h.store,
		Boosters:  h.store,
		Payments:  h.store,
		Discounts: h.store,
		Provider:  h.provider,
		Clock:     h.clock,
	}, opts...)
	return h
}

func (h *harness) addBooster(t *testing.T, id string, rating float64, specialties ...domain.Specialty) {
	t.Helper()
	if len(specialties) == 0 {
		specialties = []domain.Specialty{domain.SpecialtyMakeup}
	}
	require.NoError(t, h.store.UpsertBooster(context.Background(), domain.Booster{
		ID:          id,
		Name:        id,
		Specialties: domain.SpecialtySet(specialties).Normalize(),
		Rating:      rating,
		Active:      true,
		CreatedAt:   testNow,
	}))
}

type booking struct {
	slots       int
	specialties []string
	token       string
	code        string
	amount      int64
}

func (h *harness) book(t *testing.T, b booking) app.CreateJobResult {
	t.Helper()
	res, err := h.bookErr(b)
	require.NoError(t, err)
	return res
}

func (h *harness) bookErr(b booking) (app.CreateJobResult, error) {
	if b.slots == 0 {
		b.slots = 1
	}
	if len(b.specialties) == 0 {
		b.specialties = []string{"makeup"}
	}
	if b.token == "" {
		b.token = "tok_visa"
	}
	if b.amount == 0 {
		b.amount = 150000
	}
	return h.engine.Bookings.CreateJob(context.Background(), customer, app.CreateJobInput{
		CustomerID:    customer.ID,
		Specialties:   b.specialties,
		RequiredSlots: b.slots,
		Window:        domain.TimeWindow{Start: jobStart, End: jobStart.Add(2 * time.Hour)},
		AmountMinor:   b.amount,
		DiscountCode:  b.code,
		PaymentToken:  b.token,
	})
}

func (h *harness) job(t *testing.T, id string) domain.Job {
	t.Helper()
	job, err := h.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (h *harness) payment(t *testing.T, jobID string) domain.PaymentAuthorization {
	t.Helper()
	p, err := h.store.GetPaymentByJob(context.Background(), jobID)
	require.NoError(t, err)
	return p
}

func (h *harness) respond(t *testing.T, jobID, boosterID string, action domain.ResponseAction) (app.RespondResult, error) {
	t.Helper()
	actor := domain.Actor{ID: boosterID, Role: domain.RoleBooster}
	return h.engine.Responses.Respond(context.Background(), actor, app.RespondInput{
		JobID:     jobID,
		BoosterID: boosterID,
		Action:    action,
	})
}

// staffed books a one-slot job and has boosterID accept it. boosterID must
// be the top-ranked candidate.
func (h *harness) staffed(t *testing.T, b booking, boosterID string) domain.Job {
	t.Helper()
	ctx := context.Background()
	created := h.book(t, b)
	res, err := h.engine.Matching.AutoAssign(ctx, admin, created.Job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, res.Reserved)
	require.Equal(t, boosterID, res.Reserved[0].BoosterID)

	out, err := h.respond(t, created.Job.ID, boosterID, domain.ResponseAccept)
	require.NoError(t, err)
	require.Equal(t, app.OutcomeAccepted, out.Outcome)
	return out.Job
}
