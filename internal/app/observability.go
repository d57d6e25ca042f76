package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

// EventPublisher receives lifecycle events. Delivery is fire-and-forget:
// a publish error is logged and never undoes the transition.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.LifecycleEvent) error
}

// Metrics records engine outcomes. Labels are low-cardinality strings.
type Metrics interface {
	ReservationAttempt(result string)
	Response(action, outcome string)
	MatchingAttempt(mode, result string)
	PaymentOperation(op, result string)
	SweepCompleted(expired, released int)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.LifecycleEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ReservationAttempt(string) {}
func (nopMetrics) Response(string, string) {}
func (nopMetrics) MatchingAttempt(string, string) {}
func (nopMetrics) PaymentOperation(string, string) {}
func (nopMetrics) SweepCompleted(int, int) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// emitter publishes events and logs failures instead of returning them.
type emitter struct {
	pub    EventPublisher
	logger *slog.Logger
}

func (e emitter) emit(ctx context.Context, ev domain.LifecycleEvent) {
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.logger.Warn("publish lifecycle event",
			"job_id", ev.JobID,
			"event", ev.Type,
			"err", err,
		)
	}
}
