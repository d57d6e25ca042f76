// Package notify turns lifecycle events into booster, customer and admin
// notifications. Delivery channels (email, SMS, calendar) sit behind Sender.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

type Audience string

const (
	AudienceBooster  Audience = "booster"
	AudienceCustomer Audience = "customer"
	AudienceAdmin    Audience = "admin"
	AudienceCalendar Audience = "calendar"
)

type Message struct {
	Audience  Audience
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes messages to the log. It is the default sender.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Logger.Info("notification",
		"audience", m.Audience,
		"recipient", m.Recipient,
		"subject", m.Subject,
		"body", m.Body,
	)
	return nil
}

type Notifier struct {
	sender Sender
	logger *slog.Logger
}

func New(sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Handle sends every message an event produces. Unknown event types are skipped.
func (n *Notifier) Handle(ctx context.Context, ev domain.LifecycleEvent) error {
	msgs := Messages(ev)
	if len(msgs) == 0 {
		n.logger.Debug("no notification for event", "event", ev.Type, "job_id", ev.JobID)
		return nil
	}
	for _, m := range msgs {
		if err := n.sender.Send(ctx, m); err != nil {
			return fmt.Errorf("send %s notification for %s: %w", m.Audience, ev.Type, err)
		}
	}
	return nil
}

// Messages maps an event to the notifications it triggers.
func Messages(ev domain.LifecycleEvent) []Message {
	job := shortID(ev.JobID)
	switch ev.Type {
	case domain.EventAssigned:
		if ev.BoosterID == "" {
			return []Message{
				{Audience: AudienceCustomer, Recipient: ev.JobID, Subject: "Your booking is staffed", Body: fmt.Sprintf("All boosters for job %s have accepted.", job)},
				{Audience: AudienceCalendar, Recipient: ev.JobID, Subject: "assigned", Body: job},
			}
		}
		return []Message{{Audience: AudienceBooster, Recipient: ev.BoosterID, Subject: "New job offer", Body: fmt.Sprintf("You have been proposed for job %s. Please accept or decline.", job)}}
	case domain.EventBroadcast:
		return []Message{{Audience: AudienceBooster, Recipient: ev.BoosterID, Subject: "Open job near you", Body: fmt.Sprintf("Job %s is open. First to apply gets the slot.", job)}}
	case domain.EventReassigned:
		return []Message{{Audience: AudienceBooster, Recipient: ev.BoosterID, Subject: "New job offer", Body: fmt.Sprintf("A slot opened up on job %s.", job)}}
	case domain.EventAccepted:
		return []Message{{Audience: AudienceAdmin, Recipient: "staffing", Subject: "Booster accepted", Body: fmt.Sprintf("Booster %s accepted job %s.", ev.BoosterID, job)}}
	case domain.EventRejected:
		return []Message{{Audience: AudienceAdmin, Recipient: "staffing", Subject: "Booster declined", Body: fmt.Sprintf("Booster %s declined job %s.", ev.BoosterID, job)}}
	case domain.EventEscalated:
		return []Message{{Audience: AudienceAdmin, Recipient: "staffing", Subject: "Job needs manual staffing", Body: fmt.Sprintf("Job %s: %s", job, ev.Detail)}}
	case domain.EventConfirmed:
		return []Message{
			{Audience: AudienceCustomer, Recipient: ev.JobID, Subject: "Booking confirmed", Body: fmt.Sprintf("Job %s is confirmed.", job)},
			{Audience: AudienceCalendar, Recipient: ev.JobID, Subject: "confirmed", Body: job},
		}
	case domain.EventCancelled:
		return []Message{
			{Audience: AudienceCustomer, Recipient: ev.JobID, Subject: "Booking cancelled", Body: fmt.Sprintf("Job %s was cancelled.", job)},
			{Audience: AudienceCalendar, Recipient: ev.JobID, Subject: "cancelled", Body: job},
		}
	case domain.EventExpired:
		return []Message{{Audience: AudienceBooster, Recipient: ev.BoosterID, Subject: "Offer expired", Body: fmt.Sprintf("Your offer for job %s has expired.", job)}}
	case domain.EventPaymentFailed:
		return []Message{{Audience: AudienceAdmin, Recipient: "billing", Subject: "Payment needs attention", Body: fmt.Sprintf("Job %s: %s", job, ev.Detail)}}
	case domain.EventPaymentCaptured:
		return []Message{{Audience: AudienceCustomer, Recipient: ev.JobID, Subject: "Receipt", Body: fmt.Sprintf("Payment for job %s has been charged.", job)}}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
