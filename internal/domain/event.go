package domain

import "time"

type EventType string

const (
	EventAssigned        EventType = "assigned"
	EventAccepted        EventType = "accepted"
	EventRejected        EventType = "rejected"
	EventReassigned      EventType = "reassigned"
	EventConfirmed       EventType = "confirmed"
	EventCancelled       EventType = "cancelled"
	EventCompleted       EventType = "completed"
	EventEscalated       EventType = "escalated"
	EventExpired         EventType = "expired"
	EventBroadcast       EventType = "broadcast"
	EventPaymentCaptured EventType = "payment_captured"
	EventPaymentReleased EventType = "payment_released"
	EventPaymentFailed   EventType = "payment_failed"
)

// LifecycleEvent is emitted on every job or assignment transition.
type LifecycleEvent struct {
	JobID      string    `json:"job_id"`
	Type       EventType `json:"event"`
	BoosterID  string    `json:"candidate_id,omitempty"`
	JobStatus  JobStatus `json:"job_status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
