package domain

import "time"

type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusAccepted   AssignmentStatus = "accepted"
	AssignmentStatusRejected   AssignmentStatus = "rejected"
	AssignmentStatusSuperseded AssignmentStatus = "superseded"
	AssignmentStatusExpired    AssignmentStatus = "expired"
)

// Active reports whether the assignment holds a slot on its job.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentStatusPending || s == AssignmentStatusAccepted
}

type AssignmentOrigin string

const (
	AssignmentOriginAuto      AssignmentOrigin = "auto"
	AssignmentOriginBroadcast AssignmentOrigin = "broadcast"
	AssignmentOriginManual    AssignmentOrigin = "manual"
	AssignmentOriginSelf      AssignmentOrigin = "self"
	AssignmentOriginReplace   AssignmentOrigin = "replacement"
)

// Assignment is one booster holding (or having held) one slot on a job.
// Rows are never deleted; inactive rows are kept for audit and backoff.
type Assignment struct {
	ID          string
	JobID       string
	BoosterID   string
	Status      AssignmentStatus
	Origin      AssignmentOrigin
	ExpiresAt   time.Time
	RespondedAt *time.Time
	CreatedAt   time.Time
}

// Expired reports whether a pending reservation has outlived its window.
func (a Assignment) Expired(now time.Time) bool {
	return a.Status == AssignmentStatusPending && !a.ExpiresAt.After(now)
}

type ResponseAction string

const (
	ResponseAccept ResponseAction = "accept"
	ResponseReject ResponseAction = "reject"
)

func (a ResponseAction) Valid() bool {
	return a == ResponseAccept || a == ResponseReject
}

// SlotToken identifies a reservation made through the capacity ledger.
type SlotToken struct {
	AssignmentID string
	JobID        string
	BoosterID    string
	ExpiresAt    time.Time
}
