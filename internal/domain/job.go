package domain

import (
	"math"
	"time"
)

type JobStatus string

const (
	JobStatusOpen              JobStatus = "open"
	JobStatusPendingAssignment JobStatus = "pending_assignment"
	JobStatusAssigned          JobStatus = "assigned"
	JobStatusConfirmed         JobStatus = "confirmed"
	JobStatusCompleted         JobStatus = "completed"
	JobStatusCancelled         JobStatus = "cancelled"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusOpen:              {JobStatusAssigned, JobStatusPendingAssignment, JobStatusCancelled},
	JobStatusPendingAssignment: {JobStatusOpen, JobStatusAssigned, JobStatusCancelled},
	JobStatusAssigned:          {JobStatusOpen, JobStatusConfirmed, JobStatusCompleted, JobStatusCancelled},
	JobStatusConfirmed:         {JobStatusCompleted, JobStatusCancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// Staffable reports whether slots may still be reserved.
func (s JobStatus) Staffable() bool {
	return s == JobStatusOpen || s == JobStatusPendingAssignment
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusOpen, JobStatusPendingAssignment, JobStatusAssigned,
		JobStatusConfirmed, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

type ClientType string

const (
	ClientTypePrivate  ClientType = "private"
	ClientTypeBusiness ClientType = "business"
)

func (c ClientType) Valid() bool {
	return c == ClientTypePrivate || c == ClientTypeBusiness
}

type JobSource string

const (
	JobSourceBookingForm JobSource = "booking_form"
	JobSourceShopify     JobSource = "shopify"
	JobSourceInquiry     JobSource = "inquiry"
)

// TimeWindow is a half-open [Start, End) interval.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether two half-open windows intersect.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Location is where a job takes place or where a booster is based.
// Zero coordinates mean "unknown" and place no constraint on matching.
type Location struct {
	Address string
	Lat     float64
	Lng     float64
}

func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two locations.
func (l Location) DistanceKm(o Location) float64 {
	lat1 := l.Lat * math.Pi / 180
	lat2 := o.Lat * math.Pi / 180
	dLat := (o.Lat - l.Lat) * math.Pi / 180
	dLng := (o.Lng - l.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Job is a unit of beauty-service work that needs RequiredSlots boosters.
// A private job with one slot is what customers call a booking.
type Job struct {
	ID            string
	CustomerID    string
	ClientType    ClientType
	Source        JobSource
	Specialties   SpecialtySet
	RequiredSlots int
	// ReservedSlots counts pending and accepted assignments. Only the
	// capacity ledger's conditional update changes it.
	ReservedSlots int
	Status        JobStatus
	Window        TimeWindow
	Location      Location
	AmountMinor   int64
	Currency      string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OpenSlots returns how many more reservations the job can take.
func (j Job) OpenSlots() int {
	if n := j.RequiredSlots - j.ReservedSlots; n > 0 {
		return n
	}
	return 0
}

// Transition moves the job to next or returns ErrInvalidTransition.
func (j *Job) Transition(next JobStatus, now time.Time) error {
	if j.Status == next {
		return nil
	}
	if !j.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	j.Status = next
	j.UpdatedAt = now
	return nil
}
