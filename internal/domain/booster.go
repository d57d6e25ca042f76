package domain

import "time"

// Booster is an independent contractor the engine can staff on a job.
// The booster directory owns these records; the engine only reads them,
// apart from the rejection counter.
type Booster struct {
	ID             string
	Name           string
	Specialties    SpecialtySet
	Location       Location
	RadiusKm       float64
	Rating         float64
	ReviewCount    int
	Active         bool
	RejectionCount int
	// ActiveSlots is derived: pending plus accepted assignments on jobs
	// that are not terminal.
	ActiveSlots int
	CreatedAt   time.Time
}

// Serves reports whether a job at loc is within the booster's radius.
func (b Booster) Serves(loc Location) bool {
	if !loc.HasCoordinates() || !b.Location.HasCoordinates() {
		return true
	}
	if b.RadiusKm <= 0 {
		return false
	}
	return b.Location.DistanceKm(loc) <= b.RadiusKm
}

// Unavailability blocks a booster's calendar for a window.
type Unavailability struct {
	ID        string
	BoosterID string
	Window    TimeWindow
	Reason    string
}
