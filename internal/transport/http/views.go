package http

import (
	"time"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

type jobResponse struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	ClientType    string    `json:"client_type"`
	Source        string    `json:"source"`
	Specialties   []string  `json:"specialties"`
	RequiredSlots int       `json:"required_slots"`
	ReservedSlots int       `json:"reserved_slots"`
	OpenSlots     int       `json:"open_slots"`
	Status        string    `json:"status"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Address       string    `json:"address,omitempty"`
	Lat           float64   `json:"lat,omitempty"`
	Lng           float64   `json:"lng,omitempty"`
	AmountMinor   int64     `json:"amount_minor"`
	Currency      string    `json:"currency"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toJobResponse(j domain.Job) jobResponse {
	return jobResponse{
		ID:            j.ID,
		CustomerID:    j.CustomerID,
		ClientType:    string(j.ClientType),
		Source:        string(j.Source),
		Specialties:   j.Specialties.Strings(),
		RequiredSlots: j.RequiredSlots,
		ReservedSlots: j.ReservedSlots,
		OpenSlots:     j.OpenSlots(),
		Status:        string(j.Status),
		StartsAt:      j.Window.Start,
		EndsAt:        j.Window.End,
		Address:       j.Location.Address,
		Lat:           j.Location.Lat,
		Lng:           j.Location.Lng,
		AmountMinor:   j.AmountMinor,
		Currency:      j.Currency,
		Notes:         j.Notes,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

type assignmentResponse struct {
	ID          string     `json:"id"`
	JobID       string     `json:"job_id"`
	BoosterID   string     `json:"booster_id"`
	Status      string     `json:"status"`
	Origin      string     `json:"origin"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toAssignmentResponses(in []domain.Assignment) []assignmentResponse {
	out := make([]assignmentResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toAssignmentResponse(a))
	}
	return out
}

func toAssignmentResponse(a domain.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:          a.ID,
		JobID:       a.JobID,
		BoosterID:   a.BoosterID,
		Status:      string(a.Status),
		Origin:      string(a.Origin),
		ExpiresAt:   a.ExpiresAt,
		RespondedAt: a.RespondedAt,
		CreatedAt:   a.CreatedAt,
	}
}

type paymentResponse struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	AmountMinor        int64  `json:"amount_minor"`
	CapturedMinor      int64  `json:"captured_minor"`
	Currency           string `json:"currency"`
	DiscountCode       string `json:"discount_code,omitempty"`
	DiscountMinor      int64  `json:"discount_minor,omitempty"`
	BoosterPayoutMinor int64  `json:"booster_payout_minor"`
	NeedsRemediation   bool   `json:"needs_remediation,omitempty"`
	ClientSecret       string `json:"client_secret,omitempty"`
}

// toPaymentResponse omits the client secret; only the booking response,
// which goes back to the paying customer, carries it.
func toPaymentResponse(p domain.PaymentAuthorization) *paymentResponse {
	return &paymentResponse{
		ID:                 p.ID,
		Status:             string(p.Status),
		AmountMinor:        p.AmountMinor,
		CapturedMinor:      p.CapturedMinor,
		Currency:           p.Currency,
		DiscountCode:       p.DiscountCode,
		DiscountMinor:      p.DiscountMinor,
		BoosterPayoutMinor: p.BoosterPayoutMinor(),
		NeedsRemediation:   p.NeedsRemediation,
	}
}

type boosterResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialties    []string `json:"specialties"`
	Rating         float64  `json:"rating"`
	ReviewCount    int      `json:"review_count"`
	ActiveSlots    int      `json:"active_slots"`
	RejectionCount int      `json:"rejection_count"`
}

func toBoosterResponses(in []domain.Booster) []boosterResponse {
	out := make([]boosterResponse, 0, len(in))
	for _, b := range in {
		out = append(out, boosterResponse{
			ID:             b.ID,
			Name:           b.Name,
			Specialties:    b.Specialties.Strings(),
			Rating:         b.Rating,
			ReviewCount:    b.ReviewCount,
			ActiveSlots:    b.ActiveSlots,
			RejectionCount: b.RejectionCount,
		})
	}
	return out
}

type slotResponse struct {
	AssignmentID string    `json:"assignment_id"`
	BoosterID    string    `json:"booster_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func toSlotResponse(t domain.SlotToken) slotResponse {
	return slotResponse{AssignmentID: t.AssignmentID, BoosterID: t.BoosterID, ExpiresAt: t.ExpiresAt}
}

func toSlotResponses(in []domain.SlotToken) []slotResponse {
	out := make([]slotResponse, 0, len(in))
	for _, t := range in {
		out = append(out, toSlotResponse(t))
	}
	return out
}
