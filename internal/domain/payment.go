package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusReleased   PaymentStatus = "released"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// DefaultBoosterShareBP is the booster payout share in basis points (60%).
const DefaultBoosterShareBP = 6000

// PaymentAuthorization is the single authorize/capture record for a job.
type PaymentAuthorization struct {
	ID             string
	JobID          string
	AmountMinor    int64
	CapturedMinor  int64
	Currency       string
	ProviderRef    string
	ClientSecret   string
	Status         PaymentStatus
	DiscountCode   string
	DiscountMinor  int64
	BoosterShareBP int
	// NeedsRemediation marks records billing staff must fix by hand, for
	// example a capture the provider refused after the service was delivered.
	NeedsRemediation  bool
	RemediationReason string
	// CaptureClaimedAt is set while a capture call is in flight.
	CaptureClaimedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BoosterPayoutMinor is the share of the captured amount owed to boosters.
func (p PaymentAuthorization) BoosterPayoutMinor() int64 {
	return p.CapturedMinor * int64(p.BoosterShareBP) / 10000
}

// ProviderStatus is what a payment provider reports after capture or release.
type ProviderStatus string

const (
	ProviderStatusCaptured ProviderStatus = "captured"
	ProviderStatusReleased ProviderStatus = "released"
	ProviderStatusPending  ProviderStatus = "pending"
	ProviderStatusFailed   ProviderStatus = "failed"
)
