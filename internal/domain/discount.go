package domain

import "time"

type DiscountKind string

const (
	DiscountKindPercent DiscountKind = "percent"
	DiscountKindFixed   DiscountKind = "fixed"
)

// DiscountCode is a redeemable code. Value is basis points for percent codes
// and minor currency units for fixed codes.
type DiscountCode struct {
	Code            string
	Kind            DiscountKind
	Value           int64
	Active          bool
	ExpiresAt       *time.Time
	MinAmountMinor  int64
	MaxRedemptions  *int
	MaxPerCustomer  *int
	RedemptionCount int
	CreatedAt       time.Time
}

// DiscountFor returns the discount on amount, never more than amount.
func (d DiscountCode) DiscountFor(amount int64) int64 {
	var off int64
	switch d.Kind {
	case DiscountKindPercent:
		off = amount * d.Value / 10000
	case DiscountKindFixed:
		off = d.Value
	}
	if off > amount {
		off = amount
	}
	if off < 0 {
		off = 0
	}
	return off
}

// DiscountRedemption records a code counted against its caps at capture.
type DiscountRedemption struct {
	Code        string
	CustomerID  string
	JobID       string
	AmountMinor int64
	CreatedAt   time.Time
}
