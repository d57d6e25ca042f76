package app

import (
	"context"
	"strings"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// DiscountService validates discount codes against an amount and a customer.
type DiscountService struct {
	discounts DiscountRepository
	clock     clock.Clock
}

func NewDiscountService(discounts DiscountRepository, clk clock.Clock) *DiscountService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &DiscountService{discounts: discounts, clock: clk}
}

type DiscountResult struct {
	Code          string
	DiscountMinor int64
	FinalMinor    int64
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks, in order, existence, the active flag, expiry, the minimum
// amount, the global cap and the per-customer cap. Nothing is written.
func (s *DiscountService) Validate(ctx context.Context, code string, amountMinor int64, customerID string) (DiscountResult, error) {
	if amountMinor <= 0 {
		return DiscountResult{}, domain.ErrInvalidAmount
	}
	d, err := s.discounts.GetDiscount(ctx, NormalizeCode(code))
	if err != nil {
		return DiscountResult{}, err
	}
	if !d.Active {
		return DiscountResult{}, domain.ErrDiscountInactive
	}
	if d.ExpiresAt != nil && !s.clock.Now().Before(*d.ExpiresAt) {
		return DiscountResult{}, domain.ErrDiscountExpired
	}
	if amountMinor < d.MinAmountMinor {
		return DiscountResult{}, domain.ErrDiscountBelowMinimum
	}
	if d.MaxRedemptions != nil && d.RedemptionCount >= *d.MaxRedemptions {
		return DiscountResult{}, domain.ErrDiscountExhausted
	}
	if err := s.checkCustomerCap(ctx, d, customerID); err != nil {
		return DiscountResult{}, err
	}

	off := d.DiscountFor(amountMinor)
	return DiscountResult{
		Code:          d.Code,
		DiscountMinor: off,
		FinalMinor:    amountMinor - off,
	}, nil
}

// redeem counts one use of the code against its caps. It must run inside a
// transaction: the code row stays locked from the per-customer count to the
// insert, and the global cap is a conditional increment, so two captures
// that both passed Validate cannot both take the last use.
func (s *DiscountService) redeem(ctx context.Context, code, customerID, jobID string, amountMinor int64) error {
	d, err := s.discounts.GetDiscountForUpdate(ctx, code)
	if err != nil {
		return err
	}
	if err := s.checkCustomerCap(ctx, d, customerID); err != nil {
		return err
	}
	ok, err := s.discounts.Redeem(ctx, domain.DiscountRedemption{
		Code:        d.Code,
		CustomerID:  customerID,
		JobID:       jobID,
		AmountMinor: amountMinor,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrDiscountExhausted
	}
	return nil
}

func (s *DiscountService) checkCustomerCap(ctx context.Context, d domain.DiscountCode, customerID string) error {
	if d.MaxPerCustomer == nil || customerID == "" {
		return nil
	}
	used, err := s.discounts.CountCustomerRedemptions(ctx, d.Code, customerID)
	if err != nil {
		return err
	}
	if used >= *d.MaxPerCustomer {
		return domain.ErrDiscountCustomerLimit
	}
	return nil
}
