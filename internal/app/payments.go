package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// captureClaimTimeout bounds how long a claimed capture blocks other callers.
const captureClaimTimeout = 5 * time.Minute

type AuthorizeRequest struct {
	AmountMinor  int64
	Currency     string
	PaymentToken string
	Metadata     map[string]string
}

type Authorization struct {
	Reference    string
	ClientSecret string
}

// PaymentProvider is the authorize/capture contract. Implementations must
// treat Capture and Release of an already settled reference as success.
type PaymentProvider interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error)
	Capture(ctx context.Context, ref string, amountMinor int64) (domain.ProviderStatus, error)
	Release(ctx context.Context, ref string) (domain.ProviderStatus, error)
}

// Quote is the amount a booking will be authorized for.
type Quote struct {
	GrossMinor    int64
	DiscountCode  string
	DiscountMinor int64
	NetMinor      int64
	Currency      string
}

// PaymentManager keeps each job's authorization consistent with its status.
// No database transaction is held across a provider call.
type PaymentManager struct {
	payments  PaymentRepository
	discounts *DiscountService
	provider  PaymentProvider
	clock     clock.Clock
	events    emitter
	metrics   Metrics
	logger    *slog.Logger
	shareBP   int
}

// Quote applies a discount code, if any, to the gross amount.
func (m *PaymentManager) Quote(ctx context.Context, grossMinor int64, currency, code, customerID string) (Quote, error) {
	if grossMinor <= 0 {
		return Quote{}, domain.ErrInvalidAmount
	}
	q := Quote{GrossMinor: grossMinor, NetMinor: grossMinor, Currency: currency}
	if code == "" {
		return q, nil
	}
	res, err := m.discounts.Validate(ctx, code, grossMinor, customerID)
	if err != nil {
		return Quote{}, err
	}
	q.DiscountCode = res.Code
	q.DiscountMinor = res.DiscountMinor
	q.NetMinor = res.FinalMinor
	return q, nil
}

// Authorize holds funds for the quote and returns the unsaved record. The
// caller persists it together with the job.
func (m *PaymentManager) Authorize(ctx context.Context, jobID string, q Quote, paymentToken string) (domain.PaymentAuthorization, error) {
	now := m.clock.Now()
	p := domain.PaymentAuthorization{
		ID:             newUUID(),
		JobID:          jobID,
		AmountMinor:    q.NetMinor,
		Currency:       q.Currency,
		Status:         domain.PaymentStatusAuthorized,
		DiscountCode:   q.DiscountCode,
		DiscountMinor:  q.DiscountMinor,
		BoosterShareBP: m.shareBP,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if q.NetMinor == 0 {
		// Fully discounted; there is nothing to hold at the provider.
		m.metrics.PaymentOperation("authorize", "skipped")
		return p, nil
	}
	if paymentToken == "" {
		return domain.PaymentAuthorization{}, domain.ErrPaymentTokenRequired
	}

	auth, err := m.provider.Authorize(ctx, AuthorizeRequest{
		AmountMinor:  q.NetMinor,
		Currency:     q.Currency,
		PaymentToken: paymentToken,
		Metadata:     map[string]string{"job_id": jobID},
	})
	if err != nil {
		m.metrics.PaymentOperation("authorize", "failed")
		m.logger.Warn("payment authorization failed", "job_id", jobID, "err", err)
		return domain.PaymentAuthorization{}, fmt.Errorf("%w: %v", domain.ErrPaymentAuthorizationFailed, err)
	}
	m.metrics.PaymentOperation("authorize", "ok")
	p.ProviderRef = auth.Reference
	p.ClientSecret = auth.ClientSecret
	return p, nil
}

// Void releases an authorization that was never persisted. Best effort.
func (m *PaymentManager) Void(ctx context.Context, p domain.PaymentAuthorization) {
	if p.ProviderRef == "" {
		return
	}
	if _, err := m.provider.Release(ctx, p.ProviderRef); err != nil {
		m.metrics.PaymentOperation("void", "failed")
		m.logger.Error("void orphaned authorization", "job_id", p.JobID, "provider_ref", p.ProviderRef, "err", err)
		return
	}
	m.metrics.PaymentOperation("void", "ok")
}

// Capture settles the job's authorization for the final amount, or for the
// full authorized amount when final is nil. A captured record is returned as
// stored without calling the provider again.
func (m *PaymentManager) Capture(ctx context.Context, job domain.Job, final *int64) (domain.PaymentAuthorization, error) {
	if job.Status != domain.JobStatusCompleted {
		return domain.PaymentAuthorization{}, domain.ErrInvalidTransition
	}

	var (
		p        domain.PaymentAuthorization
		amount   int64
		redeemed bool
		done     bool
		failure  error
	)
	err := m.payments.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = m.payments.GetPaymentByJobForUpdate(txCtx, job.ID)
		if err != nil {
			return err
		}
		switch p.Status {
		case domain.PaymentStatusCaptured:
			done = true
			return nil
		case domain.PaymentStatusReleased:
			return domain.ErrInvalidTransition
		case domain.PaymentStatusFailed:
			return fmt.Errorf("%w: %s", domain.ErrPaymentCaptureFailed, p.RemediationReason)
		}

		now := m.clock.Now()
		if p.CaptureClaimedAt != nil && now.Sub(*p.CaptureClaimedAt) < captureClaimTimeout {
			return domain.ErrPaymentInProgress
		}

		amount = p.AmountMinor
		if final != nil {
			if *final <= 0 {
				return domain.ErrInvalidAmount
			}
			if *final > p.AmountMinor {
				return domain.ErrCaptureExceedsAuthorized
			}
			amount = *final
		}

		if p.DiscountCode != "" {
			if err := m.discounts.redeem(txCtx, p.DiscountCode, job.CustomerID, job.ID, p.DiscountMinor); err != nil {
				if !isDiscountRejection(err) {
					return err
				}
				// The code ran out between booking and delivery. Keep the
				// authorization and hand the record to billing.
				p.NeedsRemediation = true
				p.RemediationReason = "discount redemption rejected at capture: " + err.Error()
				p.UpdatedAt = now
				failure = fmt.Errorf("%w: %v", domain.ErrPaymentCaptureFailed, err)
				return m.payments.UpdatePayment(txCtx, p)
			}
			redeemed = true
		}

		p.CaptureClaimedAt = &now
		p.UpdatedAt = now
		return m.payments.UpdatePayment(txCtx, p)
	})
	if err != nil {
		return p, err
	}
	if done {
		m.metrics.PaymentOperation("capture", "already_captured")
		return p, nil
	}
	if failure != nil {
		m.metrics.PaymentOperation("capture", "failed")
		m.emitPayment(ctx, job, domain.EventPaymentFailed, p.RemediationReason)
		return p, failure
	}

	status := domain.ProviderStatusCaptured
	var providerErr error
	if p.ProviderRef != "" {
		status, providerErr = m.provider.Capture(ctx, p.ProviderRef, amount)
	}

	err = m.payments.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = m.payments.GetPaymentByJobForUpdate(txCtx, job.ID)
		if err != nil {
			return err
		}
		now := m.clock.Now()
		p.CaptureClaimedAt = nil
		p.UpdatedAt = now

		if status == domain.ProviderStatusCaptured {
			p.Status = domain.PaymentStatusCaptured
			p.CapturedMinor = amount
			p.NeedsRemediation = false
			p.RemediationReason = ""
			if providerErr != nil {
				// Funds moved but a follow-up step, such as a partial refund, did not.
				p.NeedsRemediation = true
				p.RemediationReason = "captured with error: " + providerErr.Error()
				failure = fmt.Errorf("%w: %v", domain.ErrPaymentCaptureFailed, providerErr)
			}
			return m.payments.UpdatePayment(txCtx, p)
		}

		if redeemed {
			if err := m.discounts.discounts.UndoRedemption(txCtx, p.DiscountCode, job.ID); err != nil {
				return err
			}
		}
		p.NeedsRemediation = true
		if providerErr != nil {
			p.RemediationReason = "capture failed: " + providerErr.Error()
			failure = fmt.Errorf("%w: %v", domain.ErrPaymentCaptureFailed, providerErr)
		} else {
			p.RemediationReason = "capture returned provider status " + string(status)
			failure = fmt.Errorf("%w: provider status %s", domain.ErrPaymentCaptureFailed, status)
		}
		if status == domain.ProviderStatusFailed {
			p.Status = domain.PaymentStatusFailed
		}
		return m.payments.UpdatePayment(txCtx, p)
	})
	if err != nil {
		return p, err
	}

	if failure != nil {
		m.metrics.PaymentOperation("capture", "failed")
		m.logger.Error("payment capture failed", "job_id", job.ID, "provider_ref", p.ProviderRef, "reason", p.RemediationReason)
		m.emitPayment(ctx, job, domain.EventPaymentFailed, p.RemediationReason)
		return p, failure
	}
	m.metrics.PaymentOperation("capture", "ok")
	m.logger.Info("payment captured", "job_id", job.ID, "amount_minor", p.CapturedMinor, "booster_payout_minor", p.BoosterPayoutMinor())
	m.emitPayment(ctx, job, domain.EventPaymentCaptured, "")
	return p, nil
}

// Release frees the job's authorization. Releasing twice is a no-op and a
// captured record cannot be released.
func (m *PaymentManager) Release(ctx context.Context, jobID string) (domain.PaymentAuthorization, error) {
	var (
		p    domain.PaymentAuthorization
		done bool
	)
	err := m.payments.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = m.payments.GetPaymentByJobForUpdate(txCtx, jobID)
		if err != nil {
			return err
		}
		switch p.Status {
		case domain.PaymentStatusReleased, domain.PaymentStatusFailed:
			done = true
			return nil
		case domain.PaymentStatusCaptured:
			return domain.ErrInvalidTransition
		}
		now := m.clock.Now()
		if p.CaptureClaimedAt != nil && now.Sub(*p.CaptureClaimedAt) < captureClaimTimeout {
			return domain.ErrPaymentInProgress
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	if done {
		return p, nil
	}

	status := domain.ProviderStatusReleased
	var providerErr error
	if p.ProviderRef != "" {
		status, providerErr = m.provider.Release(ctx, p.ProviderRef)
	}

	var failure error
	err = m.payments.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = m.payments.GetPaymentByJobForUpdate(txCtx, jobID)
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentStatusAuthorized {
			return nil
		}
		p.UpdatedAt = m.clock.Now()
		if providerErr == nil && status == domain.ProviderStatusReleased {
			p.Status = domain.PaymentStatusReleased
			p.NeedsRemediation = false
			p.RemediationReason = ""
			return m.payments.UpdatePayment(txCtx, p)
		}
		p.NeedsRemediation = true
		if providerErr != nil {
			p.RemediationReason = "release failed: " + providerErr.Error()
			failure = fmt.Errorf("%w: %v", domain.ErrPaymentReleaseFailed, providerErr)
		} else {
			p.RemediationReason = "release returned provider status " + string(status)
			failure = fmt.Errorf("%w: provider status %s", domain.ErrPaymentReleaseFailed, status)
		}
		return m.payments.UpdatePayment(txCtx, p)
	})
	if err != nil {
		return p, err
	}

	if failure != nil {
		m.metrics.PaymentOperation("release", "failed")
		m.logger.Error("payment release failed", "job_id", jobID, "provider_ref", p.ProviderRef, "reason", p.RemediationReason)
		m.events.emit(ctx, domain.LifecycleEvent{JobID: jobID, Type: domain.EventPaymentFailed, Detail: p.RemediationReason, OccurredAt: m.clock.Now()})
		return p, failure
	}
	m.metrics.PaymentOperation("release", "ok")
	m.events.emit(ctx, domain.LifecycleEvent{JobID: jobID, Type: domain.EventPaymentReleased, OccurredAt: m.clock.Now()})
	return p, nil
}

// ReleaseStranded retries releases for cancelled jobs whose authorization is
// still held. It returns how many were released.
func (m *PaymentManager) ReleaseStranded(ctx context.Context, limit int) (int, error) {
	stranded, err := m.payments.ListStrandedAuthorizations(ctx, limit)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, p := range stranded {
		if _, err := m.Release(ctx, p.JobID); err != nil {
			if errors.Is(err, domain.ErrPaymentReleaseFailed) || errors.Is(err, domain.ErrPaymentInProgress) {
				continue
			}
			return released, err
		}
		released++
	}
	return released, nil
}

// Get returns the job's authorization.
func (m *PaymentManager) Get(ctx context.Context, jobID string) (domain.PaymentAuthorization, error) {
	return m.payments.GetPaymentByJob(ctx, jobID)
}

func (m *PaymentManager) emitPayment(ctx context.Context, job domain.Job, typ domain.EventType, detail string) {
	m.events.emit(ctx, domain.LifecycleEvent{
		JobID:      job.ID,
		Type:       typ,
		JobStatus:  job.Status,
		Detail:     detail,
		OccurredAt: m.clock.Now(),
	})
}

func isDiscountRejection(err error) bool {
	return errors.Is(err, domain.ErrDiscountExhausted) ||
		errors.Is(err, domain.ErrDiscountCustomerLimit) ||
		errors.Is(err, domain.ErrDiscountNotFound)
}
