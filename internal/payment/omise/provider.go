// Package omisepay implements the authorize/capture contract on Omise
// charges created with capture disabled.
package omisepay

import (
	"context"
	"errors"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// Omise charge statuses this adapter distinguishes.
const (
	chargeSuccessful = "successful"
	chargeFailed     = "failed"
	chargeReversed   = "reversed"
	chargeExpired    = "expired"
)

type Provider struct {
	client *omise.Client
}

func NewClient(publicKey, secretKey string) (*omise.Client, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	return c, nil
}

func New(client *omise.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Authorize(ctx context.Context, req app.AuthorizeRequest) (app.Authorization, error) {
	if err := ctx.Err(); err != nil {
		return app.Authorization{}, err
	}
	if req.PaymentToken == "" {
		return app.Authorization{}, domain.ErrPaymentTokenRequired
	}
	meta := make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}

	ch := &omise.Charge{}
	err := p.client.Do(ch, &operations.CreateCharge{
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Card:        req.PaymentToken,
		DontCapture: true,
		Metadata:    meta,
	})
	if err != nil {
		return app.Authorization{}, fmt.Errorf("create charge: %w", err)
	}
	if string(ch.Status) == chargeFailed {
		return app.Authorization{}, chargeFailure(ch)
	}
	return app.Authorization{Reference: ch.ID}, nil
}

// Capture settles amountMinor of the held charge. Omise captures the full
// authorized amount, so a smaller final amount is refunded back afterwards.
func (p *Provider) Capture(ctx context.Context, ref string, amountMinor int64) (domain.ProviderStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProviderStatusPending, err
	}
	current := &omise.Charge{}
	if err := p.client.Do(current, &operations.RetrieveCharge{ChargeID: ref}); err != nil {
		return domain.ProviderStatusPending, fmt.Errorf("retrieve charge: %w", err)
	}
	switch string(current.Status) {
	case chargeSuccessful:
		return domain.ProviderStatusCaptured, nil
	case chargeReversed, chargeExpired:
		return domain.ProviderStatusReleased, nil
	case chargeFailed:
		return domain.ProviderStatusFailed, chargeFailure(current)
	}

	ch := &omise.Charge{}
	if err := p.client.Do(ch, &operations.CaptureCharge{ChargeID: ref}); err != nil {
		return domain.ProviderStatusPending, fmt.Errorf("capture charge: %w", err)
	}
	switch string(ch.Status) {
	case chargeSuccessful:
	case chargeFailed:
		return domain.ProviderStatusFailed, chargeFailure(ch)
	default:
		return domain.ProviderStatusPending, nil
	}

	if diff := ch.Amount - amountMinor; diff > 0 {
		refund := &omise.Refund{}
		if err := p.client.Do(refund, &operations.CreateRefund{ChargeID: ref, Amount: diff}); err != nil {
			return domain.ProviderStatusCaptured, fmt.Errorf("refund %d of captured charge: %w", diff, err)
		}
	}
	return domain.ProviderStatusCaptured, nil
}

// Release reverses the held charge. A charge that is already reversed or
// has expired counts as released.
func (p *Provider) Release(ctx context.Context, ref string) (domain.ProviderStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProviderStatusPending, err
	}
	current := &omise.Charge{}
	if err := p.client.Do(current, &operations.RetrieveCharge{ChargeID: ref}); err != nil {
		return domain.ProviderStatusPending, fmt.Errorf("retrieve charge: %w", err)
	}
	switch string(current.Status) {
	case chargeSuccessful:
		return domain.ProviderStatusCaptured, errors.New("charge already captured")
	case chargeReversed, chargeExpired, chargeFailed:
		// Nothing is held any more.
		return domain.ProviderStatusReleased, nil
	}

	ch := &omise.Charge{}
	if err := p.client.Do(ch, &operations.ReverseCharge{ChargeID: ref}); err != nil {
		return domain.ProviderStatusPending, fmt.Errorf("reverse charge: %w", err)
	}
	return domain.ProviderStatusReleased, nil
}

func chargeFailure(ch *omise.Charge) error {
	var code, msg string
	if ch.FailureCode != nil {
		code = *ch.FailureCode
	}
	if ch.FailureMessage != nil {
		msg = *ch.FailureMessage
	}
	return fmt.Errorf("charge %s failed: %s %s", ch.ID, code, msg)
}
