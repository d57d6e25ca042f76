// Package sandbox is a deterministic in-memory payment provider for local
// development and tests.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// Payment tokens with these prefixes make the matching call fail.
const (
	TokenDeclined     = "tok_declined"
	TokenCaptureFails = "tok_capture_fails"
	TokenReleaseFails = "tok_release_fails"
)

var ErrDeclined = errors.New("card declined")

type Charge struct {
	Reference   string
	Token       string
	AmountMinor int64
	Captured    int64
	Currency    string
	Status      domain.ProviderStatus
}

type Provider struct {
	mu       sync.Mutex
	charges  map[string]*Charge
	captures map[string]int
	releases map[string]int
}

func New() *Provider {
	return &Provider{
		charges:  make(map[string]*Charge),
		captures: make(map[string]int),
		releases: make(map[string]int),
	}
}

func (p *Provider) Authorize(_ context.Context, req app.AuthorizeRequest) (app.Authorization, error) {
	if req.AmountMinor <= 0 {
		return app.Authorization{}, domain.ErrInvalidAmount
	}
	if strings.HasPrefix(req.PaymentToken, TokenDeclined) {
		return app.Authorization{}, ErrDeclined
	}

	ref := "chrg_sandbox_" + uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.charges[ref] = &Charge{
		Reference:   ref,
		Token:       req.PaymentToken,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Status:      domain.ProviderStatusPending,
	}
	return app.Authorization{Reference: ref, ClientSecret: "secret_" + ref}, nil
}

func (p *Provider) Capture(_ context.Context, ref string, amountMinor int64) (domain.ProviderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures[ref]++

	ch, ok := p.charges[ref]
	if !ok {
		return domain.ProviderStatusFailed, fmt.Errorf("charge %s not found", ref)
	}
	switch ch.Status {
	case domain.ProviderStatusCaptured, domain.ProviderStatusReleased:
		return ch.Status, nil
	}
	if strings.HasPrefix(ch.Token, TokenCaptureFails) {
		return domain.ProviderStatusPending, errors.New("sandbox capture unavailable")
	}
	if amountMinor > ch.AmountMinor {
		return domain.ProviderStatusFailed, fmt.Errorf("capture %d exceeds authorized %d", amountMinor, ch.AmountMinor)
	}
	ch.Captured = amountMinor
	ch.Status = domain.ProviderStatusCaptured
	return ch.Status, nil
}

func (p *Provider) Release(_ context.Context, ref string) (domain.ProviderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases[ref]++

	ch, ok := p.charges[ref]
	if !ok {
		return domain.ProviderStatusFailed, fmt.Errorf("charge %s not found", ref)
	}
	switch ch.Status {
	case domain.ProviderStatusReleased:
		return ch.Status, nil
	case domain.ProviderStatusCaptured:
		return ch.Status, errors.New("charge already captured")
	}
	if strings.HasPrefix(ch.Token, TokenReleaseFails) {
		return domain.ProviderStatusPending, errors.New("sandbox release unavailable")
	}
	ch.Status = domain.ProviderStatusReleased
	return ch.Status, nil
}

// Charge returns a copy of the charge for ref.
func (p *Provider) Charge(ref string) (Charge, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.charges[ref]
	if !ok {
		return Charge{}, false
	}
	return *ch, true
}

// CaptureCalls returns how many times Capture was called for ref.
func (p *Provider) CaptureCalls(ref string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captures[ref]
}

// ReleaseCalls returns how many times Release was called for ref.
func (p *Provider) ReleaseCalls(ref string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases[ref]
}

// Charges returns the number of authorizations created.
func (p *Provider) Charges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.charges)
}

// Recover clears the failure behaviour of the token behind ref, so the
// next call succeeds.
func (p *Provider) Recover(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.charges[ref]; ok {
		ch.Token = "tok_recovered"
	}
}
