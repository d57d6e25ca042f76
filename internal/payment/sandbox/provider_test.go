package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

func authorize(t *testing.T, p *Provider, token string, amount int64) string {
	t.Helper()
	auth, err := p.Authorize(context.Background(), app.AuthorizeRequest{AmountMinor: amount, Currency: "DKK", PaymentToken: token})
	require.NoError(t, err)
	require.NotEmpty(t, auth.ClientSecret)
	return auth.Reference
}

func TestProvider_CaptureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := New()
	ref := authorize(t, p, "tok_visa", 150000)

	status, err := p.Capture(ctx, ref, 100000)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderStatusCaptured, status)
	status, err = p.Capture(ctx, ref, 100000)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderStatusCaptured, status)

	ch, ok := p.Charge(ref)
	require.True(t, ok)
	require.Equal(t, int64(100000), ch.Captured)
	require.Equal(t, 2, p.CaptureCalls(ref))

	_, err = p.Release(ctx, ref)
	require.Error(t, err, "captured charges cannot be released")
}

func TestProvider_Failures(t *testing.T) {
	ctx := context.Background()
	p := New()

	_, err := p.Authorize(ctx, app.AuthorizeRequest{AmountMinor: 1000, PaymentToken: TokenDeclined})
	require.ErrorIs(t, err, ErrDeclined)
	_, err = p.Authorize(ctx, app.AuthorizeRequest{AmountMinor: 0, PaymentToken: "tok_visa"})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	require.Zero(t, p.Charges())

	ref := authorize(t, p, TokenCaptureFails, 5000)
	status, err := p.Capture(ctx, ref, 5000)
	require.Error(t, err)
	require.Equal(t, domain.ProviderStatusPending, status)
	p.Recover(ref)
	status, err = p.Capture(ctx, ref, 5000)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderStatusCaptured, status)

	ref = authorize(t, p, TokenReleaseFails, 5000)
	status, err = p.Release(ctx, ref)
	require.Error(t, err)
	require.Equal(t, domain.ProviderStatusPending, status)
	p.Recover(ref)
	status, err = p.Release(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderStatusReleased, status)
	require.Equal(t, 2, p.ReleaseCalls(ref))

	ref = authorize(t, p, "tok_visa", 5000)
	status, err = p.Capture(ctx, ref, 6000)
	require.Error(t, err)
	require.Equal(t, domain.ProviderStatusFailed, status)

	_, err = p.Capture(ctx, "chrg_missing", 1)
	require.Error(t, err)
}
