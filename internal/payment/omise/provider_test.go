package omisepay

import (
	"context"
	"strings"
	"testing"

	"github.com/omise/omise-go"
	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

func TestChargeFailure(t *testing.T) {
	code, msg := "insufficient_fund", "insufficient funds in the account"
	ch := &omise.Charge{FailureCode: &code, FailureMessage: &msg}
	ch.ID = "chrg_test_1"

	err := chargeFailure(ch)
	for _, want := range []string{"chrg_test_1", code, msg} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("chargeFailure = %q, missing %q", err, want)
		}
	}

	bare := &omise.Charge{}
	bare.ID = "chrg_test_2"
	require.Contains(t, chargeFailure(bare).Error(), "chrg_test_2")
}

func TestProvider_AuthorizeValidatesBeforeCalling(t *testing.T) {
	p := New(nil)
	_, err := p.Authorize(context.Background(), app.AuthorizeRequest{AmountMinor: 1000, Currency: "THB"})
	require.ErrorIs(t, err, domain.ErrPaymentTokenRequired)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Authorize(ctx, app.AuthorizeRequest{AmountMinor: 1000, PaymentToken: "tokn_test"})
	require.ErrorIs(t, err, context.Canceled)
}
