package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

type captureSender struct {
	sent []Message
	err  error
}

func (s *captureSender) Send(_ context.Context, m Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func TestMessages(t *testing.T) {
	const jobID = "0f8e2b4c-1111-2222-3333-444455556666"

	tests := []struct {
		name      string
		ev        domain.LifecycleEvent
		audiences []Audience
		recipient string
	}{
		{name: "offer to booster", ev: domain.LifecycleEvent{Type: domain.EventAssigned, BoosterID: "bst_anna"}, audiences: []Audience{AudienceBooster}, recipient: "bst_anna"},
		{name: "fully staffed", ev: domain.LifecycleEvent{Type: domain.EventAssigned}, audiences: []Audience{AudienceCustomer, AudienceCalendar}, recipient: jobID},
		{name: "broadcast", ev: domain.LifecycleEvent{Type: domain.EventBroadcast, BoosterID: "bst_bella"}, audiences: []Audience{AudienceBooster}, recipient: "bst_bella"},
		{name: "escalated", ev: domain.LifecycleEvent{Type: domain.EventEscalated, Detail: "no qualified booster"}, audiences: []Audience{AudienceAdmin}, recipient: "staffing"},
		{name: "payment failed", ev: domain.LifecycleEvent{Type: domain.EventPaymentFailed}, audiences: []Audience{AudienceAdmin}, recipient: "billing"},
		{name: "cancelled", ev: domain.LifecycleEvent{Type: domain.EventCancelled}, audiences: []Audience{AudienceCustomer, AudienceCalendar}, recipient: jobID},
		{name: "not notified", ev: domain.LifecycleEvent{Type: domain.EventCompleted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ev.JobID = jobID
			msgs := Messages(tt.ev)
			require.Len(t, msgs, len(tt.audiences))
			for i, m := range msgs {
				require.Equal(t, tt.audiences[i], m.Audience)
				if i == 0 {
					require.Equal(t, tt.recipient, m.Recipient)
				}
				require.NotContains(t, m.Body, jobID, "bodies use the short id")
			}
		})
	}
}

func TestMessages_EscalationCarriesReason(t *testing.T) {
	msgs := Messages(domain.LifecycleEvent{JobID: "job-1", Type: domain.EventEscalated, Detail: "no replacement booster available"})
	require.Len(t, msgs, 1)
	require.True(t, strings.HasSuffix(msgs[0].Body, "no replacement booster available"), msgs[0].Body)
}

func TestNotifier_Handle(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sender := &captureSender{}
	n := New(sender, logger)
	require.NoError(t, n.Handle(ctx, domain.LifecycleEvent{JobID: "job-1", Type: domain.EventConfirmed}))
	require.Len(t, sender.sent, 2)

	require.NoError(t, n.Handle(ctx, domain.LifecycleEvent{JobID: "job-1", Type: domain.EventCompleted}))
	require.Len(t, sender.sent, 2)

	boom := errors.New("smtp down")
	err := New(&captureSender{err: boom}, logger).Handle(ctx, domain.LifecycleEvent{JobID: "job-1", Type: domain.EventAccepted, BoosterID: "bst_anna"})
	require.ErrorIs(t, err, boom)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := LogSender{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	require.NoError(t, s.Send(context.Background(), Message{Audience: AudienceAdmin, Recipient: "staffing", Subject: "hi"}))
	require.Contains(t, buf.String(), "audience=admin")
	require.Contains(t, buf.String(), "recipient=staffing")
}
