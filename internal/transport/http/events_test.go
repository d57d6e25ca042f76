package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

func TestStreamEvents_DeliversJobEvents(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.token(t, "adm_1", domain.RoleAdmin)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/admin/events?job_id=job-1&access_token="+admin, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return f.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.bus.Publish(ctx, domain.LifecycleEvent{JobID: "job-2", Type: domain.EventCancelled}))
	require.NoError(t, f.bus.Publish(ctx, domain.LifecycleEvent{
		JobID:     "job-1",
		Type:      domain.EventAccepted,
		BoosterID: "bst_anna",
		JobStatus: domain.JobStatusAssigned,
	}))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		lines = append(lines, line)
	}
	require.Equal(t, "event: accepted", lines[0])
	require.Contains(t, lines[1], `"job_id":"job-1"`)
	require.Contains(t, lines[1], `"candidate_id":"bst_anna"`)
}

func TestStreamEvents_RequiresStaff(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"customer", f.token(t, "cus_1", domain.RoleCustomer), http.StatusForbidden},
		{"booster", f.token(t, "bst_anna", domain.RoleBooster), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/admin/events", tt.token, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
	require.Zero(t, f.bus.Subscribers())
}
