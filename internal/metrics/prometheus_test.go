package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCollector_Counters(t *testing.T) {
	c := New()
	c.ReservationAttempt("reserved")
	c.ReservationAttempt("reserved")
	c.PaymentOperation("capture", "ok")
	c.SweepCompleted(3, 1)
	c.ObserveHTTP(http.MethodPost, "POST /jobs", http.StatusCreated, 20*time.Millisecond)

	require.Equal(t, 2.0, counterValue(t, c, "beautyboosters_slot_reservations_total", map[string]string{"result": "reserved"}))
	require.Equal(t, 1.0, counterValue(t, c, "beautyboosters_payment_operations_total", map[string]string{"op": "capture", "result": "ok"}))
	require.Equal(t, 3.0, counterValue(t, c, "beautyboosters_sweeper_expired_reservations_total", nil))
	require.Equal(t, 1.0, counterValue(t, c, "beautyboosters_sweeper_runs_total", nil))
	require.Equal(t, 1.0, counterValue(t, c, "beautyboosters_http_requests_total", map[string]string{"method": "POST", "route": "POST /jobs", "status": "201"}))

	// Separate collectors do not share state.
	require.Zero(t, counterValue(t, New(), "beautyboosters_sweeper_runs_total", nil))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.MatchingAttempt("auto", "reserved")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `beautyboosters_matching_attempts_total{mode="auto",result="reserved"} 1`), string(body))
}
