// Package metrics exposes engine and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beautyboosters"

// Collector implements app.Metrics.
type Collector struct {
	registry *prometheus.Registry

	reservations *prometheus.CounterVec
	responses    *prometheus.CounterVec
	matching     *prometheus.CounterVec
	payments     *prometheus.CounterVec
	sweptExpired prometheus.Counter
	sweptRelease prometheus.Counter
	sweeps       prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, so tests can build
// several without clashing on the global one.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_reservations_total",
			Help:      "Slot reservation attempts by result.",
		}, []string{"result"}),
		responses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booster_responses_total",
			Help:      "Booster responses by action and outcome.",
		}, []string{"action", "outcome"}),
		matching: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matching_attempts_total",
			Help:      "Matching runs by mode and result.",
		}, []string{"mode", "result"}),
		payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_operations_total",
			Help:      "Payment provider operations by operation and result.",
		}, []string{"op", "result"}),
		sweptExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_expired_reservations_total",
			Help:      "Pending reservations expired by the sweeper.",
		}),
		sweptRelease: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_released_authorizations_total",
			Help:      "Stranded authorizations released by the sweeper.",
		}),
		sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_runs_total",
			Help:      "Completed sweeper passes.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"route"}),
	}
}

func (c *Collector) ReservationAttempt(result string) {
	c.reservations.WithLabelValues(result).Inc()
}

func (c *Collector) Response(action, outcome string) {
	c.responses.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) MatchingAttempt(mode, result string) {
	c.matching.WithLabelValues(mode, result).Inc()
}

func (c *Collector) PaymentOperation(op, result string) {
	c.payments.WithLabelValues(op, result).Inc()
}

func (c *Collector) SweepCompleted(expired, released int) {
	c.sweeps.Inc()
	c.sweptExpired.Add(float64(expired))
	c.sweptRelease.Add(float64(released))
}

// ObserveHTTP records one served request. route is the mux pattern, not the
// raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
