package app

import (
	"log/slog"
	"time"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// Deps are the collaborators the engine is built over. Jobs, Boosters,
// Payments, Discounts and Provider are required.
type Deps struct {
	Jobs      JobRepository
	Boosters  BoosterRepository
	Payments  PaymentRepository
	Discounts DiscountRepository
	Provider  PaymentProvider
	Clock     clock.Clock
}

// Engine wires the lifecycle components over one set of repositories.
type Engine struct {
	Bookings  *BookingService
	Pool      *CandidatePool
	Ledger    *CapacityLedger
	Matching  *MatchingEngine
	Lifecycle *StateMachine
	Responses *ResponseHandler
	Payments  *PaymentManager
	Discounts *DiscountService
	Sweeper   *Sweeper
}

type engineConfig struct {
	logger          *slog.Logger
	metrics         Metrics
	publisher       EventPublisher
	reservationTTL  time.Duration
	penaltyStep     int
	boosterShareBP  int
	sweepInterval   time.Duration
	sweepBatch      int
	defaultCurrency string
}

type EngineOption func(*engineConfig)

func WithLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m Metrics) EngineOption {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithPublisher(p EventPublisher) EngineOption {
	return func(c *engineConfig) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithReservationTTL overrides how long a pending reservation holds a slot.
func WithReservationTTL(d time.Duration) EngineOption {
	return func(c *engineConfig) {
		if d > 0 {
			c.reservationTTL = d
		}
	}
}

// WithRejectionPenaltyStep sets how many rejections move a booster down one
// ranking tier. Zero disables the penalty.
func WithRejectionPenaltyStep(n int) EngineOption {
	return func(c *engineConfig) {
		if n >= 0 {
			c.penaltyStep = n
		}
	}
}

// WithBoosterShare sets the payout share, in basis points, stored on new
// authorizations.
func WithBoosterShare(bp int) EngineOption {
	return func(c *engineConfig) {
		if bp >= 0 && bp <= 10000 {
			c.boosterShareBP = bp
		}
	}
}

func WithSweepInterval(d time.Duration) EngineOption {
	return func(c *engineConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

func WithSweepBatch(n int) EngineOption {
	return func(c *engineConfig) {
		if n > 0 {
			c.sweepBatch = n
		}
	}
}

func WithDefaultCurrency(code string) EngineOption {
	return func(c *engineConfig) {
		if code != "" {
			c.defaultCurrency = code
		}
	}
}

func NewEngine(deps Deps, opts ...EngineOption) *Engine {
	cfg := engineConfig{
		logger:          discardLogger(),
		metrics:         nopMetrics{},
		publisher:       nopPublisher{},
		reservationTTL:  defaultReservationTTL,
		penaltyStep:     defaultRejectionPenaltyStep,
		boosterShareBP:  domain.DefaultBoosterShareBP,
		sweepInterval:   defaultSweepInterval,
		sweepBatch:      defaultSweepBatch,
		defaultCurrency: "DKK",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	events := emitter{pub: cfg.publisher, logger: cfg.logger}

	pool := NewCandidatePool(deps.Boosters)
	discounts := NewDiscountService(deps.Discounts, clk)
	ledger := &CapacityLedger{
		jobs:    deps.Jobs,
		clock:   clk,
		ttl:     cfg.reservationTTL,
		events:  events,
		metrics: cfg.metrics,
		logger:  cfg.logger.With("component", "ledger"),
	}
	payments := &PaymentManager{
		payments:  deps.Payments,
		discounts: discounts,
		provider:  deps.Provider,
		clock:     clk,
		events:    events,
		metrics:   cfg.metrics,
		logger:    cfg.logger.With("component", "payments"),
		shareBP:   cfg.boosterShareBP,
	}
	machine := &StateMachine{
		jobs:     deps.Jobs,
		ledger:   ledger,
		payments: payments,
		clock:    clk,
		events:   events,
		logger:   cfg.logger.With("component", "lifecycle"),
	}
	matcher := &MatchingEngine{
		jobs:        deps.Jobs,
		pool:        pool,
		ledger:      ledger,
		machine:     machine,
		clock:       clk,
		events:      events,
		metrics:     cfg.metrics,
		logger:      cfg.logger.With("component", "matching"),
		penaltyStep: cfg.penaltyStep,
	}

	return &Engine{
		Bookings: &BookingService{
			jobs:            deps.Jobs,
			payments:        deps.Payments,
			paymentManager:  payments,
			matcher:         matcher,
			clock:           clk,
			logger:          cfg.logger.With("component", "bookings"),
			defaultCurrency: cfg.defaultCurrency,
		},
		Pool:      pool,
		Ledger:    ledger,
		Matching:  matcher,
		Lifecycle: machine,
		Responses: &ResponseHandler{
			jobs:     deps.Jobs,
			boosters: deps.Boosters,
			pool:     pool,
			ledger:   ledger,
			machine:  machine,
			matcher:  matcher,
			clock:    clk,
			events:   events,
			metrics:  cfg.metrics,
			logger:   cfg.logger.With("component", "responses"),
		},
		Payments:  payments,
		Discounts: discounts,
		Sweeper: &Sweeper{
			jobs:     deps.Jobs,
			ledger:   ledger,
			matcher:  matcher,
			payments: payments,
			clock:    clk,
			metrics:  cfg.metrics,
			logger:   cfg.logger.With("component", "sweeper"),
			interval: cfg.sweepInterval,
			batch:    cfg.sweepBatch,
		},
	}
}
