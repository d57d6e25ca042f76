package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 100
)

// Sweeper bounds pending reservations and retries stranded releases.
type Sweeper struct {
	jobs     JobRepository
	ledger   *CapacityLedger
	matcher  *MatchingEngine
	payments *PaymentManager
	clock    clock.Clock
	metrics  Metrics
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

type SweepReport struct {
	Jobs         int
	Expired      int
	Replacements int
	Escalated    int
	Released     int
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	report, err := s.SweepOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("sweep failed", "err", err)
		return
	}
	if report.Expired > 0 || report.Released > 0 {
		s.logger.Info("sweep completed",
			"jobs", report.Jobs,
			"expired", report.Expired,
			"replacements", report.Replacements,
			"escalated", report.Escalated,
			"released", report.Released,
		)
	}
}

// SweepOnce expires overdue reservations, makes one replacement attempt per
// expired slot and retries releases for cancelled jobs.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	ids, err := s.jobs.ListOverdueJobIDs(ctx, s.clock.Now(), s.batch)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		expired, err := s.ledger.ExpireStale(ctx, id)
		if err != nil {
			s.logger.Warn("expire reservations", "job_id", id, "err", err)
			continue
		}
		report.Jobs++
		report.Expired += len(expired)

	slots:
		for _, a := range expired {
			token, err := s.matcher.FindReplacement(ctx, id, a.BoosterID)
			switch {
			case errors.Is(err, domain.ErrNoCandidateAvailable):
				report.Escalated++
				break slots
			case err != nil:
				s.logger.Warn("replace expired reservation", "job_id", id, "err", err)
				break slots
			case token == nil:
				break slots
			default:
				report.Replacements++
			}
		}
	}

	released, err := s.payments.ReleaseStranded(ctx, s.batch)
	report.Released = released
	s.metrics.SweepCompleted(report.Expired, report.Released)
	if err != nil {
		return report, err
	}
	return report, nil
}
