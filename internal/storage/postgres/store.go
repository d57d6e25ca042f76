package postgres

import (
	"context"

	"github.com/bb-booking/beautyboosters/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store groups the repositories over one pool. They share the context
// transaction, so a WithTx on any of them covers all four.
type Store struct {
	Jobs      *JobRepository
	Boosters  *BoosterRepository
	Payments  *PaymentRepository
	Discounts *DiscountRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Jobs:      NewJobRepository(pool),
		Boosters:  NewBoosterRepository(pool),
		Payments:  NewPaymentRepository(pool),
		Discounts: NewDiscountRepository(pool),
	}
}

func (s *Store) UpsertBooster(ctx context.Context, b domain.Booster) error {
	return s.Boosters.UpsertBooster(ctx, b)
}

func (s *Store) AddUnavailability(ctx context.Context, u domain.Unavailability) error {
	return s.Boosters.AddUnavailability(ctx, u)
}

func (s *Store) UpsertDiscount(ctx context.Context, d domain.DiscountCode) error {
	return s.Discounts.UpsertDiscount(ctx, d)
}
