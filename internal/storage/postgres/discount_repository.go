package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bb-booking/beautyboosters/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DiscountRepository struct {
	db
}

func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{db: db{pool: pool}}
}

const discountColumns = `code, kind, value, active, expires_at, min_amount_minor, max_redemptions, max_per_customer,
       redemption_count, created_at`

func (r *DiscountRepository) GetDiscount(ctx context.Context, code string) (domain.DiscountCode, error) {
	return r.getDiscount(ctx, `SELECT `+discountColumns+` FROM discount_codes WHERE code = $1`, code)
}

// GetDiscountForUpdate locks the code row so the per-customer count and the
// redemption insert that follow see no concurrent redemption of the same code.
func (r *DiscountRepository) GetDiscountForUpdate(ctx context.Context, code string) (domain.DiscountCode, error) {
	return r.getDiscount(ctx, `SELECT `+discountColumns+` FROM discount_codes WHERE code = $1 FOR UPDATE`, code)
}

func (r *DiscountRepository) getDiscount(ctx context.Context, query, code string) (domain.DiscountCode, error) {
	var d domain.DiscountCode
	err := r.queryRow(ctx, query, code).Scan(
		&d.Code,
		&d.Kind,
		&d.Value,
		&d.Active,
		&d.ExpiresAt,
		&d.MinAmountMinor,
		&d.MaxRedemptions,
		&d.MaxPerCustomer,
		&d.RedemptionCount,
		&d.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.DiscountCode{}, domain.ErrDiscountNotFound
		}
		return domain.DiscountCode{}, fmt.Errorf("get discount: %w", err)
	}
	return d, nil
}

func (r *DiscountRepository) CountCustomerRedemptions(ctx context.Context, code, customerID string) (int, error) {
	var n int
	err := r.queryRow(ctx,
		`SELECT COUNT(*) FROM discount_redemptions WHERE code = $1 AND customer_id = $2`,
		code, customerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}

// Redeem consumes one use of the code. The counter update is conditional on
// the global cap, so two concurrent captures cannot both take the last use.
func (r *DiscountRepository) Redeem(ctx context.Context, red domain.DiscountRedemption) (bool, error) {
	const bump = `
UPDATE discount_codes
SET redemption_count = redemption_count + 1
WHERE code = $1 AND (max_redemptions IS NULL OR redemption_count < max_redemptions)`

	const insert = `
INSERT INTO discount_redemptions (code, customer_id, job_id, amount_minor, created_at)
VALUES ($1, $2, $3, $4, $5)`

	createdAt := red.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var redeemed bool
	err := r.WithTx(ctx, func(txCtx context.Context) error {
		tag, err := r.exec(txCtx, bump, red.Code)
		if err != nil {
			return fmt.Errorf("redeem discount: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := r.queryRow(txCtx, `SELECT EXISTS (SELECT 1 FROM discount_codes WHERE code = $1)`, red.Code).Scan(&exists); err != nil {
				return fmt.Errorf("redeem discount: %w", err)
			}
			if !exists {
				return domain.ErrDiscountNotFound
			}
			return nil
		}
		if _, err := r.exec(txCtx, insert, red.Code, red.CustomerID, red.JobID, red.AmountMinor, createdAt); err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			if isForeignKeyViolation(err) {
				return domain.ErrJobNotFound
			}
			return fmt.Errorf("record redemption: %w", err)
		}
		redeemed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return redeemed, nil
}

func (r *DiscountRepository) UndoRedemption(ctx context.Context, code, jobID string) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		tag, err := r.exec(txCtx, `DELETE FROM discount_redemptions WHERE code = $1 AND job_id = $2`, code, jobID)
		if err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("undo redemption: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		const stmt = `UPDATE discount_codes SET redemption_count = GREATEST(redemption_count - $2, 0) WHERE code = $1`
		if _, err := r.exec(txCtx, stmt, code, tag.RowsAffected()); err != nil {
			return fmt.Errorf("undo redemption: %w", err)
		}
		return nil
	})
}

// UpsertDiscount writes a code definition. The redemption counter of an
// existing code is kept.
func (r *DiscountRepository) UpsertDiscount(ctx context.Context, d domain.DiscountCode) error {
	const stmt = `
INSERT INTO discount_codes (code, kind, value, active, expires_at, min_amount_minor, max_redemptions, max_per_customer, redemption_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (code) DO UPDATE SET
	kind = EXCLUDED.kind,
	value = EXCLUDED.value,
	active = EXCLUDED.active,
	expires_at = EXCLUDED.expires_at,
	min_amount_minor = EXCLUDED.min_amount_minor,
	max_redemptions = EXCLUDED.max_redemptions,
	max_per_customer = EXCLUDED.max_per_customer`

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.exec(ctx, stmt,
		d.Code,
		d.Kind,
		d.Value,
		d.Active,
		d.ExpiresAt,
		d.MinAmountMinor,
		d.MaxRedemptions,
		d.MaxPerCustomer,
		d.RedemptionCount,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("upsert discount: %w", err)
	}
	return nil
}
