package postgres

import (
	"context"
	"fmt"

	"github.com/bb-booking/beautyboosters/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	db
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db{pool: pool}}
}

const paymentColumns = `id, job_id, amount_minor, captured_minor, currency, provider_ref, client_secret, status,
discount_code, discount_minor, booster_share_bp, needs_remediation, remediation_reason, capture_claimed_at,
created_at, updated_at`

func scanPayment(row pgx.Row) (domain.PaymentAuthorization, error) {
	var p domain.PaymentAuthorization
	err := row.Scan(
		&p.ID,
		&p.JobID,
		&p.AmountMinor,
		&p.CapturedMinor,
		&p.Currency,
		&p.ProviderRef,
		&p.ClientSecret,
		&p.Status,
		&p.DiscountCode,
		&p.DiscountMinor,
		&p.BoosterShareBP,
		&p.NeedsRemediation,
		&p.RemediationReason,
		&p.CaptureClaimedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p domain.PaymentAuthorization) error {
	const stmt = `
INSERT INTO payment_authorizations (` + paymentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.exec(ctx, stmt,
		p.ID,
		p.JobID,
		p.AmountMinor,
		p.CapturedMinor,
		p.Currency,
		p.ProviderRef,
		p.ClientSecret,
		p.Status,
		p.DiscountCode,
		p.DiscountMinor,
		p.BoosterShareBP,
		p.NeedsRemediation,
		p.RemediationReason,
		p.CaptureClaimedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrJobNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("create payment: job %s already has an authorization", p.JobID)
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetPaymentByJob(ctx context.Context, jobID string) (domain.PaymentAuthorization, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_authorizations WHERE job_id = $1`, jobID)
}

func (r *PaymentRepository) GetPaymentByJobForUpdate(ctx context.Context, jobID string) (domain.PaymentAuthorization, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_authorizations WHERE job_id = $1 FOR UPDATE`, jobID)
}

func (r *PaymentRepository) get(ctx context.Context, query, jobID string) (domain.PaymentAuthorization, error) {
	p, err := scanPayment(r.queryRow(ctx, query, jobID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.PaymentAuthorization{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.PaymentAuthorization{}, domain.ErrPaymentNotFound
		}
		return domain.PaymentAuthorization{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) UpdatePayment(ctx context.Context, p domain.PaymentAuthorization) error {
	const stmt = `
UPDATE payment_authorizations
SET captured_minor = $2,
    provider_ref = $3,
    status = $4,
    needs_remediation = $5,
    remediation_reason = $6,
    capture_claimed_at = $7,
    updated_at = $8
WHERE job_id = $1`

	tag, err := r.exec(ctx, stmt,
		p.JobID,
		p.CapturedMinor,
		p.ProviderRef,
		p.Status,
		p.NeedsRemediation,
		p.RemediationReason,
		p.CaptureClaimedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) ListStrandedAuthorizations(ctx context.Context, limit int) ([]domain.PaymentAuthorization, error) {
	const query = `
SELECT p.id, p.job_id, p.amount_minor, p.captured_minor, p.currency, p.provider_ref, p.client_secret, p.status,
       p.discount_code, p.discount_minor, p.booster_share_bp, p.needs_remediation, p.remediation_reason,
       p.capture_claimed_at, p.created_at, p.updated_at
FROM payment_authorizations p
JOIN jobs j ON j.id = p.job_id
WHERE p.status = 'authorized' AND j.status = 'cancelled'
ORDER BY p.updated_at
LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list stranded authorizations: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentAuthorization
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stranded authorizations: %w", err)
	}
	return out, nil
}
