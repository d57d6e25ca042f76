package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bb-booking/beautyboosters/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	db
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db{pool: pool}}
}

const jobColumns = `id, customer_id, client_type, source, specialties, required_slots, reserved_slots, status,
starts_at, ends_at, address, lat, lng, amount_minor, currency, notes, created_at, updated_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var (
		j           domain.Job
		specialties []string
	)
	err := row.Scan(
		&j.ID,
		&j.CustomerID,
		&j.ClientType,
		&j.Source,
		&specialties,
		&j.RequiredSlots,
		&j.ReservedSlots,
		&j.Status,
		&j.Window.Start,
		&j.Window.End,
		&j.Location.Address,
		&j.Location.Lat,
		&j.Location.Lng,
		&j.AmountMinor,
		&j.Currency,
		&j.Notes,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	j.Specialties = toSpecialties(specialties)
	return j, nil
}

func toSpecialties(raw []string) domain.SpecialtySet {
	out := make(domain.SpecialtySet, len(raw))
	for i, s := range raw {
		out[i] = domain.Specialty(s)
	}
	return out
}

func (r *JobRepository) CreateJob(ctx context.Context, job domain.Job) error {
	const stmt = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.exec(ctx, stmt,
		job.ID,
		job.CustomerID,
		job.ClientType,
		job.Source,
		job.Specialties.Strings(),
		job.RequiredSlots,
		job.ReservedSlots,
		job.Status,
		job.Window.Start,
		job.Window.End,
		job.Location.Address,
		job.Location.Lat,
		job.Location.Lng,
		job.AmountMinor,
		job.Currency,
		job.Notes,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (domain.Job, error) {
	return r.getJob(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
}

// GetJobForUpdate locks the job row until the surrounding transaction ends.
func (r *JobRepository) GetJobForUpdate(ctx context.Context, id string) (domain.Job, error) {
	return r.getJob(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
}

func (r *JobRepository) getJob(ctx context.Context, query, id string) (domain.Job, error) {
	j, err := scanJob(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Job{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *JobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, now time.Time) error {
	tag, err := r.exec(ctx, `UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now)
	return jobUpdated("update job status", tag, err)
}

func (r *JobRepository) ListJobsByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	const query = `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at, id LIMIT $2`

	rows, err := r.query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

// TryReserveSlot is the single conditional update that bounds reserved_slots.
func (r *JobRepository) TryReserveSlot(ctx context.Context, jobID string, now time.Time) (bool, error) {
	const stmt = `
UPDATE jobs
SET reserved_slots = reserved_slots + 1, updated_at = $2
WHERE id = $1
  AND reserved_slots < required_slots
  AND status IN ('open', 'pending_assignment')`

	tag, err := r.exec(ctx, stmt, jobID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	if !exists {
		return false, domain.ErrJobNotFound
	}
	return false, nil
}

func (r *JobRepository) ReleaseSlots(ctx context.Context, jobID string, n int, now time.Time) error {
	const stmt = `UPDATE jobs SET reserved_slots = GREATEST(reserved_slots - $2, 0), updated_at = $3 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, jobID, n, now)
	return jobUpdated("release slots", tag, err)
}

func (r *JobRepository) ResetReservedSlots(ctx context.Context, jobID string, now time.Time) error {
	tag, err := r.exec(ctx, `UPDATE jobs SET reserved_slots = 0, updated_at = $2 WHERE id = $1`, jobID, now)
	return jobUpdated("reset slots", tag, err)
}

func jobUpdated(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Assignments.

const assignmentColumns = `id, job_id, booster_id, status, origin, expires_at, responded_at, created_at`

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.JobID, &a.BoosterID, &a.Status, &a.Origin, &a.ExpiresAt, &a.RespondedAt, &a.CreatedAt)
	return a, err
}

func collectAssignments(rows pgx.Rows, op string) ([]domain.Assignment, error) {
	defer rows.Close()
	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *JobRepository) CreateAssignment(ctx context.Context, a domain.Assignment) error {
	const stmt = `
INSERT INTO assignments (` + assignmentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		a.ID,
		a.JobID,
		a.BoosterID,
		a.Status,
		a.Origin,
		a.ExpiresAt,
		a.RespondedAt,
		a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBoosterAlreadyOnJob
		}
		if isForeignKeyViolation(err) {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.ConstraintName == "assignments_booster_id_fkey" {
				return domain.ErrBoosterNotFound
			}
			return domain.ErrJobNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (r *JobRepository) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	a, err := scanAssignment(r.queryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Assignment{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Assignment{}, domain.ErrAssignmentNotFound
		}
		return domain.Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// LatestAssignment returns nil when the booster never held a slot on the job.
func (r *JobRepository) LatestAssignment(ctx context.Context, jobID, boosterID string) (*domain.Assignment, error) {
	const query = `
SELECT ` + assignmentColumns + `
FROM assignments
WHERE job_id = $1 AND booster_id = $2
ORDER BY created_at DESC, id DESC
LIMIT 1`

	a, err := scanAssignment(r.queryRow(ctx, query, jobID, boosterID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest assignment: %w", err)
	}
	return &a, nil
}

func (r *JobRepository) ListAssignments(ctx context.Context, jobID string) ([]domain.Assignment, error) {
	const query = `SELECT ` + assignmentColumns + ` FROM assignments WHERE job_id = $1 ORDER BY created_at, id`
	rows, err := r.query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return collectAssignments(rows, "list assignments")
}

func (r *JobRepository) UpdateAssignmentStatus(ctx context.Context, id string, from, to domain.AssignmentStatus, at time.Time) error {
	const stmt = `
UPDATE assignments
SET status = $3,
    responded_at = CASE WHEN $3 IN ('accepted', 'rejected') THEN $4::timestamptz ELSE responded_at END
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, id, from, string(to), at)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBoosterAlreadyOnJob
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

func (r *JobRepository) ExpirePending(ctx context.Context, jobID string, now time.Time) ([]domain.Assignment, error) {
	const stmt = `
UPDATE assignments
SET status = 'expired'
WHERE job_id = $1 AND status = 'pending' AND expires_at <= $2
RETURNING ` + assignmentColumns

	rows, err := r.query(ctx, stmt, jobID, now)
	if err != nil {
		return nil, fmt.Errorf("expire pending: %w", err)
	}
	return collectAssignments(rows, "expire pending")
}

func (r *JobRepository) ListOverdueJobIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const query = `
SELECT DISTINCT a.job_id::text
FROM assignments a
JOIN jobs j ON j.id = a.job_id
WHERE a.status = 'pending'
  AND a.expires_at <= $1
  AND j.status NOT IN ('completed', 'cancelled')
ORDER BY 1
LIMIT $2`

	rows, err := r.query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue jobs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list overdue jobs: %w", err)
	}
	return ids, nil
}

// SupersedeActive closes every live assignment on the job. Pending ones get
// now as their closing time; accepted ones keep the time they were accepted.
func (r *JobRepository) SupersedeActive(ctx context.Context, jobID string, now time.Time) ([]domain.Assignment, error) {
	const stmt = `
UPDATE assignments
SET status = 'superseded', responded_at = COALESCE(responded_at, $2)
WHERE job_id = $1 AND status IN ('pending', 'accepted')
RETURNING ` + assignmentColumns

	rows, err := r.query(ctx, stmt, jobID, now)
	if err != nil {
		return nil, fmt.Errorf("supersede assignments: %w", err)
	}
	return collectAssignments(rows, "supersede assignments")
}

func (r *JobRepository) CountAssignments(ctx context.Context, jobID string, status domain.AssignmentStatus) (int, error) {
	var n int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE job_id = $1 AND status = $2`, jobID, status).Scan(&n)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return n, nil
}
