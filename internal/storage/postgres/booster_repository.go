package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bb-booking/beautyboosters/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BoosterRepository struct {
	db
}

func NewBoosterRepository(pool *pgxpool.Pool) *BoosterRepository {
	return &BoosterRepository{db: db{pool: pool}}
}

// ActiveSlots is computed from live assignments on jobs that are not terminal.
const boosterSelect = `
SELECT b.id, b.name, b.specialties, b.lat, b.lng, b.address, b.radius_km, b.rating,
       b.review_count, b.active, b.rejection_count, b.created_at,
       (SELECT COUNT(*)
        FROM assignments a
        JOIN jobs j ON j.id = a.job_id
        WHERE a.booster_id = b.id
          AND a.status IN ('pending', 'accepted')
          AND j.status NOT IN ('completed', 'cancelled'))
FROM boosters b`

func scanBooster(row pgx.Row) (domain.Booster, error) {
	var (
		b           domain.Booster
		specialties []string
	)
	err := row.Scan(
		&b.ID,
		&b.Name,
		&specialties,
		&b.Location.Lat,
		&b.Location.Lng,
		&b.Location.Address,
		&b.RadiusKm,
		&b.Rating,
		&b.ReviewCount,
		&b.Active,
		&b.RejectionCount,
		&b.CreatedAt,
		&b.ActiveSlots,
	)
	if err != nil {
		return domain.Booster{}, err
	}
	b.Specialties = toSpecialties(specialties)
	return b, nil
}

func (r *BoosterRepository) ListQualifiedBoosters(ctx context.Context, required domain.SpecialtySet) ([]domain.Booster, error) {
	query := boosterSelect + `
WHERE b.active AND b.specialties @> $1
ORDER BY b.id`

	rows, err := r.query(ctx, query, required.Normalize().Strings())
	if err != nil {
		return nil, fmt.Errorf("list boosters: %w", err)
	}
	defer rows.Close()

	var out []domain.Booster
	for rows.Next() {
		b, err := scanBooster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booster: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list boosters: %w", err)
	}
	return out, nil
}

func (r *BoosterRepository) GetBooster(ctx context.Context, id string) (domain.Booster, error) {
	b, err := scanBooster(r.queryRow(ctx, boosterSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Booster{}, domain.ErrBoosterNotFound
		}
		return domain.Booster{}, fmt.Errorf("get booster: %w", err)
	}
	return b, nil
}

func (r *BoosterRepository) BusyBoosterIDs(ctx context.Context, window domain.TimeWindow, excludeJobID string) (map[string]struct{}, error) {
	const query = `
SELECT booster_id
FROM booster_unavailability
WHERE starts_at < $2 AND ends_at > $1
UNION
SELECT a.booster_id
FROM assignments a
JOIN jobs j ON j.id = a.job_id
WHERE a.status IN ('pending', 'accepted')
  AND j.status NOT IN ('completed', 'cancelled')
  AND j.id::text <> $3
  AND j.starts_at < $2 AND j.ends_at > $1`

	rows, err := r.query(ctx, query, window.Start, window.End, excludeJobID)
	if err != nil {
		return nil, fmt.Errorf("busy boosters: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("busy boosters: %w", err)
	}
	busy := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		busy[id] = struct{}{}
	}
	return busy, nil
}

func (r *BoosterRepository) IncrementRejections(ctx context.Context, boosterID string) error {
	tag, err := r.exec(ctx, `UPDATE boosters SET rejection_count = rejection_count + 1 WHERE id = $1`, boosterID)
	if err != nil {
		return fmt.Errorf("increment rejections: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBoosterNotFound
	}
	return nil
}

// UpsertBooster writes directory data. A zero RejectionCount keeps the
// counter already stored.
func (r *BoosterRepository) UpsertBooster(ctx context.Context, b domain.Booster) error {
	const stmt = `
INSERT INTO boosters (id, name, specialties, lat, lng, address, radius_km, rating, review_count, active, rejection_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	specialties = EXCLUDED.specialties,
	lat = EXCLUDED.lat,
	lng = EXCLUDED.lng,
	address = EXCLUDED.address,
	radius_km = EXCLUDED.radius_km,
	rating = EXCLUDED.rating,
	review_count = EXCLUDED.review_count,
	active = EXCLUDED.active,
	rejection_count = CASE WHEN EXCLUDED.rejection_count = 0 THEN boosters.rejection_count ELSE EXCLUDED.rejection_count END`

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.exec(ctx, stmt,
		b.ID,
		b.Name,
		b.Specialties.Normalize().Strings(),
		b.Location.Lat,
		b.Location.Lng,
		b.Location.Address,
		b.RadiusKm,
		b.Rating,
		b.ReviewCount,
		b.Active,
		b.RejectionCount,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("upsert booster: %w", err)
	}
	return nil
}

func (r *BoosterRepository) AddUnavailability(ctx context.Context, u domain.Unavailability) error {
	const stmt = `
INSERT INTO booster_unavailability (id, booster_id, starts_at, ends_at, reason)
VALUES ($1, $2, $3, $4, $5)`

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := r.exec(ctx, stmt, u.ID, u.BoosterID, u.Window.Start, u.Window.End, u.Reason)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrBoosterNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("add unavailability: %w", err)
	}
	return nil
}
