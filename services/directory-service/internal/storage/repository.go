package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/hourbook/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProviderProfile is the directory's record for one provider. The user id
// comes from identity-service; handle and avatar are display data, and
// bookable is the opt-in flag the booking service checks.
type ProviderProfile struct {
	UserID    string
	Handle    string
	AvatarURL string
	Bookable  bool
	UpdatedAt time.Time
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) UpsertProfileTx(ctx context.Context, tx pgx.Tx, p ProviderProfile) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO provider_profiles (user_id, handle, avatar_url, bookable)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET handle = EXCLUDED.handle,
			avatar_url = EXCLUDED.avatar_url,
			bookable = EXCLUDED.bookable,
			updated_at = now()
	`, p.UserID, p.Handle, p.AvatarURL, p.Bookable)
	return err
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (ProviderProfile, error) {
	var p ProviderProfile
	err := r.pool.QueryRow(ctx, `
		SELECT user_id::text, handle, avatar_url, bookable, updated_at
		FROM provider_profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Handle, &p.AvatarURL, &p.Bookable, &p.UpdatedAt)
	if err != nil {
		return ProviderProfile{}, err
	}
	return p, nil
}

func (r *Repository) ListBookable(ctx context.Context, limit int) ([]ProviderProfile, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id::text, handle, avatar_url, bookable, updated_at
		FROM provider_profiles
		WHERE bookable
		ORDER BY handle ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProviderProfile
	for rows.Next() {
		var p ProviderProfile
		if err := rows.Scan(&p.UserID, &p.Handle, &p.AvatarURL, &p.Bookable, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type ScheduleEntry struct {
	AppointmentID string
	RequesterID   string
	StartsAt      time.Time
}

// DaySchedule lists the provider's active appointments inside [dayStart,
// dayStart+24h), ascending. It reads the booking ledger directly; the
// services share one Postgres in this deployment.
func (r *Repository) DaySchedule(ctx context.Context, providerID string, dayStart time.Time) ([]ScheduleEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, requester_id::text, starts_at
		FROM appointments
		WHERE provider_id = $1
		  AND canceled_at IS NULL
		  AND starts_at >= $2
		  AND starts_at < $3
		ORDER BY starts_at ASC
	`, providerID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.AppointmentID, &e.RequesterID, &e.StartsAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
