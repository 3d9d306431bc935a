package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/hourbook/libs/db"
)

// ProviderRecord is the booking service's local view of the provider
// directory, kept fresh from directory.provider.updated.v1 events.
type ProviderRecord struct {
	ProviderID string
	Handle     string
	AvatarURL  string
	Bookable   bool
	UpdatedAt  time.Time
}

func (r *AppointmentRepository) UpsertProvider(ctx context.Context, tx pgx.Tx, rec ProviderRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO provider_directory (provider_id, handle, avatar_url, bookable)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id)
		DO UPDATE SET handle = EXCLUDED.handle,
		              avatar_url = EXCLUDED.avatar_url,
		              bookable = EXCLUDED.bookable,
		              updated_at = now()
	`, rec.ProviderID, rec.Handle, rec.AvatarURL, rec.Bookable)
	return err
}

func (r *AppointmentRepository) GetProvider(ctx context.Context, providerID string) (ProviderRecord, bool, error) {
	var rec ProviderRecord
	err := r.pool.QueryRow(ctx, `
		SELECT provider_id, handle, avatar_url, bookable, updated_at
		FROM provider_directory
		WHERE provider_id = $1
	`, providerID).Scan(&rec.ProviderID, &rec.Handle, &rec.AvatarURL, &rec.Bookable, &rec.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return ProviderRecord{}, false, nil
		}
		return ProviderRecord{}, false, err
	}
	return rec, true, nil
}
