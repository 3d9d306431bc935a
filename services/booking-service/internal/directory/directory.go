// Package directory implements the consumed provider-directory lookup.
// The default implementation reads the local cache table fed by directory
// events; builds with generated protos can query directory-service over
// gRPC instead.
package directory

import (
	"context"

	"github.com/md-rashed-zaman/hourbook/libs/db"
)

// PGDirectory answers bookability from the provider_directory cache table.
// An unknown provider and a provider that opted out both answer false.
type PGDirectory struct {
	pool *db.Pool
}

func NewPGDirectory(pool *db.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

func (d *PGDirectory) IsBookable(ctx context.Context, providerID string) (bool, error) {
	var bookable bool
	err := d.pool.QueryRow(ctx, `
		SELECT bookable
		FROM provider_directory
		WHERE provider_id = $1
	`, providerID).Scan(&bookable)
	if err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return bookable, nil
}
