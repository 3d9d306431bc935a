//go:build !protogen

package directory

import (
	"log/slog"

	"github.com/md-rashed-zaman/hourbook/libs/db"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/booking"
)

func New(pool *db.Pool, _ *slog.Logger, _ string) (booking.Directory, error) {
	return NewPGDirectory(pool), nil
}
