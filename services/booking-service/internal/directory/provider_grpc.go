//go:build protogen

package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/hourbook/libs/db"
	"github.com/md-rashed-zaman/hourbook/libs/grpcx"
	directoryv1 "github.com/md-rashed-zaman/hourbook/protos/gen/directory/v1"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/booking"
)

type grpcDirectory struct {
	client directoryv1.DirectoryServiceClient
}

func New(pool *db.Pool, logger *slog.Logger, addr string) (booking.Directory, error) {
	if addr == "" {
		return NewPGDirectory(pool), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc directory unavailable, using local cache", "err", err)
		return NewPGDirectory(pool), nil
	}

	logger.Info("grpc directory enabled", "addr", addr)
	return &grpcDirectory{client: directoryv1.NewDirectoryServiceClient(conn)}, nil
}

func (d *grpcDirectory) IsBookable(ctx context.Context, providerID string) (bool, error) {
	resp, err := d.client.GetProvider(ctx, &directoryv1.ProviderRequest{ProviderId: providerID})
	if err != nil {
		return false, err
	}
	return resp.GetBookable(), nil
}
