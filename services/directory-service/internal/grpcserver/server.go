//go:build protogen

package grpcserver

import (
	"context"

	"github.com/md-rashed-zaman/hourbook/libs/db"
	directoryv1 "github.com/md-rashed-zaman/hourbook/protos/gen/directory/v1"
	"github.com/md-rashed-zaman/hourbook/services/directory-service/internal/storage"
	"google.golang.org/grpc"
)

type server struct {
	directoryv1.UnimplementedDirectoryServiceServer
	pool *db.Pool
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, pool *db.Pool, repo *storage.Repository) {
	directoryv1.RegisterDirectoryServiceServer(grpcServer, &server{pool: pool, repo: repo})
}

func (s *server) GetProvider(ctx context.Context, req *directoryv1.ProviderRequest) (*directoryv1.ProviderResponse, error) {
	if req.GetProviderId() == "" {
		return &directoryv1.ProviderResponse{}, nil
	}

	p, err := s.repo.GetProfile(ctx, req.GetProviderId())
	if err != nil {
		if storage.IsNotFound(err) {
			// Unknown providers answer as not bookable rather than erroring.
			return &directoryv1.ProviderResponse{ProviderId: req.GetProviderId()}, nil
		}
		return nil, err
	}

	return &directoryv1.ProviderResponse{
		ProviderId: p.UserID,
		Handle:     p.Handle,
		AvatarUrl:  p.AvatarURL,
		Bookable:   p.Bookable,
	}, nil
}
