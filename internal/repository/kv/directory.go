package kv

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/store"
)

// DirectoryRepository implements repository.DirectoryRepository.
type DirectoryRepository struct {
	store  store.Store
	logger *slog.Logger
}

// NewDirectoryRepository creates a directory repository over s.
func NewDirectoryRepository(s store.Store, logger *slog.Logger) *DirectoryRepository {
	return &DirectoryRepository{store: s, logger: logger}
}

// List reads the users key.
func (r *DirectoryRepository) List(ctx context.Context) ([]domain.Identity, error) {
	var ids []domain.Identity
	ok, err := getJSON(ctx, r.store, r.logger, repository.KeyUsers, &ids)
	if err != nil {
		return nil, err
	}
	if !ok || ids == nil {
		return []domain.Identity{}, nil
	}
	for i := range ids {
		ids[i].Profile = ids[i].Profile.Normalized()
	}
	return ids, nil
}

// Save writes the users key.
func (r *DirectoryRepository) Save(ctx context.Context, identities []domain.Identity) error {
	if identities == nil {
		identities = []domain.Identity{}
	}
	return setJSON(ctx, r.store, repository.KeyUsers, identities)
}
