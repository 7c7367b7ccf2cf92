package kv

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/store"
)

// ResetTokenRepository implements repository.ResetTokenRepository.
type ResetTokenRepository struct {
	store  store.Store
	logger *slog.Logger
}

// NewResetTokenRepository creates a reset token repository over s.
func NewResetTokenRepository(s store.Store, logger *slog.Logger) *ResetTokenRepository {
	return &ResetTokenRepository{store: s, logger: logger}
}

// Get reads passwordResetToken.
func (r *ResetTokenRepository) Get(ctx context.Context) (*domain.ResetToken, error) {
	var t domain.ResetToken
	ok, err := getJSON(ctx, r.store, r.logger, repository.KeyResetToken, &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// Save writes passwordResetToken, replacing any earlier token.
func (r *ResetTokenRepository) Save(ctx context.Context, t *domain.ResetToken) error {
	return setJSON(ctx, r.store, repository.KeyResetToken, t)
}

// Delete removes passwordResetToken.
func (r *ResetTokenRepository) Delete(ctx context.Context) error {
	return remove(ctx, r.store, repository.KeyResetToken)
}
