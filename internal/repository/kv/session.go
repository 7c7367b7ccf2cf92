package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/store"
)

// rememberMeOn is the literal stored under rememberMe when enabled.
const rememberMeOn = "true"

// SessionRepository implements repository.SessionRepository.
type SessionRepository struct {
	store  store.Store
	logger *slog.Logger
}

// NewSessionRepository creates a session repository over s.
func NewSessionRepository(s store.Store, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{store: s, logger: logger}
}

// Get reads currentUser.
func (r *SessionRepository) Get(ctx context.Context) (*domain.Session, error) {
	var s domain.Session
	ok, err := getJSON(ctx, r.store, r.logger, repository.KeyCurrentUser, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// Save writes currentUser.
func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	return setJSON(ctx, r.store, repository.KeyCurrentUser, s)
}

// Delete removes currentUser.
func (r *SessionRepository) Delete(ctx context.Context) error {
	return remove(ctx, r.store, repository.KeyCurrentUser)
}

// RememberMe reports whether rememberMe holds the enabled literal.
func (r *SessionRepository) RememberMe(ctx context.Context) (bool, error) {
	v, ok, err := r.store.Get(ctx, repository.KeyRememberMe)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", repository.KeyRememberMe, err)
	}
	return ok && v == rememberMeOn, nil
}

// SetRememberMe writes or removes rememberMe.
func (r *SessionRepository) SetRememberMe(ctx context.Context, on bool) error {
	if !on {
		return remove(ctx, r.store, repository.KeyRememberMe)
	}
	if err := r.store.Set(ctx, repository.KeyRememberMe, rememberMeOn); err != nil {
		return fmt.Errorf("write %s: %w", repository.KeyRememberMe, err)
	}
	return nil
}

// RememberedEmail returns the plaintext email under rememberedUser, or "".
func (r *SessionRepository) RememberedEmail(ctx context.Context) (string, error) {
	v, _, err := r.store.Get(ctx, repository.KeyRememberedUser)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", repository.KeyRememberedUser, err)
	}
	return v, nil
}

// SetRememberedEmail writes rememberedUser as a plain string.
func (r *SessionRepository) SetRememberedEmail(ctx context.Context, email string) error {
	if err := r.store.Set(ctx, repository.KeyRememberedUser, email); err != nil {
		return fmt.Errorf("write %s: %w", repository.KeyRememberedUser, err)
	}
	return nil
}
