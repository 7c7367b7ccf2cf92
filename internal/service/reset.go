package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// Token failure messages.
const (
	msgNoResetRequest = "no password reset was requested"
	msgTokenMismatch  = "invalid reset token"
	msgTokenExpired   = "reset token has expired"
)

// TokenDeliverer sends a fresh reset token to its owner.
type TokenDeliverer interface {
	DeliverResetToken(ctx context.Context, t *domain.ResetToken) error
}

// ResetService issues and redeems password-reset tokens.
type ResetService struct {
	tokens   repository.ResetTokenRepository
	accounts *AccountService
	delivery TokenDeliverer
	producer *event.Producer
	logger   *slog.Logger
	cfg      settings

	// mu serializes token issue, validation and redemption so a token is
	// redeemed at most once per process.
	mu sync.Mutex
}

// NewResetService creates a reset service. delivery may be nil, in which
// case the token is only returned to the caller.
func NewResetService(
	tokens repository.ResetTokenRepository,
	accounts *AccountService,
	delivery TokenDeliverer,
	producer *event.Producer,
	logger *slog.Logger,
	opts ...Option,
) *ResetService {
	return &ResetService{
		tokens:   tokens,
		accounts: accounts,
		delivery: delivery,
		producer: producer,
		logger:   logger,
		cfg:      newSettings(opts),
	}
}

// newToken is the issue time in base 36 followed by a random suffix.
func newToken(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 36) + rand.Text()
}

// RequestReset issues a token for email, replacing any outstanding one.
func (s *ResetService) RequestReset(ctx context.Context, email string) (*domain.ResetToken, error) {
	identity, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, apperrors.NotFoundMessage("no account found with that email")
	}

	now := s.cfg.now()
	t := &domain.ResetToken{
		Email:  identity.Email,
		Token:  newToken(now),
		Expiry: now.Add(s.cfg.resetTTL),
		UserID: identity.ID,
	}
	s.mu.Lock()
	err = s.tokens.Save(ctx, t)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("save reset token: %w", err)
	}

	logger.WithContext(ctx, s.logger).Info("password reset requested", slog.String("identity_id", identity.ID))

	if s.delivery != nil {
		if err := s.delivery.DeliverResetToken(ctx, t); err != nil {
			s.logger.ErrorContext(ctx, "failed to deliver reset token",
				slog.String("identity_id", identity.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.producer.PublishResetRequested(ctx, t); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset_requested event",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}
	return t, nil
}

// check loads the outstanding token and verifies token against it. An
// expired record is deleted. Callers hold s.mu.
func (s *ResetService) check(ctx context.Context, token string) (*domain.ResetToken, error) {
	t, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reset token: %w", err)
	}
	if t == nil {
		return nil, apperrors.InvalidToken(msgNoResetRequest)
	}
	if t.Token != strings.TrimSpace(token) {
		return nil, apperrors.InvalidToken(msgTokenMismatch)
	}
	if t.Expired(s.cfg.now()) {
		if err := s.tokens.Delete(ctx); err != nil {
			return nil, fmt.Errorf("delete expired reset token: %w", err)
		}
		return nil, apperrors.InvalidToken(msgTokenExpired)
	}
	return t, nil
}

// ValidateToken returns the email the token was issued for.
func (s *ResetService) ValidateToken(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.check(ctx, token)
	if err != nil {
		return "", err
	}
	return t.Email, nil
}

// ResetWithToken sets a new password and consumes the token.
func (s *ResetService) ResetWithToken(ctx context.Context, token, newPassword string) error {
	updated, err := s.redeem(ctx, token, newPassword)
	if err != nil {
		return err
	}

	logger.WithContext(ctx, s.logger).Info("password reset completed", slog.String("identity_id", updated.ID))

	if err := s.producer.PublishPasswordReset(ctx, updated); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset event",
			slog.String("identity_id", updated.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// redeem checks the token, updates the password and deletes the token in
// one critical section.
func (s *ResetService) redeem(ctx context.Context, token, newPassword string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.check(ctx, token)
	if err != nil {
		return nil, err
	}
	if passwordTooShort(newPassword) {
		return nil, apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	updated, err := s.accounts.UpdateProfile(ctx, t.UserID, domain.ProfileUpdate{Password: &newPassword})
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Delete(ctx); err != nil {
		return nil, fmt.Errorf("delete reset token: %w", err)
	}
	return updated, nil
}
