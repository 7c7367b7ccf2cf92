package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// RegisterInput holds the sign-up form. Fields are validated in
// declaration order and the first failure is reported.
type RegisterInput struct {
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,loose_email"`
	Phone           string `json:"phone" validate:"required,mobile"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// AccountService manages the directory of registered identities.
type AccountService struct {
	directory repository.DirectoryRepository
	sessions  *SessionManager
	producer  *event.Producer
	ids       *IDGenerator
	logger    *slog.Logger
	cfg       settings

	// mu serializes directory read-modify-write within this process.
	mu sync.Mutex
}

// NewAccountService creates an account service.
func NewAccountService(
	directory repository.DirectoryRepository,
	sessions *SessionManager,
	producer *event.Producer,
	logger *slog.Logger,
	opts ...Option,
) *AccountService {
	cfg := newSettings(opts)
	return &AccountService{
		directory: directory,
		sessions:  sessions,
		producer:  producer,
		ids:       NewIDGenerator(cfg.now),
		logger:    logger,
		cfg:       cfg,
	}
}

// validationFailure converts a validator error into a ValidationError
// naming the first offending field.
func validationFailure(err error) error {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		field, msg := verr.First()
		return apperrors.Validation(field + " " + msg)
	}
	return apperrors.Validation(err.Error())
}

// Register creates an identity and logs it in with the supplied password.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.Identity, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validator.Validate(&in); err != nil {
		return nil, validationFailure(err)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	identity, err := s.create(ctx, in, email)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).Info("user registered", slog.String("identity_id", identity.ID))

	if err := s.producer.PublishUserRegistered(ctx, identity); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}

	// The identity is persisted; a failed login leaves the tab anonymous.
	if _, err := s.sessions.Login(ctx, email, in.Password); err != nil {
		s.logger.ErrorContext(ctx, "failed to log in after registration",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}
	return identity, nil
}

func (s *AccountService) create(ctx context.Context, in RegisterInput, email string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	for _, existing := range identities {
		if strings.ToLower(existing.Email) == email {
			return nil, apperrors.DuplicateEmail(email)
		}
	}

	identity := domain.Identity{
		ID:        s.ids.Next(),
		Name:      in.Name,
		Email:     email,
		Phone:     in.Phone,
		Password:  in.Password,
		CreatedAt: s.cfg.now(),
		Profile:   domain.NewProfile(),
	}
	if err := s.directory.Save(ctx, append(identities, identity)); err != nil {
		return nil, fmt.Errorf("save directory: %w", err)
	}
	return &identity, nil
}

// UpdateProfile merges the set fields of u into the identity and, when it
// is the logged-in identity, into the session too.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, u domain.ProfileUpdate) (*domain.Identity, error) {
	return s.modify(ctx, id, func(*domain.Identity) (domain.ProfileUpdate, error) {
		return u, nil
	})
}

// modify builds an update from the stored identity under the directory
// lock, applies it, then merges it into the session and publishes
// user.updated.
func (s *AccountService) modify(ctx context.Context, id string, build func(*domain.Identity) (domain.ProfileUpdate, error)) (*domain.Identity, error) {
	var applied domain.ProfileUpdate
	updated, err := s.update(ctx, id, func(identity *domain.Identity) error {
		u, err := build(identity)
		if err != nil {
			return err
		}
		u.ApplyTo(identity)
		applied = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.applyUpdate(ctx, id, applied); err != nil {
		return nil, err
	}

	if err := s.producer.PublishUserUpdated(ctx, updated); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("identity_id", id),
			slog.String("error", err.Error()),
		)
	}
	return updated, nil
}

// update applies fn to the identity with the given id and saves the
// directory. fn runs under the directory lock.
func (s *AccountService) update(ctx context.Context, id string, fn func(*domain.Identity) error) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	idx := indexOf(identities, id)
	if idx < 0 {
		return nil, apperrors.NotFound("user", id)
	}
	if err := fn(&identities[idx]); err != nil {
		return nil, err
	}
	if err := s.directory.Save(ctx, identities); err != nil {
		return nil, fmt.Errorf("save directory: %w", err)
	}
	out := identities[idx]
	return &out, nil
}

func indexOf(identities []domain.Identity, id string) int {
	for i := range identities {
		if identities[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *AccountService) find(ctx context.Context, id string) (*domain.Identity, error) {
	identities, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	if i := indexOf(identities, id); i >= 0 {
		return &identities[i], nil
	}
	return nil, nil
}

// GetIdentity returns the identity with the given id.
func (s *AccountService) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, apperrors.NotFound("user", id)
	}
	return identity, nil
}

// FindByEmail returns the identity with the given email (case-insensitive),
// or nil.
func (s *AccountService) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	identities, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for i := range identities {
		if strings.ToLower(identities[i].Email) == email {
			return &identities[i], nil
		}
	}
	return nil, nil
}

// GetProfile returns the identity's profile, or an empty one when the
// identity does not exist.
func (s *AccountService) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	identity, err := s.find(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if identity == nil {
		return domain.NewProfile(), nil
	}
	return identity.Profile.Normalized(), nil
}

// GetAddresses returns the saved addresses, or an empty list.
func (s *AccountService) GetAddresses(ctx context.Context, id string) ([]domain.Address, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Addresses, nil
}

// GetOrders returns the order history, or an empty list.
func (s *AccountService) GetOrders(ctx context.Context, id string) ([]json.RawMessage, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Orders, nil
}

// AddAddress appends an address to the identity's profile.
func (s *AccountService) AddAddress(ctx context.Context, id string, in domain.AddressInput) (*domain.Address, error) {
	addr := in.ToAddress(s.ids.Next(), s.cfg.now())
	_, err := s.modify(ctx, id, func(identity *domain.Identity) (domain.ProfileUpdate, error) {
		addresses := append(identity.Profile.Normalized().Addresses, addr)
		return domain.ProfileUpdate{Addresses: &addresses}, nil
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// AddOrder appends an order to the identity's history. An unknown identity
// is ignored.
func (s *AccountService) AddOrder(ctx context.Context, id string, order json.RawMessage) error {
	_, err := s.modify(ctx, id, func(identity *domain.Identity) (domain.ProfileUpdate, error) {
		orders := append(identity.Profile.Normalized().Orders, order)
		return domain.ProfileUpdate{Orders: &orders}, nil
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.WithContext(ctx, s.logger).Debug("ignoring order for unknown identity", slog.String("identity_id", id))
		return nil
	}
	return err
}

// ChangePassword replaces the password after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	updated, err := s.modify(ctx, id, func(identity *domain.Identity) (domain.ProfileUpdate, error) {
		if identity.Password != oldPassword {
			return domain.ProfileUpdate{}, apperrors.AuthFailed("current password is incorrect")
		}
		if passwordTooShort(newPassword) {
			return domain.ProfileUpdate{}, apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		return domain.ProfileUpdate{Password: &newPassword}, nil
	})
	if err != nil {
		return err
	}

	if err := s.producer.PublishPasswordChanged(ctx, updated); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.String("identity_id", id),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
