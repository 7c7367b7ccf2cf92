package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// Store keys.
const (
	KeyUsers          = "users"
	KeyCurrentUser    = "currentUser"
	KeyRememberMe     = "rememberMe"
	KeyRememberedUser = "rememberedUser"
	KeyResetToken     = "passwordResetToken"
	KeyAnonymousCart  = "cart"
)

// CartKey returns the cart key for an identity, or the anonymous cart key
// when identityID is empty.
func CartKey(identityID string) string {
	if identityID == "" {
		return KeyAnonymousCart
	}
	return KeyAnonymousCart + "_" + identityID
}

// DirectoryRepository persists the list of registered identities.
type DirectoryRepository interface {
	// List returns every identity in registration order. A missing or
	// unreadable directory is empty.
	List(ctx context.Context) ([]domain.Identity, error)

	// Save replaces the whole directory.
	Save(ctx context.Context, identities []domain.Identity) error
}

// SessionRepository persists the current session and remember-me state.
type SessionRepository interface {
	// Get returns the persisted session, or nil when there is none.
	Get(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context) error

	RememberMe(ctx context.Context) (bool, error)
	SetRememberMe(ctx context.Context, on bool) error
	RememberedEmail(ctx context.Context) (string, error)
	SetRememberedEmail(ctx context.Context, email string) error
}

// ResetTokenRepository persists the single outstanding reset token.
type ResetTokenRepository interface {
	// Get returns the token record, or nil when there is none.
	Get(ctx context.Context) (*domain.ResetToken, error)
	Save(ctx context.Context, t *domain.ResetToken) error
	Delete(ctx context.Context) error
}

// CartRepository persists carts by store key (see CartKey).
type CartRepository interface {
	// Get returns the cart at key; absent or unreadable carts are empty.
	Get(ctx context.Context, key string) (domain.Cart, error)
	Save(ctx context.Context, key string, cart domain.Cart) error
	Delete(ctx context.Context, key string) error
}
