package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/store"
	"github.com/utafrali/storefront/internal/ui"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// LoginRequiredMessage is shown when an anonymous caller hits a guarded action.
const LoginRequiredMessage = "Please login to continue"

// StateHook runs after every session state change with the new session
// (nil when anonymous).
type StateHook func(ctx context.Context, s *domain.Session)

// SessionManager owns the authenticated state of one tab.
type SessionManager struct {
	sessions  repository.SessionRepository
	directory repository.DirectoryRepository
	changes   store.Store
	producer  *event.Producer
	navigator ui.Navigator
	logger    *slog.Logger
	cfg       settings

	mu      sync.RWMutex
	current *domain.Session

	hooksMu sync.RWMutex
	hooks   []StateHook
}

// NewSessionManager creates a session manager. changes supplies the
// cross-tab change feed and may be nil.
func NewSessionManager(
	sessions repository.SessionRepository,
	directory repository.DirectoryRepository,
	changes store.Store,
	producer *event.Producer,
	navigator ui.Navigator,
	logger *slog.Logger,
	opts ...Option,
) *SessionManager {
	return &SessionManager{
		sessions:  sessions,
		directory: directory,
		changes:   changes,
		producer:  producer,
		navigator: navigator,
		logger:    logger,
		cfg:       newSettings(opts),
	}
}

// OnStateChange registers a hook fired after login, logout and Init.
func (m *SessionManager) OnStateChange(h StateHook) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, h)
}

func (m *SessionManager) fire(ctx context.Context) {
	s := m.CurrentUser()
	m.hooksMu.RLock()
	hooks := append([]StateHook(nil), m.hooks...)
	m.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, s)
	}
}

// Init loads the persisted session, validates it, subscribes to the
// cross-tab change feed and refreshes the UI. The watcher lives until ctx
// is cancelled.
func (m *SessionManager) Init(ctx context.Context) error {
	s, err := m.sessions.Get(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	valid := m.Validate(ctx)

	if m.changes != nil {
		if err := m.changes.Watch(ctx, func(c store.Change) { m.handleChange(ctx, c) }); err != nil {
			return fmt.Errorf("watch store changes: %w", err)
		}
	}

	// Validate already refreshed the UI when it logged an expired session out.
	if s == nil || valid {
		m.fire(ctx)
	}
	return nil
}

func (m *SessionManager) handleChange(ctx context.Context, c store.Change) {
	if c.Key != repository.KeyCurrentUser || !c.Removed {
		return
	}

	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()
	if prev == nil {
		return
	}

	logger.WithContext(ctx, m.logger).Info("session ended in another tab",
		slog.String("identity_id", prev.ID),
		slog.String("origin", c.Origin),
	)
	m.fire(ctx)
}

// Login authenticates against the directory. Unknown email and wrong
// password fail identically.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	identities, err := m.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	var match *domain.Identity
	for i := range identities {
		if strings.ToLower(identities[i].Email) == email && identities[i].Password == password {
			match = &identities[i]
			break
		}
	}
	if match == nil {
		return nil, apperrors.InvalidCredentials()
	}

	remember, err := m.sessions.RememberMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("read remember me: %w", err)
	}

	s := domain.NewSession(match, m.cfg.now())
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	// Best effort: the session is already live.
	if remember {
		if err := m.sessions.SetRememberedEmail(ctx, match.Email); err != nil {
			m.logger.WarnContext(ctx, "failed to save remembered email",
				slog.String("identity_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	logger.WithContext(ctx, m.logger).Info("user logged in", slog.String("identity_id", s.ID))

	if err := m.producer.PublishLoggedIn(ctx, s); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish user.logged_in event",
			slog.String("identity_id", s.ID),
			slog.String("error", err.Error()),
		)
	}

	m.fire(ctx)
	return m.CurrentUser(), nil
}

// SetRememberMe sets or clears the remember-me flag consulted by Login.
func (m *SessionManager) SetRememberMe(ctx context.Context, on bool) error {
	if err := m.sessions.SetRememberMe(ctx, on); err != nil {
		return fmt.Errorf("set remember me: %w", err)
	}
	return nil
}

// RememberedEmail returns the email saved by a remembered login, or "".
func (m *SessionManager) RememberedEmail(ctx context.Context) (string, error) {
	email, err := m.sessions.RememberedEmail(ctx)
	if err != nil {
		return "", fmt.Errorf("read remembered email: %w", err)
	}
	return email, nil
}

// Logout ends the session here and, through the change feed, in every
// other tab. The UI is refreshed even when the store writes fail.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	var errs []error
	if err := m.sessions.Delete(ctx); err != nil {
		errs = append(errs, fmt.Errorf("delete session: %w", err))
	}
	if err := m.sessions.SetRememberMe(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("clear remember me: %w", err))
	}

	if prev != nil {
		logger.WithContext(ctx, m.logger).Info("user logged out", slog.String("identity_id", prev.ID))
		if err := m.producer.PublishLoggedOut(ctx, prev); err != nil {
			m.logger.ErrorContext(ctx, "failed to publish user.logged_out event",
				slog.String("identity_id", prev.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	m.fire(ctx)
	return errors.Join(errs...)
}

// Validate reports whether the current session is still within its maximum
// age. An expired session is logged out as a side effect.
func (m *SessionManager) Validate(ctx context.Context) bool {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()

	if s == nil {
		return false
	}
	if !s.Expired(m.cfg.now(), m.cfg.sessionMaxAge) {
		return true
	}

	logger.WithContext(ctx, m.logger).Info("session expired",
		slog.String("identity_id", s.ID),
		slog.Duration("age", s.Age(m.cfg.now()).Round(time.Second)),
	)
	if err := m.Logout(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to clear expired session", slog.String("error", err.Error()))
	}
	return false
}

// Resume re-checks the session when the tab becomes visible again.
func (m *SessionManager) Resume(ctx context.Context) bool {
	return m.Validate(ctx)
}

// IsAuthenticated reports whether a valid session exists.
func (m *SessionManager) IsAuthenticated(ctx context.Context) bool {
	return m.Validate(ctx)
}

// CurrentUser returns a copy of the in-memory session, or nil.
func (m *SessionManager) CurrentUser() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// currentID returns the session identity id, or "".
func (m *SessionManager) currentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// RequireAuth runs action when a valid session exists. Otherwise it tells
// the user to log in, navigates to fallback (the configured default when
// empty) and returns an Unauthorized error.
func (m *SessionManager) RequireAuth(ctx context.Context, action func(ctx context.Context, s *domain.Session) error, fallback string) error {
	if m.IsAuthenticated(ctx) {
		return action(ctx, m.CurrentUser())
	}

	if fallback == "" {
		fallback = m.cfg.fallbackPath
	}
	nav := ui.NavigatorFrom(ctx, m.navigator)
	nav.Notify(ctx, LoginRequiredMessage)
	nav.Navigate(ctx, fallback)
	return apperrors.Unauthorized(LoginRequiredMessage)
}

// applyUpdate merges u into the in-memory session and persists it when the
// session belongs to identityID.
func (m *SessionManager) applyUpdate(ctx context.Context, identityID string, u domain.ProfileUpdate) error {
	m.mu.Lock()
	if m.current == nil || m.current.ID != identityID {
		m.mu.Unlock()
		return nil
	}
	u.ApplyToSession(m.current)
	s := *m.current
	m.mu.Unlock()

	if err := m.sessions.Save(ctx, &s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
