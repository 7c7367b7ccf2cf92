package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/ui"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func registered(t *testing.T, tb *tab) *domain.Identity {
	t.Helper()
	identity, err := tb.accounts.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	return identity
}

// ============================================================================
// Login
// ============================================================================

func TestLogin_Success(t *testing.T) {
	tb := newTestTab(t)
	ctx := context.Background()
	identity := registered(t, tb)
	require.NoError(t, tb.sessions.Logout(ctx))

	s, err := tb.sessions.Login(ctx, "  ASHA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, s.ID)
	assert.Equal(t, "Asha Rao", s.Name)
	assert.Equal(t, "asha@example.com", s.Email)
	assert.Equal(t, time.Duration(0), s.Age(tb.clock.Now()))
	assert.True(t, tb.sessions.IsAuthenticated(ctx))

	raw, err := tb.mr.Get("storefront:currentUser")
	require.NoError(t, err)
	assert.Contains(t, raw, `"id":"`+identity.ID+`"`)
	assert.NotContains(t, raw, "secret1")

	snap := tb.doc.Snapshot()
	assert.False(t, snap[ui.ElementNavGuest].Visible)
	assert.True(t, snap[ui.ElementNavUser].Visible)
	assert.Equal(t, "Asha Rao", snap[ui.ElementNavUserName].Text)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	tb := newTestTab(t)
	ctx := context.Background()
	registered(t, tb)
	require.NoError(t, tb.sessions.Logout(ctx))

	_, wrongPassword := tb.sessions.Login(ctx, "asha@example.com", "Secret1")
	_, unknownEmail := tb.sessions.Login(ctx, "nobody@example.com", "secret1")

	var a, b *apperrors.AppError
	require.True(t, errors.As(wrongPassword, &a))
	require.True(t, errors.As(unknownEmail, &b))
	assert.Equal(t, apperrors.CodeInvalidCredentials, a.Code)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)

	assert.False(t, tb.sessions.IsAuthenticated(ctx))
	assert.False(t, tb.mr.Exists("storefront:currentUser"))
}

func TestLogin_RememberMe(t *testing.T) {
	tb := newTestTab(t)
	ctx := context.Background()
	registered(t, tb)
	require.NoError(t, tb.sessions.Logout(ctx))

	require.NoError(t, tb.sessions.SetRememberMe(ctx, true))
	_, err := tb.sessions.Login(ctx, "Asha@example.com", "secret1")
	require.NoError(t, err)

	email, err := tb.sessions.RememberedEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", email)

	raw, _ := tb.mr.Get("storefront:rememberedUser")
	assert.Equal(t, "asha@example.com", raw, "stored as a plain string")

	// Logout clears the flag but keeps the remembered email.
	require.NoError(t, tb.sessions.Logout(ctx))
	assert.False(t, tb.mr.Exists("storefront:rememberMe"))
	email, err = tb.sessions.RememberedEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", email)
}

func TestLogin_WithoutRememberMeSavesNoEmail(t *testing.T) {
	tb := newTestTab(t)
	registered(t, tb)

	email, err := tb.sessions.RememberedEmail(context.Background())
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestLogin_RememberedEmailWriteIsBestEffort(t *testing.T) {
	flaky := &flakySessions{failRememberedEmail: true}
	tb := newTabWith(t, miniredis.RunT(t), "tab-a", newFakeClock(), func(r repository.SessionRepository) repository.SessionRepository {
		flaky.SessionRepository = r
		return flaky
	})
	ctx := context.Background()
	registered(t, tb)
	require.NoError(t, tb.sessions.Logout(ctx))

	require.NoError(t, tb.sessions.SetRememberMe(ctx, true))
	s, err := tb.sessions.Login(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.True(t, tb.sessions.IsAuthenticated(ctx))
	assert.True(t, tb.mr.Exists("storefront:currentUser"))
	assert.False(t, tb.mr.Exists("storefront:rememberedUser"))
}

func TestLogin_RememberMeReadFailurePersistsNothing(t *testing.T) {
	flaky := &flakySessions{}
	tb := newTabWith(t, miniredis.RunT(t), "tab-a", newFakeClock(), func(r repository.SessionRepository) repository.SessionRepository {
		flaky.SessionRepository = r
		return flaky
	})
	ctx := context.Background()
	registered(t, tb)
	require.NoError(t, tb.sessions.Logout(ctx))

	flaky.failRememberMe = true
	_, err := tb.sessions.Login(ctx, "asha@example.com", "secret1")
	assert.ErrorIs(t, err, errStoreDown)

	assert.Nil(t, tb.sessions.CurrentUser())
	assert.False(t, tb.mr.Exists("storefront:currentUser"))
}

// ============================================================================
// Logout and expiry
// ============================================================================

func TestLogout(t *testing.T) {
	tb := newTestTab(t)
	ctx := context.Background()
	registered(t, tb)

	require.NoError(t, tb.sessions.Logout(ctx))
	assert.Nil(t, tb.sessions.CurrentUser())
	assert.False(t, tb.sessions.IsAuthenticated(ctx))
	assert.False(t, tb.mr.Exists("storefront:currentUser"))
	assert.Contains(t, tb.pub.Topics(), event.TopicUserLoggedOut)

	snap := tb.doc.Snapshot()
	assert.True(t, snap[ui.ElementNavGuest].Visible)
	assert.False(t, snap[ui.ElementNavUser].Visible)
}

func TestLogout_WhenAnonymousIsHarmless(t *testing.T) {
	tb := newTestTab(t)
	require.NoError(t, tb.sessions.Logout(context.Background()))
	assert.NotContains(t, tb.pub.Topics(), event.TopicUserLoggedOut)
}

func TestValidate_Expiry(t *testing.T) {
	tb := newTestTab(t)
	ctx := context.Background()
	registered(t, tb)

	tb.clock.Advance(24 * time.Hour)
	assert.True(t, tb.sessions.Validate(ctx), "exactly the maximum age is still valid")

	tb.clock.Advance(time.Millisecond)
	assert.False(t, tb.sessions.IsAuthenticated(ctx))
	assert.Nil(t, tb.sessions.CurrentUser())
	assert.False(t, tb.mr.Exists("storefront:currentUser"))
	assert.True(t, tb.doc.Snapshot()[ui.ElementNavGuest].Visible)
}

func TestResume_ExpiresStaleSession(t *testing.T) {
	tb := newTestTab(t)
	ctx := context.Background()
	registered(t, tb)

	assert.True(t, tb.sessions.Resume(ctx))
	tb.clock.Advance(25 * time.Hour)
	assert.False(t, tb.sessions.Resume(ctx))
}

func TestSessionMaxAgeOption(t *testing.T) {
	s := newSettings([]Option{WithSessionMaxAge(time.Hour), WithResetTokenTTL(0), WithFallbackPath("")})
	assert.Equal(t, time.Hour, s.sessionMaxAge)
	assert.Equal(t, DefaultResetTokenTTL, s.resetTTL, "non-positive durations keep the default")
	assert.Equal(t, DefaultFallbackPath, s.fallbackPath)
}

// ============================================================================
// Init
// ============================================================================

func TestInit_RestoresPersistedSession(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newFakeClock()
	first := newTab(t, mr, "tab-a", clock)
	identity := registered(t, first)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	second := newTab(t, mr, "tab-b", clock)
	require.NoError(t, second.sessions.Init(ctx))
	require.NotNil(t, second.sessions.CurrentUser())
	assert.Equal(t, identity.ID, second.sessions.CurrentUser().ID)
	assert.Equal(t, "Asha Rao", second.doc.Snapshot()[ui.ElementNavUserName].Text)
}

func TestInit_ClearsExpiredSession(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newFakeClock()
	first := newTab(t, mr, "tab-a", clock)
	registered(t, first)
	clock.Advance(48 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	second := newTab(t, mr, "tab-b", clock)
	require.NoError(t, second.sessions.Init(ctx))
	assert.Nil(t, second.sessions.CurrentUser())
	assert.False(t, mr.Exists("storefront:currentUser"))
	assert.True(t, second.doc.Snapshot()[ui.ElementNavGuest].Visible)
}

func TestInit_Anonymous(t *testing.T) {
	tb := newTestTab(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, tb.sessions.Init(ctx))
	assert.Nil(t, tb.sessions.CurrentUser())

	snap := tb.doc.Snapshot()
	assert.True(t, snap[ui.ElementNavGuest].Visible)
	assert.False(t, snap[ui.ElementCartCount].Visible)
}

func TestCrossTabLogout(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newTab(t, mr, "tab-a", clock)
	b := newTab(t, mr, "tab-b", clock)
	registered(t, a)

	require.NoError(t, a.sessions.Init(ctx))
	require.NoError(t, b.sessions.Init(ctx))
	require.NotNil(t, b.sessions.CurrentUser())

	require.NoError(t, a.sessions.Logout(ctx))

	assert.Eventually(t, func() bool {
		return b.sessions.CurrentUser() == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return b.doc.Snapshot()[ui.ElementNavGuest].Visible
	}, 2*time.Second, 10*time.Millisecond)
}

// ============================================================================
// RequireAuth
// ============================================================================

func TestRequireAuth_RunsActionWhenAuthenticated(t *testing.T) {
	tb := newTestTab(t)
	identity := registered(t, tb)

	var got string
	err := tb.sessions.RequireAuth(context.Background(), func(_ context.Context, s *domain.Session) error {
		got = s.ID
		return nil
	}, "")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got)
	assert.Empty(t, tb.nav.Target())
}

func TestRequireAuth_RedirectsAnonymous(t *testing.T) {
	tb := newTestTab(t)

	called := false
	err := tb.sessions.RequireAuth(context.Background(), func(context.Context, *domain.Session) error {
		called = true
		return nil
	}, "")

	assert.False(t, called)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, DefaultFallbackPath, tb.nav.Target())
	assert.Equal(t, []string{LoginRequiredMessage}, tb.nav.Messages())
}

func TestRequireAuth_ContextNavigatorWins(t *testing.T) {
	tb := newTestTab(t)
	rec := &ui.Recorder{}
	ctx := ui.WithNavigator(context.Background(), rec)

	err := tb.sessions.RequireAuth(ctx, func(context.Context, *domain.Session) error { return nil }, "/login?next=/checkout")
	require.Error(t, err)
	assert.Equal(t, "/login?next=/checkout", rec.Target())
	assert.Empty(t, tb.nav.Target())
}

func TestRequireAuth_ActionErrorPropagates(t *testing.T) {
	tb := newTestTab(t)
	registered(t, tb)

	boom := errors.New("boom")
	err := tb.sessions.RequireAuth(context.Background(), func(context.Context, *domain.Session) error { return boom }, "")
	assert.ErrorIs(t, err, boom)
}

// ============================================================================
// IDGenerator
// ============================================================================

func TestIDGenerator_StrictlyIncreasing(t *testing.T) {
	clock := newFakeClock()
	g := NewIDGenerator(clock.Now)

	a := g.Next()
	b := g.Next()
	clock.Advance(5 * time.Millisecond)
	c := g.Next()

	assert.Equal(t, "1717243200000", a)
	assert.Equal(t, "1717243200001", b)
	assert.Equal(t, "1717243200005", c)
}
