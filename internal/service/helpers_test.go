package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/repository/kv"
	redisstore "github.com/utafrali/storefront/internal/store/redis"
	"github.com/utafrali/storefront/internal/ui"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type tokenRecorder struct {
	mu     sync.Mutex
	tokens []*domain.ResetToken
}

func (r *tokenRecorder) DeliverResetToken(_ context.Context, t *domain.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tokens = append(r.tokens, &cp)
	return nil
}

// tab bundles every service of one tab.
type tab struct {
	mr        *miniredis.Miniredis
	store     *redisstore.Store
	clock     *fakeClock
	pub       *recordingPublisher
	doc       *ui.MemoryDocument
	nav       *ui.Recorder
	sessions  *SessionManager
	accounts  *AccountService
	reset     *ResetService
	carts     *CartService
	delivered *tokenRecorder
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTab(t *testing.T, mr *miniredis.Miniredis, origin string, clock *fakeClock) *tab {
	t.Helper()
	return newTabWith(t, mr, origin, clock, nil)
}

// newTabWith is newTab with the session repository passed through wrap.
func newTabWith(
	t *testing.T,
	mr *miniredis.Miniredis,
	origin string,
	clock *fakeClock,
	wrap func(repository.SessionRepository) repository.SessionRepository,
) *tab {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := testLogger()
	st := redisstore.NewStore(client, "storefront", origin, logger)
	pub := &recordingPublisher{}
	producer := event.NewProducer(pub, logger)
	doc := ui.NewStorefrontDocument()
	nav := &ui.Recorder{}
	delivered := &tokenRecorder{}

	opts := []Option{WithClock(clock.Now)}
	directory := kv.NewDirectoryRepository(st, logger)
	var sessionRepo repository.SessionRepository = kv.NewSessionRepository(st, logger)
	if wrap != nil {
		sessionRepo = wrap(sessionRepo)
	}
	sessions := NewSessionManager(sessionRepo, directory, st, producer, nav, logger, opts...)
	accounts := NewAccountService(directory, sessions, producer, logger, opts...)
	reset := NewResetService(kv.NewResetTokenRepository(st, logger), accounts, delivered, producer, logger, opts...)
	carts := NewCartService(kv.NewCartRepository(st, logger), sessions, doc, producer, logger)
	sessions.OnStateChange(func(_ context.Context, s *domain.Session) { ui.RenderNavigation(doc, s) })

	return &tab{
		mr: mr, store: st, clock: clock, pub: pub, doc: doc, nav: nav,
		sessions: sessions, accounts: accounts, reset: reset, carts: carts,
		delivered: delivered,
	}
}

func newTestTab(t *testing.T) *tab {
	t.Helper()
	return newTab(t, miniredis.RunT(t), "tab-a", newFakeClock())
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Name:            "Asha Rao",
		Email:           "Asha@Example.com ",
		Phone:           "98765-43210",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

var errStoreDown = errors.New("store unavailable")

// flakySessions fails the selected remember-me operations.
type flakySessions struct {
	repository.SessionRepository
	failRememberMe      bool
	failRememberedEmail bool
}

func (f *flakySessions) RememberMe(ctx context.Context) (bool, error) {
	if f.failRememberMe {
		return false, errStoreDown
	}
	return f.SessionRepository.RememberMe(ctx)
}

func (f *flakySessions) SetRememberedEmail(ctx context.Context, email string) error {
	if f.failRememberedEmail {
		return errStoreDown
	}
	return f.SessionRepository.SetRememberedEmail(ctx, email)
}
