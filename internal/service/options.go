package service

import (
	"strconv"
	"sync"
	"time"
	"unicode/utf8"
)

// Defaults applied when no option overrides them.
const (
	DefaultSessionMaxAge = 24 * time.Hour
	DefaultResetTokenTTL = 15 * time.Minute
	DefaultFallbackPath  = "/login"

	minPasswordLength = 6
)

type settings struct {
	now           func() time.Time
	sessionMaxAge time.Duration
	resetTTL      time.Duration
	fallbackPath  string
}

func newSettings(opts []Option) settings {
	s := settings{
		now:           time.Now,
		sessionMaxAge: DefaultSessionMaxAge,
		resetTTL:      DefaultResetTokenTTL,
		fallbackPath:  DefaultFallbackPath,
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Option configures a service.
type Option func(*settings)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithSessionMaxAge sets how long a login stays valid.
func WithSessionMaxAge(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.sessionMaxAge = d
		}
	}
}

// WithResetTokenTTL sets how long a reset token stays valid.
func WithResetTokenTTL(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.resetTTL = d
		}
	}
}

// WithFallbackPath sets where RequireAuth sends anonymous callers.
func WithFallbackPath(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.fallbackPath = path
		}
	}
}

// IDGenerator hands out ids derived from the creation time in Unix
// milliseconds. Ids are strictly increasing within one generator even when
// two are requested in the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator creates a generator reading now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	return &IDGenerator{now: now}
}

// Next returns the next id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}

func passwordTooShort(p string) bool {
	return utf8.RuneCountInString(p) < minPasswordLength
}
