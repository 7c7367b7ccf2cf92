package ui

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/pkg/logger"
)

// Navigator shows messages to the user and moves the page.
type Navigator interface {
	Notify(ctx context.Context, message string)
	Navigate(ctx context.Context, target string)
}

type navigatorKey struct{}

// WithNavigator returns a context carrying n.
func WithNavigator(ctx context.Context, n Navigator) context.Context {
	return context.WithValue(ctx, navigatorKey{}, n)
}

// NavigatorFrom returns the navigator stored in ctx, or fallback.
func NavigatorFrom(ctx context.Context, fallback Navigator) Navigator {
	if n, ok := ctx.Value(navigatorKey{}).(Navigator); ok && n != nil {
		return n
	}
	return fallback
}

// LogNavigator records navigation as log lines. It is the default for a
// headless tab.
type LogNavigator struct {
	logger *slog.Logger
}

// NewLogNavigator creates a LogNavigator.
func NewLogNavigator(l *slog.Logger) *LogNavigator {
	return &LogNavigator{logger: l}
}

// Notify implements Navigator.
func (n *LogNavigator) Notify(ctx context.Context, message string) {
	logger.WithContext(ctx, n.logger).InfoContext(ctx, "user notice", slog.String("message", message))
}

// Navigate implements Navigator.
func (n *LogNavigator) Navigate(ctx context.Context, target string) {
	logger.WithContext(ctx, n.logger).InfoContext(ctx, "navigate", slog.String("target", target))
}

// Recorder is a Navigator that remembers what it was asked to do, for
// transports that answer with a redirect instead of moving a page.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	target   string
}

// Notify implements Navigator.
func (r *Recorder) Notify(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Navigate implements Navigator.
func (r *Recorder) Navigate(_ context.Context, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

// Messages returns the notices in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Target returns the last navigation target, or "".
func (r *Recorder) Target() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}
