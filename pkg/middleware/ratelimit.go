package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	// RPS is the sustained number of requests per second per client.
	RPS float64
	// Burst is the bucket size.
	Burst int
	// TrustProxyHeaders keys clients by X-Forwarded-For / X-Real-IP instead
	// of the connection address. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
	// IdleTTL is how long an idle client's bucket is kept.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig allows a burst of 5 and then one request per second.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:     1,
		Burst:   5,
		IdleTTL: 3 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore keeps one limiter per client. Idle entries are swept
// lazily, at most once per ttl.
type visitorStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newVisitorStore(cfg RateLimitConfig, now func() time.Time) *visitorStore {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &visitorStore{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(cfg.RPS),
		burst:     cfg.Burst,
		ttl:       cfg.IdleTTL,
		lastSweep: now(),
		now:       now,
	}
}

// allow takes one token from the client's bucket.
func (s *visitorStore) allow(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.ttl {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.ttl {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimit answers 429 RATE_LIMITED once a client exhausts its bucket.
func RateLimit(cfg RateLimitConfig, l *slog.Logger) func(http.Handler) http.Handler {
	return rateLimit(cfg, l, newVisitorStore(cfg, time.Now))
}

func rateLimit(cfg RateLimitConfig, l *slog.Logger, store *visitorStore) func(http.Handler) http.Handler {
	retryAfter := "1"
	if cfg.RPS > 0 && cfg.RPS < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / cfg.RPS)))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r, cfg.TrustProxyHeaders)
			if store.allow(client) {
				next.ServeHTTP(w, r)
				return
			}

			l.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("client_ip", client),
				slog.String("path", r.URL.Path),
			)

			limited := apperrors.RateLimited()
			w.Header().Set("Retry-After", retryAfter)
			httputil.WriteJSON(w, limited.Status, httputil.Response{
				Message: limited.Message,
				Error: &httputil.ErrorResponse{
					Code:      limited.Code,
					Message:   limited.Message,
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				},
			})
		})
	}
}

// clientIP returns the address requests are bucketed by.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
