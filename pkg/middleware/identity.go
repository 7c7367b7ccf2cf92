package middleware

import (
	"context"
	"net/http"

	"github.com/utafrali/storefront/pkg/logger"
)

// IdentityResolver returns the identity signed in for a request, or "".
type IdentityResolver func(ctx context.Context) string

// Identity tags the request context with the signed-in identity so request
// logs and events can be attributed. It never rejects a request; guarded
// operations decide that themselves.
func Identity(resolve IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := resolve(r.Context()); id != "" {
				r = r.WithContext(logger.WithIdentityID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
