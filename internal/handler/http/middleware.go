package http

import (
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ContentTypeJSON enforces that requests with a body have Content-Type:
// application/json. Body-less POSTs such as logout pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && hasBody(r.Method) {
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				msg := "Content-Type must be application/json"
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Message: msg,
					Error:   &httputil.ErrorResponse{Code: apperrors.CodeValidation, Message: msg},
				})
				return
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}
