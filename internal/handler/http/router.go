package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ServiceName labels metrics and spans.
const ServiceName = "storefront"

// Services bundles what the router exposes.
type Services struct {
	Sessions *service.SessionManager
	Accounts *service.AccountService
	Reset    *service.ResetService
	Carts    *service.CartService
	Document Snapshotter
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	authLimit middleware.RateLimitConfig,
) http.Handler {
	r := chi.NewRouter()

	identity := func(context.Context) string {
		if s := svc.Sessions.CurrentUser(); s != nil {
			return s.ID
		}
		return ""
	}

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Identity(identity))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(svc.Sessions, svc.Accounts, svc.Reset, logger)
	accountHandler := NewAccountHandler(svc.Sessions, svc.Accounts, logger)
	cartHandler := NewCartHandler(svc.Carts, logger)
	uiHandler := NewUIHandler(svc.Document)

	// One bucket per client covers credential and reset-token guessing.
	throttle := middleware.RateLimit(authLimit, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.With(throttle).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/session", authHandler.Session)
			r.Post("/session/resume", authHandler.Resume)
			r.With(throttle).Post("/password/forgot", authHandler.ForgotPassword)
			r.Get("/password/reset/{token}", authHandler.ValidateResetToken)
			r.Post("/password/reset", authHandler.ResetPassword)
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/profile", accountHandler.GetProfile)
			r.Patch("/profile", accountHandler.UpdateProfile)
			r.Get("/addresses", accountHandler.ListAddresses)
			r.Post("/addresses", accountHandler.AddAddress)
			r.Get("/orders", accountHandler.ListOrders)
			r.Post("/orders", accountHandler.AddOrder)
			r.Put("/password", accountHandler.ChangePassword)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{name}", cartHandler.UpdateItem)
			r.Delete("/items/{name}", cartHandler.RemoveItem)
		})

		r.Get("/ui/elements", uiHandler.Elements)
	})

	return r
}
