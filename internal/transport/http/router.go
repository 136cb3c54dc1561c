package http

import (
	"net/http"

	"github.com/expo-registration-api/internal/config"
	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/logger"
	"github.com/expo-registration-api/internal/transport/http/handler"
	appmiddleware "github.com/expo-registration-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Router is the application handler plus the background resources it owns.
type Router struct {
	http.Handler
	limiter *appmiddleware.RateLimiter
}

// Close stops the rate limiter's cleanup goroutine.
func (r *Router) Close() { r.limiter.Stop() }

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) *Router {
	log := logger.OrNop(deps.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(log.Named("http")))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	switch {
	case deps.TokenVerifier != nil:
		authMw = appmiddleware.Auth(deps.TokenVerifier)
	case cfg.AdminOpen && !cfg.IsProduction():
		log.Warn("admin routes are open: ADMIN_OPEN is set and no JWT keys are loaded")
		authMw = appmiddleware.OpenAdmin
	default:
		authMw = appmiddleware.Unavailable
	}

	// 5 requests/second, burst of 10, per client IP on public write routes.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.HealthChecks)
	otpH := handler.NewOTPHandler(deps.OTP, log.Named("otp"))
	regH := handler.NewRegistrationHandler(deps.Registrations)
	configH := handler.NewConfigHandler(deps.Configs, log.Named("config"))
	fileH := handler.NewFileHandler(deps.Files)
	adminH := handler.NewAdminHandler(deps.Admin)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/otp/send", otpH.Send)
		r.With(sensitiveRL.Limit).Post("/otp/verify", otpH.Verify)
		r.With(sensitiveRL.Limit).Post("/registrations/{type}", regH.Create)
		r.Get("/registrations/{type}/{id}", regH.Get)
		r.Get("/registration-configs/{type}", configH.Get)
		r.With(sensitiveRL.Limit).Post("/files", fileH.Upload)
		r.With(sensitiveRL.Limit).Post("/admin/sessions", adminH.Login)
		r.With(sensitiveRL.Limit).Post("/admin/sessions/google", adminH.LoginWithGoogle)

		// ── Admin routes ─────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

			r.Get("/registrations/{type}", regH.List)
			r.Put("/registrations/{type}/{id}", regH.Update)
			r.Delete("/registrations/{type}/{id}", regH.Delete)
			r.Put("/registration-configs/{type}", configH.Save)
			r.Get("/admin/dynamic-fields/{type}", configH.DynamicFields)
		})
	})

	return &Router{Handler: r, limiter: sensitiveRL}
}
