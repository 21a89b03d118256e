package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/credential-session-core/internal/health"
	"github.com/sandeepkv93/credential-session-core/internal/http/handler"
	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	MeHandler         *handler.MeHandler
	Sessions          middleware.SessionValidator
	SessionCookieName string
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	GlobalRateLimiter func(http.Handler) http.Handler
	AuthRateLimiter   func(http.Handler) http.Handler
	Readiness         *health.ProbeRunner
	Logger            *slog.Logger
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter("api", dep.APIRateLimitRPM).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter("auth", dep.AuthRateLimitRPM).Middleware()
	}
	requireSession := middleware.AuthMiddleware(dep.Sessions, dep.SessionCookieName)
	csrf := middleware.CSRFMiddleware(dep.SessionCookieName)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(csrf, requireSession).Post("/logout", dep.AuthHandler.Logout)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/", dep.MeHandler.Me)
			r.Get("/sessions", dep.MeHandler.Sessions)
			r.Group(func(r chi.Router) {
				r.Use(csrf)
				r.Post("/sessions/revoke-all", dep.MeHandler.RevokeAllSessions)
				r.With(authLimiter).Post("/password", dep.MeHandler.ChangePassword)
				r.Post("/deactivate", dep.MeHandler.Deactivate)
				r.Delete("/", dep.MeHandler.Delete)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
