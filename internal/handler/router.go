package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/expensehub/internal/observability/metrics"
	"github.com/aryan0dhankhar/expensehub/internal/security"
	"github.com/aryan0dhankhar/expensehub/internal/security/audit"
	"github.com/aryan0dhankhar/expensehub/internal/security/auth"
	"github.com/aryan0dhankhar/expensehub/internal/security/middleware"
	"github.com/aryan0dhankhar/expensehub/internal/security/ratelimit"
)

const maxBodyBytes = 1 << 20

// RouterConfig carries everything NewRouter wires together
type RouterConfig struct {
	Auth      *AuthHandler
	Expenses  *ExpenseHandler
	Analytics *AnalyticsHandler
	Events    *EventsHandler
	Health    *HealthHandler

	Tokens *auth.TokenManager
	Authz  *security.Authorizer
	Audit  *audit.Logger

	Limiter        *ratelimit.Limiter
	AuthRateLimit  int
	AuthRateWindow time.Duration
	AllowedOrigins []string
	DisableTracing bool
	Logger         *slog.Logger
}

// NewRouter builds the HTTP surface. Every API route lives under /api.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.HTTPMetricsMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.SanitizeQuery(log))
	r.Use(middleware.LimitBody(maxBodyBytes))
	r.Use(middleware.ValidateJSONContentType(log))

	r.Get("/", cfg.Health.Root)
	r.Get("/healthz", cfg.Health.Health)
	r.Get("/readyz", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.StrictRateLimit(cfg.Limiter, middleware.ByClientIP, cfg.AuthRateLimit, cfg.AuthRateWindow, log))
			r.Use(middleware.Audit(cfg.Audit))
			r.Post("/auth/register-company", cfg.Auth.RegisterCompany)
			r.Post("/auth/login", cfg.Auth.Login)
		})

		if cfg.Events != nil {
			r.Get("/ws/expenses", cfg.Events.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.Tokens, log))
			r.Use(middleware.RateLimit(cfg.Limiter, middleware.ByCompany, log))
			r.Use(middleware.Audit(cfg.Audit))

			r.Route("/expenses", func(r chi.Router) {
				r.With(middleware.RequirePermission(cfg.Authz, security.PermListExpenses)).Get("/", cfg.Expenses.List)
				r.With(middleware.RequirePermission(cfg.Authz, security.PermCreateExpense)).Post("/", cfg.Expenses.Create)
				r.With(middleware.RequirePermission(cfg.Authz, security.PermModifyOwnExpense)).Put("/{id}", cfg.Expenses.Update)
				r.With(middleware.RequirePermission(cfg.Authz, security.PermModifyOwnExpense)).Delete("/{id}", cfg.Expenses.Delete)
				// set_expense_status is enforced by the service after the value check
				r.Patch("/{id}/status", cfg.Expenses.SetStatus)
			})

			r.With(middleware.RequirePermission(cfg.Authz, security.PermViewAnalytics)).Get("/analytics", cfg.Analytics.Get)
		})
	})

	if cfg.DisableTracing {
		return r
	}
	return otelhttp.NewHandler(r, "expensehub",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// requestLogger writes one line per completed request
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "request completed",
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
