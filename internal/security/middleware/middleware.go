package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/security"
	"github.com/aryan0dhankhar/expensehub/internal/security/audit"
	"github.com/aryan0dhankhar/expensehub/internal/security/auth"
	"github.com/aryan0dhankhar/expensehub/internal/security/ratelimit"
)

// KeyFunc derives the rate limit bucket for a request
type KeyFunc func(r *http.Request) string

// Authenticate resolves the bearer token into a Principal stored on the request context
func Authenticate(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authorized, no token")
				return
			}

			principal, err := tm.Verify(token)
			if err != nil {
				log.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusUnauthorized, "not authorized, token failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission rejects principals whose role lacks perm. Must run after Authenticate.
func RequirePermission(authz *security.Authorizer, perm security.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := domain.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "not authorized")
				return
			}
			if err := authz.Require(principal, perm); err != nil {
				writeError(w, http.StatusForbidden, "user role "+string(principal.Role)+" is not authorized to access this route")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByCompany keys the limiter on the authenticated tenant
func ByCompany(r *http.Request) string {
	if p, ok := domain.PrincipalFromContext(r.Context()); ok {
		return p.CompanyID
	}
	return ""
}

// ByClientIP keys the limiter on the client address. Run chi's RealIP first.
func ByClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func RateLimit(limiter *ratelimit.Limiter, key KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !limiter.Allow(k) {
				log.Warn("rate limit exceeded", slog.String("key", k), slog.String("path", r.URL.Path))
				writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StrictRateLimit applies a tighter budget, used for the credential endpoints
func StrictRateLimit(limiter *ratelimit.Limiter, key KeyFunc, maxReqs int, window time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !limiter.AllowStrict(k, maxReqs, window) {
				log.Warn("strict rate limit exceeded", slog.String("key", k), slog.String("path", r.URL.Path))
				writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit records every mutating request together with its outcome
func Audit(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			var companyID, userID string
			if p, ok := domain.PrincipalFromContext(r.Context()); ok {
				companyID, userID = p.CompanyID, p.UserID
			}
			status := "success"
			switch {
			case ww.Status() == http.StatusUnauthorized || ww.Status() == http.StatusForbidden:
				auditLog.LogDenied(r.Context(), companyID, userID, r.Method+" "+r.URL.Path)
				return
			case ww.Status() >= http.StatusBadRequest:
				status = "failed"
			}
			auditLog.LogAction(r.Context(), companyID, userID, r.Method, "http", r.URL.Path, status, http.StatusText(ww.Status()))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
