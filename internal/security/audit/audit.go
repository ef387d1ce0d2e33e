package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger writes the audit trail of expense mutations and access denials
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

func (al *Logger) LogAction(ctx context.Context, companyID, userID, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("company_id", companyID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogExpense(ctx context.Context, companyID, userID, action, expenseID, details string) {
	al.LogAction(ctx, companyID, userID, action, "expense", expenseID, "success", details)
}

func (al *Logger) LogDenied(ctx context.Context, companyID, userID, reason string) {
	al.LogAction(ctx, companyID, userID, "access_denied", "api", "", "denied", reason)
}
