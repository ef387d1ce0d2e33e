package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/expensehub/internal/service"
)

// AnalyticsHandler serves GET /api/analytics
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *slog.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

// Get computes the dashboard for startDate..endDate, or for the current
// month when either bound is missing
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var query service.AnalyticsQuery
	startRaw, endRaw := r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate")
	if startRaw != "" && endRaw != "" {
		start, err := ParseDate(startRaw)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		end, err := ParseDate(endRaw)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		query.Start, query.End = &start, &end
	}

	result, err := h.analytics.Compute(r.Context(), p, query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
