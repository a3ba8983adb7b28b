package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/curasoft/emr-assist/internal/http/middleware"
	"github.com/curasoft/emr-assist/internal/sessions"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// StatsRepository reads session analytics.
type StatsRepository interface {
	StatsForDay(ctx context.Context, day time.Time) (sessions.DailyStats, error)
}

// AdminStatsHandler serves aggregate chat activity to operators.
type AdminStatsHandler struct {
	repo   StatsRepository
	now    func() time.Time
	logger *logging.Logger
}

// NewAdminStatsHandler creates an admin stats handler.
func NewAdminStatsHandler(repo StatsRepository, logger *logging.Logger) *AdminStatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminStatsHandler{repo: repo, now: time.Now, logger: logger}
}

// DailyStats returns the counters for one day, defaulting to today.
// GET /admin/stats/daily?date=2006-01-02
func (h *AdminStatsHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	day := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be yyyy-MM-dd")
			return
		}
		day = parsed
	}

	operator := "unknown"
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		operator = claims.Subject
	}

	stats, err := h.repo.StatsForDay(r.Context(), day)
	if err != nil {
		h.logger.Error("stats: daily query failed", "error", err, "operator", operator)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	h.logger.Info("stats: daily report served", "operator", operator, "day", day.Format("2006-01-02"))
	respondJSON(w, http.StatusOK, stats)
}
