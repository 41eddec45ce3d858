package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/tasktracker/internal/service"
)

// DashboardHandler serves the role-dependent dashboard
type DashboardHandler struct {
	dashboard *service.DashboardService
	logger    *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// Get handles GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.dashboard.Get(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
