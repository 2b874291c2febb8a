package api

import (
	"net/http"

	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// ReportsHandler handles the report log and activity feed.
type ReportsHandler struct {
	Engine *reconcile.Engine
}

// List handles GET /api/reports.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Engine.ListReports(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	jsonResponse(w, http.StatusOK, reports)
}

// Activity handles GET /api/activity.
func (h *ReportsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Engine.Activity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []model.Activity{}
	}
	jsonResponse(w, http.StatusOK, rows)
}
