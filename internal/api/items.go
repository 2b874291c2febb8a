package api

import (
	"net/http"

	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// ItemsHandler handles inventory read endpoints.
type ItemsHandler struct {
	Engine *reconcile.Engine
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Engine.ListItems(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.ResolveItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res.Item)
}

// Summary handles GET /api/inventory/summary.
func (h *ItemsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Engine.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}
