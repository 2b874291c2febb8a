package api

import (
	"net/http"

	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// ScanHandler handles scanning and stock adjustment endpoints.
type ScanHandler struct {
	Engine *reconcile.Engine
}

type scanRequest struct {
	Data string `json:"data"`
}

// adjustRequest identifies the target either by ItemID or by the name,
// unit and prices of a resolved scan.
type adjustRequest struct {
	ItemID string       `json:"item_id"`
	Name   string       `json:"name"`
	Unit   string       `json:"unit"`
	Prices model.Prices `json:"prices"`
	reconcile.Adjustment
}

// Scan handles POST /api/scan.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Data == "" {
		jsonError(w, http.StatusBadRequest, "scan data required")
		return
	}

	claims := GetClaims(r.Context())
	res, err := h.Engine.ResolveScan(r.Context(), claims.Username, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Schema handles GET /api/scan/schema.
func (h *ScanHandler) Schema(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, reconcile.PayloadSchema())
}

// Adjust handles POST /api/adjustments.
func (h *ScanHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var res reconcile.Resolution
	switch {
	case req.ItemID != "":
		resolved, err := h.Engine.ResolveItem(r.Context(), req.ItemID)
		if err != nil {
			writeError(w, err)
			return
		}
		res = *resolved
	case req.Name != "":
		items, err := h.Engine.ListItems(r.Context(), "")
		if err != nil {
			writeError(w, err)
			return
		}
		if req.Unit == "" {
			req.Unit = model.DefaultUnit
		}
		res = reconcile.Resolve(items, reconcile.Scan{Name: req.Name, Unit: req.Unit, Prices: req.Prices})
	default:
		jsonError(w, http.StatusBadRequest, "item_id or name required")
		return
	}

	claims := GetClaims(r.Context())
	result, err := h.Engine.Adjust(r.Context(), claims.Username, res, req.Adjustment)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

