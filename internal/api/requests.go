package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// RequestsHandler handles borrow request endpoints.
type RequestsHandler struct {
	Engine *reconcile.Engine
}

type createRequestsRequest struct {
	Items []reconcile.RequestLine `json:"items"`
}

type returnRequest struct {
	Condition string `json:"condition"`
}

// Create handles POST /api/requests.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequestsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	requestor, ok := currentAccount(h.Engine, w, r)
	if !ok {
		return
	}

	created, err := h.Engine.CreateRequests(r.Context(), *requestor, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("requests submitted", "user", requestor.Username, "count", len(created))
	jsonResponse(w, http.StatusCreated, created)
}

// List handles GET /api/requests. Employees only see their own requests.
// The status query parameter takes a comma-separated list of statuses and
// sort is one of newest, oldest or status.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter model.RequestFilter
	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if !model.ValidStatus(s) {
				jsonError(w, http.StatusBadRequest, "invalid status")
				return
			}
			filter.Statuses = append(filter.Statuses, s)
		}
	}

	claims := GetClaims(r.Context())
	if claims.Role == model.RoleEmployee {
		filter.RequestorUsername = claims.Username
	} else if v := q.Get("requestor"); v != "" {
		filter.RequestorUsername = v
	}

	order := q.Get("sort")
	switch order {
	case "", reconcile.SortNewest, reconcile.SortOldest, reconcile.SortStatus:
	default:
		jsonError(w, http.StatusBadRequest, "invalid sort order")
		return
	}

	requests, err := h.Engine.ListRequests(r.Context(), filter, order)
	if err != nil {
		writeError(w, err)
		return
	}
	if requests == nil {
		requests = []model.Request{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// Approve handles POST /api/requests/{id}/approve.
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentAccount(h.Engine, w, r)
	if !ok {
		return
	}

	req, err := h.Engine.Approve(r.Context(), *owner, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, req)
}

// Decline handles POST /api/requests/{id}/decline.
func (h *RequestsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentAccount(h.Engine, w, r)
	if !ok {
		return
	}

	req, err := h.Engine.Decline(r.Context(), *owner, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, req)
}

// Return handles POST /api/requests/{id}/return.
func (h *RequestsHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor, ok := currentAccount(h.Engine, w, r)
	if !ok {
		return
	}

	result, err := h.Engine.Return(r.Context(), *actor, r.PathValue("id"), strings.ToUpper(req.Condition))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}
