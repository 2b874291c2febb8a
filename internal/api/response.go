package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeError maps an engine error to a status code. Backend faults are
// logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	var auditErr *model.AuditError
	if errors.As(err, &auditErr) {
		slog.Error("report not recorded", "error", err)
		jsonResponse(w, http.StatusInternalServerError, map[string]any{
			"error": "stock updated but report not recorded",
			"item":  auditErr.Item,
		})
		return
	}

	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		jsonError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, reconcile.ErrNotRequestor):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrItemNotFound),
		errors.Is(err, model.ErrRequestNotFound),
		errors.Is(err, model.ErrAccountNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrDuplicateUsername),
		errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrInvalidTransition):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInvalidInput):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrScanIgnored):
		jsonError(w, http.StatusTooManyRequests, err.Error())
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
