package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/doublejdg/stockroom/internal/imaging"
	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	Engine *reconcile.Engine
}

type createAccountRequest struct {
	reconcile.Registration
	Role string `json:"role"`
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// Me handles GET /api/accounts/me.
func (h *AccountsHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	account, err := h.Engine.Account(r.Context(), claims.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, account)
}

// UpdatePushToken handles PUT /api/accounts/me/push-token.
func (h *AccountsHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := h.Engine.UpdatePushToken(r.Context(), claims.Username, req.Token); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "push token updated"})
}

// UploadImage handles PUT /api/accounts/me/image. The photo is sent as the
// "image" field of a multipart form.
func (h *AccountsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	claims := GetClaims(r.Context())
	uri, err := h.Engine.UpdateProfileImage(r.Context(), claims.Username, data)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("profile image updated", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"image_uri": uri})
}

// GetImage handles GET /api/accounts/{username}/image.
func (h *AccountsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.Engine.ProfileImage(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}

// List handles GET /api/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Engine.ListAccounts(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	jsonResponse(w, http.StatusOK, accounts)
}

// Create handles POST /api/accounts.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name and username required")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role == "" {
		req.Role = model.RoleEmployee
	}

	claims := GetClaims(r.Context())
	account, err := h.Engine.CreateAccount(r.Context(), req.Registration, req.Role, claims.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, account)
}

// SetRole handles PUT /api/accounts/{username}/role.
func (h *AccountsHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner, ok := currentAccount(h.Engine, w, r)
	if !ok {
		return
	}

	username := r.PathValue("username")
	if username == owner.Username && req.Role != model.RoleOwner {
		jsonError(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	if err := h.Engine.SetRole(r.Context(), *owner, username, req.Role); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "role updated"})
}

// ResetPassword handles PUT /api/accounts/{username}/password.
func (h *AccountsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := r.PathValue("username")
	if _, err := h.Engine.Account(r.Context(), username); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Engine.SetPassword(r.Context(), username, req.Password); err != nil {
		writeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("password reset", "user", username, "by", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Audit handles GET /api/audit.
func (h *AccountsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.Engine.ListAudit(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.AuditLog{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

// currentAccount loads the account behind the request's token. It writes
// the error response itself and reports false when that fails.
func currentAccount(engine *reconcile.Engine, w http.ResponseWriter, r *http.Request) (*model.Account, bool) {
	claims := GetClaims(r.Context())
	account, err := engine.Account(r.Context(), claims.Username)
	if errors.Is(err, model.ErrAccountNotFound) {
		jsonError(w, http.StatusUnauthorized, "account no longer exists")
		return nil, false
	}
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return account, true
}
