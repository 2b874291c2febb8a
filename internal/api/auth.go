package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/doublejdg/stockroom/internal/auth"
	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Engine    *reconcile.Engine
	Tokens    TokenStore
	JWTSecret string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string         `json:"token"`
	Account *model.Account `json:"account"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register handles POST /api/auth/register. New accounts are employees.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req reconcile.Registration
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.Engine.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.issueToken(w, http.StatusCreated, account)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}

	account, err := h.Engine.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		slog.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		writeError(w, err)
		return
	}

	slog.Info("user logged in", "user", account.Username, "role", account.Role)
	h.issueToken(w, http.StatusOK, account)
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, status int, account *model.Account) {
	token, err := auth.GenerateToken(h.JWTSecret, account)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	jsonResponse(w, status, loginResponse{Token: token, Account: account})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.Tokens.RevokeToken(r.Context(), claims.ID, expiresAt); err != nil {
		slog.Error("revoking token", "user", claims.Username, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	h.Engine.Logout(r.Context(), claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}

	if err := h.Engine.ChangePassword(r.Context(), claims.Username, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("user changed own password", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
