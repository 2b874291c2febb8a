package api

import (
	"net/http"

	"github.com/doublejdg/stockroom/internal/model"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(engine *reconcile.Engine, tokens TokenStore, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Engine: engine, Tokens: tokens, JWTSecret: jwtSecret}
	accountsHandler := &AccountsHandler{Engine: engine}
	itemsHandler := &ItemsHandler{Engine: engine}
	scanHandler := &ScanHandler{Engine: engine}
	reportsHandler := &ReportsHandler{Engine: engine}
	requestsHandler := &RequestsHandler{Engine: engine}
	wsHandler := &WSHandler{Engine: engine}

	authMW := AuthMiddleware(jwtSecret, tokens, engine)
	requireOwner := RequireRole(model.RoleOwner)
	requireManager := RequireRole(model.RoleManager)

	// Public: register and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Accounts: own profile (all roles), management (owner only).
	mux.Handle("GET /api/accounts/me", authMW(http.HandlerFunc(accountsHandler.Me)))
	mux.Handle("PUT /api/accounts/me/push-token", authMW(http.HandlerFunc(accountsHandler.UpdatePushToken)))
	mux.Handle("PUT /api/accounts/me/image", authMW(http.HandlerFunc(accountsHandler.UploadImage)))
	mux.Handle("GET /api/accounts/{username}/image", authMW(http.HandlerFunc(accountsHandler.GetImage)))
	mux.Handle("GET /api/accounts", authMW(requireOwner(http.HandlerFunc(accountsHandler.List))))
	mux.Handle("POST /api/accounts", authMW(requireOwner(http.HandlerFunc(accountsHandler.Create))))
	mux.Handle("PUT /api/accounts/{username}/role", authMW(requireOwner(http.HandlerFunc(accountsHandler.SetRole))))
	mux.Handle("PUT /api/accounts/{username}/password", authMW(requireOwner(http.HandlerFunc(accountsHandler.ResetPassword))))
	mux.Handle("GET /api/audit", authMW(requireOwner(http.HandlerFunc(accountsHandler.Audit))))

	// Items (all roles).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/inventory/summary", authMW(http.HandlerFunc(itemsHandler.Summary)))

	// Scanning (all roles), adjustments (manager+).
	mux.Handle("POST /api/scan", authMW(http.HandlerFunc(scanHandler.Scan)))
	mux.Handle("GET /api/scan/schema", authMW(http.HandlerFunc(scanHandler.Schema)))
	mux.Handle("POST /api/adjustments", authMW(requireManager(http.HandlerFunc(scanHandler.Adjust))))

	// Reports and activity (manager+).
	mux.Handle("GET /api/reports", authMW(requireManager(http.HandlerFunc(reportsHandler.List))))
	mux.Handle("GET /api/activity", authMW(requireManager(http.HandlerFunc(reportsHandler.Activity))))

	// Requests: create and list (all roles), decide (owner only).
	mux.Handle("POST /api/requests", authMW(http.HandlerFunc(requestsHandler.Create)))
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("POST /api/requests/{id}/approve", authMW(requireOwner(http.HandlerFunc(requestsHandler.Approve))))
	mux.Handle("POST /api/requests/{id}/decline", authMW(requireOwner(http.HandlerFunc(requestsHandler.Decline))))
	mux.Handle("POST /api/requests/{id}/return", authMW(http.HandlerFunc(requestsHandler.Return)))

	// Live change feed.
	mux.Handle("GET /api/ws", authMW(http.HandlerFunc(wsHandler.Serve)))

	return mux
}
