package main

import (
	"log"
	"net/http"

	"ledgerlink/internal/shared/config"
	"ledgerlink/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)

	// Provider webhooks authenticate with their own signature, not a JWT.
	mux.HandleFunc("POST /webhooks/provider", deps.WebhookHandler.HandleProviderWebhook)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("POST /api/sessions", authMiddleware(http.HandlerFunc(deps.SessionHandler.HandleCreateSession)))
	mux.Handle("GET /api/connections", authMiddleware(http.HandlerFunc(deps.AccountDataHandler.HandleListConnections)))
	mux.Handle("GET /api/transactions", authMiddleware(http.HandlerFunc(deps.AccountDataHandler.HandleListTransactions)))
	mux.Handle("GET /api/services/{service}", authMiddleware(http.HandlerFunc(deps.AccountDataHandler.HandleGetServiceData)))

	// Apply global middleware
	handler := middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(middleware.Tracing(mux)))

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Println("TLS security middleware enabled (HSTS)")
	}

	return handler
}
