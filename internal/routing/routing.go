package routing

import (
	"net/http"

	"cortado/internal/handlers"
	"cortado/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Create CrossOriginProtection for CSRF protection on mutating routes
	cop := http.NewCrossOriginProtection()

	// Report intake
	mux.Handle("POST /api/reports", cop.Handler(http.HandlerFunc(h.HandleReportSubmit)))

	// Admin moderation surface
	mux.HandleFunc("GET /api/admin/reports", h.HandleAdminListReports)
	mux.Handle("POST /api/admin/reports/{id}/ban", cop.Handler(http.HandlerFunc(h.HandleAdminBanFromReport)))
	mux.Handle("POST /api/admin/reports/{id}/dismiss", cop.Handler(http.HandlerFunc(h.HandleAdminDismissReport)))
	mux.Handle("POST /api/admin/bans", cop.Handler(http.HandlerFunc(h.HandleAdminBanUser)))
	mux.HandleFunc("GET /api/admin/audit", h.HandleAdminAuditLog)

	// Notification inbox
	mux.HandleFunc("GET /api/notifications", h.HandleNotificationsList)
	mux.HandleFunc("GET /api/notifications/unread-count", h.HandleNotificationsUnreadCount)
	mux.Handle("POST /api/notifications/read", cop.Handler(http.HandlerFunc(h.HandleNotificationsMarkRead)))
	mux.Handle("DELETE /api/notifications/queued", cop.Handler(http.HandlerFunc(h.HandleNotificationsClearQueued)))

	// Delivery preferences and push subscriptions
	mux.HandleFunc("GET /api/notifications/preferences", h.HandlePreferencesGet)
	mux.Handle("PUT /api/notifications/preferences", cop.Handler(http.HandlerFunc(h.HandlePreferencesSet)))
	mux.Handle("POST /api/notifications/push-subscription", cop.Handler(http.HandlerFunc(h.HandlePushSubscribe)))
	mux.Handle("DELETE /api/notifications/push-subscription", cop.Handler(http.HandlerFunc(h.HandlePushUnsubscribe)))

	// Internal intent submission (service-to-service)
	mux.Handle("POST /api/notify", cop.Handler(http.HandlerFunc(h.HandleNotifySubmit)))

	// Realtime delivery (websocket upgrade; Sec-WebSocket handshake
	// does its own origin dance, so no CSRF wrapper here)
	mux.HandleFunc("GET /ws/notifications", h.HandleNotificationsSocket)

	// Operational endpoints
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Apply rate limiting
	rateLimitConfig := middleware.NewDefaultRateLimitConfig()
	handler = middleware.RateLimitMiddleware(rateLimitConfig)(handler)

	// 3. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 4. Apply logging middleware (outermost - wraps everything)
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	return handler
}
