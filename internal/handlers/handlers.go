package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"cortado/internal/database/boltstore"
	"cortado/internal/moderation"
	"cortado/internal/notifications"

	"golang.org/x/time/rate"
)

// Config holds handler configuration options
type Config struct {
	// QueueCapacity bounds the per-user offline notification queue.
	QueueCapacity int

	// ReportBurst is the short-window burst allowance for report
	// submissions per client, on top of the persistent hourly cap.
	ReportBurst int
}

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	actions    *moderation.ActionService
	dispatcher *notifications.Dispatcher
	hub        *notifications.Hub
	users      *boltstore.UserStore
	reports    *boltstore.ReportStore
	notifStore *boltstore.NotificationStore
	config     Config

	// Per-client burst limiters for report submission.
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New creates a Handler with all dependencies injected.
func New(actions *moderation.ActionService, dispatcher *notifications.Dispatcher, hub *notifications.Hub, users *boltstore.UserStore, reports *boltstore.ReportStore, notifStore *boltstore.NotificationStore, config Config) *Handler {
	if config.ReportBurst <= 0 {
		config.ReportBurst = 3
	}
	return &Handler{
		actions:    actions,
		dispatcher: dispatcher,
		hub:        hub,
		users:      users,
		reports:    reports,
		notifStore: notifStore,
		config:     config,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// reportLimiter returns the burst limiter for a client, creating it on
// first use. One token per minute with a small burst keeps scripted
// spam out without touching the persistent hourly count.
func (h *Handler) reportLimiter(clientID string) *rate.Limiter {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()

	limiter, ok := h.limiters[clientID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1.0/60.0), h.config.ReportBurst)
		h.limiters[clientID] = limiter
	}
	return limiter
}

// userID extracts the authenticated user identity. Authentication is
// terminated upstream; the trusted header carries the result.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// adminID extracts the authenticated admin identity.
func adminID(r *http.Request) string {
	return r.Header.Get("X-Admin-ID")
}

// errorResponse is the JSON error envelope for all API endpoints.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// writeModerationError maps moderation errors onto HTTP statuses.
func writeModerationError(w http.ResponseWriter, err error) {
	switch {
	case moderation.IsValidation(err):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, moderation.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, moderation.ErrReportResolved):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}
