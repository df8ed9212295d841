package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cortado/internal/notifications"

	"github.com/rs/zerolog/log"
)

// HandleNotificationsList returns the caller's notifications, newest
// first, with cursor pagination.
func (h *Handler) HandleNotificationsList(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	items, nextCursor, err := h.notifStore.ListNotifications(r.Context(), user, limit, cursor)
	if err != nil {
		log.Error().Err(err).Str("user", user).Msg("Failed to get notifications")
		writeError(w, "Failed to load notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"next_cursor":   nextCursor,
	})
}

// HandleNotificationsUnreadCount returns the caller's unread count.
func (h *Handler) HandleNotificationsUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	count, err := h.notifStore.UnreadCount(r.Context(), user)
	if err != nil {
		log.Error().Err(err).Str("user", user).Msg("Failed to count unread notifications")
		writeError(w, "Failed to count notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// HandleNotificationsMarkRead marks all of the caller's notifications read.
func (h *Handler) HandleNotificationsMarkRead(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.notifStore.MarkAllRead(r.Context(), user); err != nil {
		log.Error().Err(err).Str("user", user).Msg("Failed to mark notifications as read")
		writeError(w, "Failed to mark notifications as read", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleNotificationsClearQueued drops the caller's queued realtime
// notifications. Self-service; the persisted records are untouched.
func (h *Handler) HandleNotificationsClearQueued(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	dropped := h.hub.ClearQueued(user)
	writeJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}

// HandlePushSubscribe registers the caller's push subscription.
func (h *Handler) HandlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Endpoint string            `json:"endpoint"`
		Keys     map[string]string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Endpoint == "" {
		writeError(w, "endpoint is required", http.StatusBadRequest)
		return
	}

	sub := notifications.PushSubscription{
		UserID:   user,
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
	}
	if err := h.notifStore.SaveSubscription(r.Context(), sub); err != nil {
		log.Error().Err(err).Str("user", user).Msg("Failed to save push subscription")
		writeError(w, "Failed to save subscription", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

// HandlePushUnsubscribe removes the caller's push subscription.
func (h *Handler) HandlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.notifStore.DeleteSubscription(r.Context(), user); err != nil {
		log.Error().Err(err).Str("user", user).Msg("Failed to delete push subscription")
		writeError(w, "Failed to delete subscription", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// HandlePreferencesGet returns the caller's delivery preferences.
func (h *Handler) HandlePreferencesGet(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	prefs, err := h.notifStore.GetPreferences(r.Context(), user)
	if err != nil {
		log.Error().Err(err).Str("user", user).Msg("Failed to load preferences")
		writeError(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

// HandlePreferencesSet stores the caller's delivery preferences.
func (h *Handler) HandlePreferencesSet(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var prefs notifications.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	for t := range prefs.EmailEnabled {
		if !t.Valid() {
			writeError(w, "unknown notification type: "+string(t), http.StatusBadRequest)
			return
		}
	}

	if err := h.notifStore.SetPreferences(r.Context(), user, prefs); err != nil {
		log.Error().Err(err).Str("user", user).Msg("Failed to save preferences")
		writeError(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleNotifySubmit accepts an internal notification intent, used by
// sibling services reporting user actions (likes, comments, follows).
// The caller gets control back after the durable write; channel fan-out
// runs detached.
func (h *Handler) HandleNotifySubmit(w http.ResponseWriter, r *http.Request) {
	if adminID(r) == "" {
		writeError(w, "Admin authentication required", http.StatusUnauthorized)
		return
	}

	var intent notifications.Intent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	n, err := h.dispatcher.SubmitDetached(r.Context(), intent)
	if err != nil {
		log.Error().Err(err).Str("recipient", intent.RecipientID).Msg("Failed to submit notification")
		writeError(w, "Failed to submit notification", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": n.ID, "status": "accepted"})
}
