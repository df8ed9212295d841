package handlers

import (
	"encoding/json"
	"net/http"

	"cortado/internal/moderation"

	"github.com/rs/zerolog/log"
)

// ReportRequest represents the JSON request for submitting a report
type ReportRequest struct {
	ReportedType string `json:"reported_type"`
	ReportedRef  string `json:"reported_ref"`
	ReportedUser string `json:"reported_user"`
	Reason       string `json:"reason"`
}

// ReportResponse represents the JSON response from report submission
type ReportResponse struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleReportSubmit handles report submissions. Requires an
// authenticated user, applies a per-client burst limiter before the
// persistent hourly cap, and persists the report as pending.
func (h *Handler) HandleReportSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reporter := userID(r)
	if reporter == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if !h.reportLimiter(reporter).Allow() {
		writeError(w, "Too many reports. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, err := h.actions.SubmitReport(ctx, moderation.ReportedType(req.ReportedType), req.ReportedRef, req.ReportedUser, req.Reason, reporter)
	if err != nil {
		if moderation.IsValidation(err) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("reporter", reporter).Msg("moderation: failed to create report")
		writeError(w, "Failed to save report", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		ID:      report.ID,
		Status:  "received",
		Message: "Thank you for your report. It will be reviewed by a moderator.",
	})
}

// HandleAdminListReports returns reports for review, pending by default.
func (h *Handler) HandleAdminListReports(w http.ResponseWriter, r *http.Request) {
	if adminID(r) == "" {
		writeError(w, "Admin authentication required", http.StatusUnauthorized)
		return
	}

	status := moderation.ReportStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = moderation.ReportStatusPending
	}

	reports, err := h.reports.ListReports(r.Context(), status, 100)
	if err != nil {
		log.Error().Err(err).Msg("moderation: failed to list reports")
		writeError(w, "Failed to list reports", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// BanRequest is the admin request to resolve a report with a ban, or to
// ban a user directly when no report id is present in the path.
type BanRequest struct {
	UserID      string `json:"user_id,omitempty"`
	BanDuration string `json:"ban_duration"`
	Reason      string `json:"reason"`
}

// BanResponse reports the applied ban.
type BanResponse struct {
	Status         string   `json:"status"`
	StrikeNumber   int      `json:"strike_number"`
	BanDuration    string   `json:"ban_duration"`
	IsPermanent    bool     `json:"is_permanent"`
	AlreadyApplied bool     `json:"already_applied,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// HandleAdminBanFromReport resolves a pending report by banning the
// reported user. Retries are idempotent: the report id is the ban's
// idempotency key.
func (h *Handler) HandleAdminBanFromReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	admin := adminID(r)
	if admin == "" {
		writeError(w, "Admin authentication required", http.StatusUnauthorized)
		return
	}

	reportID := r.PathValue("id")

	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, err := h.reports.GetReport(ctx, reportID)
	if err != nil {
		log.Error().Err(err).Str("report", reportID).Msg("moderation: failed to fetch report")
		writeError(w, "Failed to fetch report", http.StatusInternalServerError)
		return
	}
	if report == nil {
		writeError(w, "Report not found", http.StatusNotFound)
		return
	}

	result, err := h.actions.ApplyBan(ctx, report.ReportedUser, moderation.BanDuration(req.BanDuration), req.Reason, admin, reportID)
	if err != nil {
		writeModerationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, banResponse(result))
}

// HandleAdminBanUser bans a user directly, outside any report. A fresh
// idempotency key is minted per submission; clients retrying a failed
// call resend the returned key in the request instead.
func (h *Handler) HandleAdminBanUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	admin := adminID(r)
	if admin == "" {
		writeError(w, "Admin authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		BanRequest
		IdempotencyKey string `json:"idempotency_key,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = moderation.NewManualBanKey()
	}

	result, err := h.actions.ApplyBan(ctx, req.UserID, moderation.BanDuration(req.BanDuration), req.Reason, admin, key)
	if err != nil {
		writeModerationError(w, err)
		return
	}

	resp := banResponse(result)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          resp.Status,
		"strike_number":   resp.StrikeNumber,
		"ban_duration":    resp.BanDuration,
		"is_permanent":    resp.IsPermanent,
		"already_applied": resp.AlreadyApplied,
		"warnings":        resp.Warnings,
		"idempotency_key": key,
	})
}

// HandleAdminDismissReport dismisses a pending report without action.
func (h *Handler) HandleAdminDismissReport(w http.ResponseWriter, r *http.Request) {
	admin := adminID(r)
	if admin == "" {
		writeError(w, "Admin authentication required", http.StatusUnauthorized)
		return
	}

	reportID := r.PathValue("id")

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.actions.DismissReport(r.Context(), reportID, admin, req.Notes); err != nil {
		writeModerationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

// HandleAdminAuditLog returns the most recent audit log entries.
func (h *Handler) HandleAdminAuditLog(w http.ResponseWriter, r *http.Request) {
	if adminID(r) == "" {
		writeError(w, "Admin authentication required", http.StatusUnauthorized)
		return
	}

	entries, err := h.reports.ListAuditLog(r.Context(), 100)
	if err != nil {
		log.Error().Err(err).Msg("moderation: failed to list audit log")
		writeError(w, "Failed to list audit log", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func banResponse(result *moderation.ApplyBanResult) BanResponse {
	return BanResponse{
		Status:         "banned",
		StrikeNumber:   result.Strike.StrikeNumber,
		BanDuration:    string(result.Strike.Duration),
		IsPermanent:    result.Strike.IsPermanent,
		AlreadyApplied: result.AlreadyApplied,
		Warnings:       result.Warnings,
	}
}
