package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cortado/internal/metrics"
	"cortado/internal/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxReportReasonLength is the maximum length of a report reason.
const MaxReportReasonLength = 500

// ReportRateLimitPerHour is the maximum reports a user can submit per hour.
const ReportRateLimitPerHour = 10

// Notifier delivers a ban notice to the affected user. Failures are
// soft; the ban stands regardless.
type Notifier interface {
	NotifyBanApplied(ctx context.Context, userID string, result StrikeResult, bannedUntil *time.Time) error
}

// ActionService orchestrates ban application: escalation policy, atomic
// user persistence, report resolution, audit, and user notification.
type ActionService struct {
	users    UserStore
	reports  ReportStore
	audit    AuditStore
	notifier Notifier
	policy   Policy

	// now is injectable for tests.
	now func() time.Time
}

// NewActionService creates an ActionService. audit and notifier may be
// nil; the corresponding steps are skipped.
func NewActionService(users UserStore, reports ReportStore, audit AuditStore, notifier Notifier, policy Policy) *ActionService {
	return &ActionService{
		users:    users,
		reports:  reports,
		audit:    audit,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

// ApplyBanResult is the outcome of a ban application.
type ApplyBanResult struct {
	User           *User
	Entry          BanHistoryEntry
	Strike         StrikeResult
	AlreadyApplied bool
	// Warnings collects soft failures (report update, audit,
	// notification). The ban itself succeeded.
	Warnings []string
}

// ApplyBan bans a user, escalating per strike history. reportID is the
// idempotency key: when the same reportID was already applied, the
// recorded result is returned without reapplying. Manual bans (no
// originating report) are given a minted key by the caller so their
// retries are deduplicated the same way.
func (s *ActionService) ApplyBan(ctx context.Context, userID string, requested BanDuration, reason, bannedBy, reportID string) (*ApplyBanResult, error) {
	ctx, span := tracing.ModerationSpan(ctx, "apply_ban", userID)
	defer span.End()

	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}
	if !requested.Valid() {
		return nil, &ValidationError{Field: "ban_duration", Message: fmt.Sprintf("unknown duration %q", string(requested))}
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	// Retry guard: a ban keyed by this reportID was already applied.
	if reportID != "" {
		if prior, ok := findByReportID(user.BanHistory, reportID); ok {
			log.Info().Str("user", userID).Str("report", reportID).Msg("moderation: ban already applied, returning recorded result")
			return &ApplyBanResult{
				User:           user,
				Entry:          prior,
				Strike:         strikeResultFromEntry(prior),
				AlreadyApplied: true,
			}, nil
		}
	}

	strikes := CurrentStrikeCount(user.BanHistory)
	result, err := s.policy.CalculateStrikeBan(strikes, requested)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := NewBanHistoryEntry(result, reason, bannedBy, reportID, now)

	state := PermanentBan()
	if !result.IsPermanent {
		state = TimedBan(now.Add(result.BanLength))
	}

	updated, err := s.users.ApplyUserBan(ctx, userID, state, result.StrikeNumber, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to persist ban for user %s: %w", userID, err)
	}

	metrics.BansAppliedTotal.WithLabelValues(string(result.Duration)).Inc()
	log.Info().
		Str("user", userID).
		Str("duration", string(result.Duration)).
		Int("strike", result.StrikeNumber).
		Bool("permanent", result.IsPermanent).
		Msg("moderation: ban applied")

	res := &ApplyBanResult{User: updated, Entry: entry, Strike: result}

	// Everything past this point is best-effort. The ban is durable;
	// failures surface as warnings, never as errors, and a retry is
	// deduplicated by the reportID guard above.
	if reportID != "" && !strings.HasPrefix(reportID, "manual:") {
		notes := fmt.Sprintf("Ban applied: %s (strike %d)", result.Duration, result.StrikeNumber)
		if err := s.reports.ResolveReport(ctx, reportID, ReportStatusActionTaken, bannedBy, result.Duration, notes); err != nil {
			log.Warn().Err(err).Str("report", reportID).Msg("moderation: failed to update report after ban")
			res.Warnings = append(res.Warnings, fmt.Sprintf("report %s not updated: %v", reportID, err))
		} else {
			metrics.ReportsResolvedTotal.WithLabelValues(string(ReportStatusActionTaken)).Inc()
		}
	}

	if s.audit != nil {
		auditEntry := AuditEntry{
			ID:       uuid.NewString(),
			Action:   AuditActionApplyBan,
			ActorID:  bannedBy,
			TargetID: userID,
			Reason:   reason,
			Details: map[string]string{
				"duration": string(result.Duration),
				"strike":   fmt.Sprintf("%d", result.StrikeNumber),
			},
			Timestamp: now,
		}
		if reportID != "" {
			auditEntry.Details["report_id"] = reportID
		}
		if err := s.audit.LogAction(ctx, auditEntry); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("moderation: failed to write audit entry")
			res.Warnings = append(res.Warnings, fmt.Sprintf("audit entry not recorded: %v", err))
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyBanApplied(ctx, userID, result, entry.BannedUntil); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("moderation: failed to notify banned user")
			res.Warnings = append(res.Warnings, fmt.Sprintf("user not notified: %v", err))
		}
	}

	return res, nil
}

// DismissReport resolves a pending report without action.
func (s *ActionService) DismissReport(ctx context.Context, reportID, adminID, notes string) error {
	ctx, span := tracing.ModerationSpan(ctx, "dismiss_report", reportID)
	defer span.End()

	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return fmt.Errorf("failed to fetch report %s: %w", reportID, err)
	}
	if report == nil {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if report.Status != ReportStatusPending {
		return ErrReportResolved
	}

	if err := s.reports.ResolveReport(ctx, reportID, ReportStatusDismissed, adminID, "", notes); err != nil {
		return fmt.Errorf("failed to dismiss report %s: %w", reportID, err)
	}

	metrics.ReportsResolvedTotal.WithLabelValues(string(ReportStatusDismissed)).Inc()

	if s.audit != nil {
		err := s.audit.LogAction(ctx, AuditEntry{
			ID:        uuid.NewString(),
			Action:    AuditActionDismissReport,
			ActorID:   adminID,
			TargetID:  reportID,
			Reason:    notes,
			Timestamp: s.now(),
		})
		if err != nil {
			log.Warn().Err(err).Str("report", reportID).Msg("moderation: failed to write audit entry")
		}
	}

	return nil
}

// SubmitReport validates and persists a new report. Reporters are
// limited to ReportRateLimitPerHour submissions per hour and cannot
// report the same subject twice.
func (s *ActionService) SubmitReport(ctx context.Context, reportedType ReportedType, reportedRef, reportedUser, reason, reportedBy string) (*Report, error) {
	if !reportedType.Valid() {
		return nil, &ValidationError{Field: "reported_type", Message: fmt.Sprintf("unknown type %q", string(reportedType))}
	}
	if reportedRef == "" {
		return nil, &ValidationError{Field: "reported_ref", Message: "required"}
	}
	if reportedBy == "" {
		return nil, &ValidationError{Field: "reported_by", Message: "required"}
	}
	if reportedUser == reportedBy {
		return nil, &ValidationError{Field: "reported_user", Message: "cannot report yourself"}
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason provided"
	}
	if len(reason) > MaxReportReasonLength {
		reason = reason[:MaxReportReasonLength]
	}

	now := s.now()

	recent, err := s.reports.CountReportsFromUserSince(ctx, reportedBy, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to check report rate limit: %w", err)
	}
	if recent >= ReportRateLimitPerHour {
		return nil, &ValidationError{Field: "reported_by", Message: "report rate limit exceeded"}
	}

	dup, err := s.reports.HasReported(ctx, reportedBy, reportedRef)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate report: %w", err)
	}
	if dup {
		return nil, &ValidationError{Field: "reported_ref", Message: "already reported by this user"}
	}

	report := Report{
		ID:           uuid.NewString(),
		ReportedType: reportedType,
		ReportedRef:  reportedRef,
		ReportedUser: reportedUser,
		Reason:       reason,
		ReportedBy:   reportedBy,
		Status:       ReportStatusPending,
		CreatedAt:    now,
	}

	if err := s.reports.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	metrics.ReportsSubmittedTotal.Inc()
	log.Info().Str("report", report.ID).Str("type", string(reportedType)).Str("reporter", reportedBy).Msg("moderation: report submitted")

	return &report, nil
}

// NewManualBanKey mints an idempotency key for a ban that did not
// originate from a report, so retries of the same submission are
// deduplicated like report bans.
func NewManualBanKey() string {
	return "manual:" + uuid.NewString()
}

func findByReportID(history []BanHistoryEntry, reportID string) (BanHistoryEntry, bool) {
	for _, entry := range history {
		if entry.ReportID == reportID {
			return entry, true
		}
	}
	return BanHistoryEntry{}, false
}

// strikeResultFromEntry reconstructs the applied result from a recorded
// history entry, for idempotent replay of a prior application.
func strikeResultFromEntry(entry BanHistoryEntry) StrikeResult {
	result := StrikeResult{
		IsPermanent:  entry.IsPermanent,
		StrikeNumber: entry.StrikeCount,
		Reason:       entry.Reason,
		Duration:     DurationPerm,
	}
	if !entry.IsPermanent && entry.BannedUntil != nil {
		result.BanLength = entry.BannedUntil.Sub(entry.BannedAt)
		result.Duration = durationForLength(result.BanLength)
	}
	return result
}
