package moderation

import (
	"context"
	"time"
)

// UserStore is the narrow slice of the profile datastore the moderation
// engine needs. Implementations must be safe for concurrent use.
type UserStore interface {
	// GetUser fetches a user's ban-relevant fields by id.
	GetUser(ctx context.Context, id string) (*User, error)

	// ApplyUserBan persists the updated ban fields and the appended
	// history entry as a single atomic write.
	ApplyUserBan(ctx context.Context, id string, state BanState, strikeCount int, entry BanHistoryEntry) (*User, error)
}

// ReportStore defines persistence for reports. Implementations must be
// safe for concurrent use.
type ReportStore interface {
	CreateReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, status ReportStatus, limit int) ([]Report, error)
	// ResolveReport moves a pending report to a terminal status. It
	// returns ErrReportResolved if the report already left pending.
	ResolveReport(ctx context.Context, id string, status ReportStatus, resolvedBy string, duration BanDuration, notes string) error
	HasReported(ctx context.Context, reporterID, reportedRef string) (bool, error)
	CountReportsFromUserSince(ctx context.Context, reporterID string, since time.Time) (int, error)
}

// AuditStore records moderation actions for later review.
type AuditStore interface {
	LogAction(ctx context.Context, entry AuditEntry) error
	ListAuditLog(ctx context.Context, limit int) ([]AuditEntry, error)
}
