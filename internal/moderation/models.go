package moderation

import "time"

// BanDuration is the set of ban lengths an operator may request.
type BanDuration string

const (
	Duration1Hour  BanDuration = "1h"
	Duration24Hour BanDuration = "24h"
	Duration7Day   BanDuration = "7d"
	Duration365Day BanDuration = "365d"
	DurationPerm   BanDuration = "perm"
)

// Valid reports whether d is one of the accepted ban durations.
func (d BanDuration) Valid() bool {
	switch d {
	case Duration1Hour, Duration24Hour, Duration7Day, Duration365Day, DurationPerm:
		return true
	}
	return false
}

// Length returns the wall-clock length of the duration.
// DurationPerm has no length; it returns 0 and false.
func (d BanDuration) Length() (time.Duration, bool) {
	switch d {
	case Duration1Hour:
		return time.Hour, true
	case Duration24Hour:
		return 24 * time.Hour, true
	case Duration7Day:
		return 7 * 24 * time.Hour, true
	case Duration365Day:
		return 365 * 24 * time.Hour, true
	}
	return 0, false
}

// BanState is the internal representation of a user's ban status.
// The stored (is_banned, banned_until) pair is translated to and from
// this form only at the storage boundary.
type BanState struct {
	kind  banKind
	until time.Time
}

type banKind int

const (
	banKindActive banKind = iota
	banKindTimed
	banKindPermanent
)

// Active returns the state of a user with no ban in effect.
func Active() BanState { return BanState{kind: banKindActive} }

// TimedBan returns the state of a user banned until the given time.
func TimedBan(until time.Time) BanState {
	return BanState{kind: banKindTimed, until: until}
}

// PermanentBan returns the state of a user banned with no expiry.
func PermanentBan() BanState { return BanState{kind: banKindPermanent} }

// BanStateFromFields translates the stored field pair into a BanState.
// A banned user with no expiry is permanently banned.
func BanStateFromFields(isBanned bool, bannedUntil *time.Time) BanState {
	switch {
	case !isBanned:
		return Active()
	case bannedUntil == nil:
		return PermanentBan()
	default:
		return TimedBan(*bannedUntil)
	}
}

// Fields translates the BanState back into the stored field pair.
func (s BanState) Fields() (isBanned bool, bannedUntil *time.Time) {
	switch s.kind {
	case banKindTimed:
		until := s.until
		return true, &until
	case banKindPermanent:
		return true, nil
	default:
		return false, nil
	}
}

// IsPermanent reports whether the state is a permanent ban.
func (s BanState) IsPermanent() bool { return s.kind == banKindPermanent }

// Until returns the expiry of a timed ban. The second return is false
// for active users and permanent bans.
func (s BanState) Until() (time.Time, bool) {
	if s.kind != banKindTimed {
		return time.Time{}, false
	}
	return s.until, true
}

// BanHistoryEntry is one recorded ban in a user's append-only history.
type BanHistoryEntry struct {
	Reason      string     `json:"reason"`
	BannedAt    time.Time  `json:"banned_at"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`
	BannedBy    string     `json:"banned_by"`
	IsPermanent bool       `json:"is_permanent"`
	StrikeCount int        `json:"strike_count"`
	ReportID    string     `json:"report_id,omitempty"` // idempotency key for the ban application
}

// User holds the ban-relevant fields of a user record.
type User struct {
	ID          string            `json:"id"`
	StrikeCount int               `json:"strike_count"`
	IsBanned    bool              `json:"is_banned"`
	BannedUntil *time.Time        `json:"banned_until,omitempty"`
	BanHistory  []BanHistoryEntry `json:"ban_history,omitempty"`
}

// BanState returns the user's ban status as a tagged state.
func (u *User) BanState() BanState {
	return BanStateFromFields(u.IsBanned, u.BannedUntil)
}

// ReportedType identifies what kind of subject a report targets.
type ReportedType string

const (
	ReportedTypeContent ReportedType = "content"
	ReportedTypeComment ReportedType = "comment"
	ReportedTypeUser    ReportedType = "user"
)

// Valid reports whether t is a known reported type.
func (t ReportedType) Valid() bool {
	switch t {
	case ReportedTypeContent, ReportedTypeComment, ReportedTypeUser:
		return true
	}
	return false
}

// ReportStatus represents the status of a user report.
// A report is terminal once it leaves pending.
type ReportStatus string

const (
	ReportStatusPending     ReportStatus = "pending"
	ReportStatusActionTaken ReportStatus = "action-taken"
	ReportStatusDismissed   ReportStatus = "dismissed"
)

// Report represents a user report on content, a comment, or a user.
type Report struct {
	ID           string       `json:"id"`
	ReportedType ReportedType `json:"reported_type"`
	ReportedRef  string       `json:"reported_ref"` // id of the reported content/comment/user
	ReportedUser string       `json:"reported_user"`
	Reason       string       `json:"reason"`
	ReportedBy   string       `json:"reported_by"`
	Status       ReportStatus `json:"status"`
	BanDuration  BanDuration  `json:"ban_duration,omitempty"`
	AdminNotes   string       `json:"admin_notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ResolvedBy   string       `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
}

// AuditAction represents a type of moderation action.
type AuditAction string

const (
	AuditActionApplyBan      AuditAction = "apply_ban"
	AuditActionDismissReport AuditAction = "dismiss_report"
	AuditActionClearQueued   AuditAction = "clear_queued_notifications"
)

// AuditEntry represents a logged moderation action.
type AuditEntry struct {
	ID        string            `json:"id"`
	Action    AuditAction       `json:"action"`
	ActorID   string            `json:"actor_id"`
	TargetID  string            `json:"target_id"` // user or report being acted upon
	Reason    string            `json:"reason"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
