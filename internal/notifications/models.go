package notifications

import "time"

// Type is the closed set of notification kinds. Each variant carries its
// own default channel enablement and title, decided at compile time.
type Type string

const (
	TypeLike        Type = "like"
	TypeDislike     Type = "dislike"
	TypeComment     Type = "comment"
	TypeReply       Type = "reply"
	TypeFollow      Type = "follow"
	TypeInterested  Type = "interested"
	TypeReport      Type = "report"
	TypeCommentLike Type = "comment_like"
	TypeSystem      Type = "system"
	TypeModeration  Type = "moderation"
)

// AllTypes returns every notification type.
func AllTypes() []Type {
	return []Type{
		TypeLike,
		TypeDislike,
		TypeComment,
		TypeReply,
		TypeFollow,
		TypeInterested,
		TypeReport,
		TypeCommentLike,
		TypeSystem,
		TypeModeration,
	}
}

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	switch t {
	case TypeLike, TypeDislike, TypeComment, TypeReply, TypeFollow,
		TypeInterested, TypeReport, TypeCommentLike, TypeSystem, TypeModeration:
		return true
	}
	return false
}

// EmailByDefault reports whether this type is emailed when the recipient
// has not expressed a preference. High-volume reaction types stay
// in-app only.
func (t Type) EmailByDefault() bool {
	switch t {
	case TypeLike, TypeDislike, TypeCommentLike, TypeInterested:
		return false
	default:
		return true
	}
}

// DefaultTitle returns the title used when an intent carries none.
func (t Type) DefaultTitle() string {
	switch t {
	case TypeLike:
		return "New like"
	case TypeDislike:
		return "New dislike"
	case TypeComment:
		return "New comment"
	case TypeReply:
		return "New reply"
	case TypeFollow:
		return "New follower"
	case TypeInterested:
		return "Someone is interested"
	case TypeReport:
		return "Report update"
	case TypeCommentLike:
		return "Your comment was liked"
	case TypeModeration:
		return "Account notice"
	default:
		return "Notification"
	}
}

// Notification is the canonical persisted record. It is created once by
// the dispatcher and mutated only to flip the read and email-sent flags.
type Notification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	SenderID    string            `json:"sender_id,omitempty"`
	Type        Type              `json:"type"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	IsRead      bool              `json:"is_read"`
	ReadAt      *time.Time        `json:"read_at,omitempty"`
	IsEmailSent bool              `json:"is_email_sent"`
	EmailSentAt *time.Time        `json:"email_sent_at,omitempty"`
}

// Intent describes what to notify, prior to persistence.
type Intent struct {
	Type        Type              `json:"type"`
	RecipientID string            `json:"recipient_id"`
	SenderID    string            `json:"sender_id,omitempty"`
	Title       string            `json:"title,omitempty"`
	Message     string            `json:"message,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Preferences holds a recipient's delivery preferences. Email holds the
// delivery address; a nil EmailEnabled map falls back to per-type
// defaults.
type Preferences struct {
	Email        string        `json:"email,omitempty"`
	EmailEnabled map[Type]bool `json:"email_enabled,omitempty"`
}

// EmailEnabledFor reports whether email delivery is on for the given
// type, falling back to the type's compile-time default.
func (p Preferences) EmailEnabledFor(t Type) bool {
	if enabled, ok := p.EmailEnabled[t]; ok {
		return enabled
	}
	return t.EmailByDefault()
}

// PushSubscription is an opaque push target registered by a client.
type PushSubscription struct {
	UserID    string            `json:"user_id"`
	Endpoint  string            `json:"endpoint"`
	Keys      map[string]string `json:"keys,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
