package notifications

import "context"

// Store defines persistence for notification records. Implementations
// must be safe for concurrent use.
type Store interface {
	// CreateNotification persists the canonical record. This is the
	// only hard write in the dispatch path.
	CreateNotification(ctx context.Context, n Notification) error

	// ListNotifications returns a recipient's notifications, newest
	// first, with cursor-based pagination.
	ListNotifications(ctx context.Context, recipientID string, limit int, cursor string) ([]Notification, string, error)

	// UnreadCount returns the number of unread notifications.
	UnreadCount(ctx context.Context, recipientID string) (int, error)

	// MarkAllRead flips is_read on every unread notification.
	MarkAllRead(ctx context.Context, recipientID string) error

	// MarkEmailSent records a successful email delivery on the record.
	MarkEmailSent(ctx context.Context, recipientID, notificationID string) error
}

// PreferenceStore resolves a recipient's delivery preferences.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (Preferences, error)
}

// SubscriptionStore resolves a recipient's push subscription, if any.
// A nil subscription with nil error means the user has none.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (*PushSubscription, error)
}
