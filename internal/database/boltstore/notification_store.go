package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cortado/internal/notifications"

	bolt "go.etcd.io/bbolt"
)

// NotificationStore provides persistent storage for notification
// records, delivery preferences, and push subscriptions.
type NotificationStore struct {
	db *bolt.DB
}

var (
	_ notifications.Store             = (*NotificationStore)(nil)
	_ notifications.PreferenceStore   = (*NotificationStore)(nil)
	_ notifications.SubscriptionStore = (*NotificationStore)(nil)
)

// notificationKey builds the composite key {recipient:created_nanos:id}.
// Zero-padded nanos keep byte order equal to chronological order, so a
// prefix cursor walks a recipient's notifications oldest first.
func notificationKey(recipientID string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s:%020d:%s", recipientID, createdAt.UnixNano(), id))
}

// CreateNotification persists the canonical notification record.
func (s *NotificationStore) CreateNotification(ctx context.Context, n notifications.Notification) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotifications)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketNotifications)
		}

		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}

		return bucket.Put(notificationKey(n.RecipientID, n.CreatedAt, n.ID), data)
	})
}

// ListNotifications returns a recipient's notifications, newest first.
// The cursor is the created_at of the last returned record in
// RFC3339Nano; records at or after it are skipped.
func (s *NotificationStore) ListNotifications(ctx context.Context, recipientID string, limit int, cursor string) ([]notifications.Notification, string, error) {
	if limit <= 0 {
		limit = 20
	}

	var before time.Time
	if cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
		before = t
	}

	var results []notifications.Notification

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotifications)
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		prefix := []byte(recipientID + ":")

		// Walk the recipient's range backwards for newest-first order.
		// Seek to the first key past the prefix, then step back.
		k, v := c.Seek(append(prefix[:len(prefix):len(prefix)], 0xff))
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		for ; k != nil && hasPrefix(k, prefix); k, v = c.Prev() {
			var n notifications.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue // Skip malformed entries
			}
			if !before.IsZero() && !n.CreatedAt.Before(before) {
				continue
			}
			results = append(results, n)
			// Fetch one extra to determine if there's a next page
			if len(results) > limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(results) > limit {
		results = results[:limit]
		nextCursor = results[limit-1].CreatedAt.Format(time.RFC3339Nano)
	}

	return results, nextCursor, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationStore) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotifications)
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		prefix := []byte(recipientID + ":")

		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var n notifications.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			if !n.IsRead {
				count++
			}
		}
		return nil
	})

	return count, err
}

// MarkAllRead flips is_read on every unread notification for the user.
func (s *NotificationStore) MarkAllRead(ctx context.Context, recipientID string) error {
	now := time.Now()

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotifications)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketNotifications)
		}

		c := bucket.Cursor()
		prefix := []byte(recipientID + ":")

		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var n notifications.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			if n.IsRead {
				continue
			}

			n.IsRead = true
			readAt := now
			n.ReadAt = &readAt

			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := bucket.Put(k, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkEmailSent records a successful email delivery on the record.
func (s *NotificationStore) MarkEmailSent(ctx context.Context, recipientID, notificationID string) error {
	now := time.Now()

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotifications)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketNotifications)
		}

		c := bucket.Cursor()
		prefix := []byte(recipientID + ":")

		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var n notifications.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			if n.ID != notificationID {
				continue
			}

			n.IsEmailSent = true
			sentAt := now
			n.EmailSentAt = &sentAt

			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			return bucket.Put(k, data)
		}

		return fmt.Errorf("notification not found: %s", notificationID)
	})
}

// GetPreferences returns a user's delivery preferences. A user without
// stored preferences gets the zero value, which falls back to per-type
// defaults and has no email address.
func (s *NotificationStore) GetPreferences(ctx context.Context, userID string) (notifications.Preferences, error) {
	var prefs notifications.Preferences

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketPreferences)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &prefs)
	})

	return prefs, err
}

// SetPreferences stores a user's delivery preferences.
func (s *NotificationStore) SetPreferences(ctx context.Context, userID string, prefs notifications.Preferences) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketPreferences)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketPreferences)
		}

		data, err := json.Marshal(prefs)
		if err != nil {
			return fmt.Errorf("failed to marshal preferences: %w", err)
		}

		return bucket.Put([]byte(userID), data)
	})
}

// GetSubscription returns a user's push subscription, or (nil, nil)
// when none is registered.
func (s *NotificationStore) GetSubscription(ctx context.Context, userID string) (*notifications.PushSubscription, error) {
	var sub *notifications.PushSubscription

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketPushSubscriptions)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return nil
		}

		sub = &notifications.PushSubscription{}
		return json.Unmarshal(data, sub)
	})

	return sub, err
}

// SaveSubscription stores a user's push subscription.
func (s *NotificationStore) SaveSubscription(ctx context.Context, sub notifications.PushSubscription) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketPushSubscriptions)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketPushSubscriptions)
		}

		data, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("failed to marshal subscription: %w", err)
		}

		return bucket.Put([]byte(sub.UserID), data)
	})
}

// DeleteSubscription removes a user's push subscription.
func (s *NotificationStore) DeleteSubscription(ctx context.Context, userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketPushSubscriptions)
		if bucket == nil {
			return nil
		}

		return bucket.Delete([]byte(userID))
	})
}
