package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	"cortado/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// UserStore provides persistent storage for user ban state. The stored
// record carries the raw (is_banned, banned_until) pair; translation to
// the tagged ban state happens here, at the storage boundary.
type UserStore struct {
	db *bolt.DB
}

var _ moderation.UserStore = (*UserStore)(nil)

// PutUser stores a full user record, creating or replacing it.
func (s *UserStore) PutUser(ctx context.Context, user moderation.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketUsers)
		}

		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		return bucket.Put([]byte(user.ID), data)
	})
}

// GetUser retrieves a user by id. Returns (nil, nil) when absent.
func (s *UserStore) GetUser(ctx context.Context, id string) (*moderation.User, error) {
	var user *moderation.User

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		user = &moderation.User{}
		return json.Unmarshal(data, user)
	})

	return user, err
}

// ApplyUserBan updates the user's ban fields and appends the history
// entry in one transaction, so the ban and its history record commit or
// fail together.
func (s *UserStore) ApplyUserBan(ctx context.Context, id string, state moderation.BanState, strikeCount int, entry moderation.BanHistoryEntry) (*moderation.User, error) {
	var updated *moderation.User

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketUsers)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user not found: %s", id)
		}

		var user moderation.User
		if err := json.Unmarshal(data, &user); err != nil {
			return fmt.Errorf("failed to unmarshal user %s: %w", id, err)
		}

		user.IsBanned, user.BannedUntil = state.Fields()
		user.StrikeCount = strikeCount
		user.BanHistory = append(user.BanHistory, entry)

		newData, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user %s: %w", id, err)
		}

		if err := bucket.Put([]byte(id), newData); err != nil {
			return err
		}

		updated = &user
		return nil
	})

	return updated, err
}
