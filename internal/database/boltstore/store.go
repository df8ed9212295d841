// Package boltstore provides persistent storage using BoltDB (bbolt).
// It backs the moderation user/report/audit stores and the notification
// record, preference, and push subscription stores.
package boltstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for organizing data
var (
	// BucketUsers stores user ban fields and history keyed by user id
	BucketUsers = []byte("users")

	// BucketReports stores reports keyed by report id
	BucketReports = []byte("reports")

	// BucketReportsByReporter indexes reports by reporter: {reporter:report_id} -> {report_id}
	BucketReportsByReporter = []byte("reports_by_reporter")

	// BucketAuditLog stores the moderation action audit trail
	BucketAuditLog = []byte("audit_log")

	// BucketNotifications stores notification records: {recipient:created_nanos:id} -> {JSON}
	BucketNotifications = []byte("notifications")

	// BucketPreferences stores notification preferences keyed by user id
	BucketPreferences = []byte("notification_preferences")

	// BucketPushSubscriptions stores push subscriptions keyed by user id
	BucketPushSubscriptions = []byte("push_subscriptions")
)

// Store wraps a BoltDB database and provides access to specialized stores.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "cortado.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketUsers,
			BucketReports,
			BucketReportsByReporter,
			BucketAuditLog,
			BucketNotifications,
			BucketPreferences,
			BucketPushSubscriptions,
		}

		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// UserStore returns a user store backed by this database.
func (s *Store) UserStore() *UserStore {
	return &UserStore{db: s.db}
}

// ReportStore returns a report/audit store backed by this database.
func (s *Store) ReportStore() *ReportStore {
	return &ReportStore{db: s.db}
}

// NotificationStore returns a notification store backed by this database.
func (s *Store) NotificationStore() *NotificationStore {
	return &NotificationStore{db: s.db}
}

// Stats returns database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}

// hasPrefix checks if a byte slice has a given prefix.
func hasPrefix(s, prefix []byte) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if s[i] != b {
			return false
		}
	}
	return true
}
