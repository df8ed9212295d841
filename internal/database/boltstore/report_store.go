package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cortado/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// ReportStore provides persistent storage for reports and the
// moderation audit log.
type ReportStore struct {
	db *bolt.DB
}

var (
	_ moderation.ReportStore = (*ReportStore)(nil)
	_ moderation.AuditStore  = (*ReportStore)(nil)
)

// CreateReport stores a new report and indexes it by reporter.
func (s *ReportStore) CreateReport(ctx context.Context, report moderation.Report) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}

		if err := bucket.Put([]byte(report.ID), data); err != nil {
			return err
		}

		reporterIndex := tx.Bucket(BucketReportsByReporter)
		if reporterIndex != nil {
			key := []byte(report.ReportedBy + ":" + report.ID)
			if err := reporterIndex.Put(key, []byte(report.ID)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetReport retrieves a report by ID. Returns (nil, nil) when absent.
func (s *ReportStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	var report *moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		report = &moderation.Report{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

// ListReports returns reports with the given status, newest first.
// An empty status returns every report. A non-positive limit means no cap.
func (s *ReportStore) ListReports(ctx context.Context, status moderation.ReportStatus, limit int) ([]moderation.Report, error) {
	var reports []moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return err
			}
			if status == "" || report.Status == status {
				reports = append(reports, report)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Keys are ids, not timestamps; sort explicitly.
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// ResolveReport moves a pending report into a terminal status with the
// applied duration and notes. Already-resolved reports are left alone.
func (s *ReportStore) ResolveReport(ctx context.Context, id string, status moderation.ReportStatus, resolvedBy string, duration moderation.BanDuration, notes string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("report %s: %w", id, moderation.ErrNotFound)
		}

		var report moderation.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return err
		}

		if report.Status != moderation.ReportStatusPending {
			return moderation.ErrReportResolved
		}

		report.Status = status
		report.ResolvedBy = resolvedBy
		report.BanDuration = duration
		report.AdminNotes = notes
		now := time.Now()
		report.ResolvedAt = &now

		newData, err := json.Marshal(report)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(id), newData)
	})
}

// HasReported checks if a user has already reported a specific subject.
func (s *ReportStore) HasReported(ctx context.Context, reporterID, reportedRef string) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		reporterIndex := tx.Bucket(BucketReportsByReporter)
		reportsBucket := tx.Bucket(BucketReports)
		if reporterIndex == nil || reportsBucket == nil {
			return nil
		}

		cursor := reporterIndex.Cursor()
		prefix := []byte(reporterID + ":")

		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			data := reportsBucket.Get(v)
			if data == nil {
				continue
			}

			var report moderation.Report
			if err := json.Unmarshal(data, &report); err != nil {
				continue
			}
			if report.ReportedRef == reportedRef {
				found = true
				return nil
			}
		}

		return nil
	})

	return found, err
}

// CountReportsFromUserSince counts reports submitted by a user since a
// given time. Used for rate limiting report submissions.
func (s *ReportStore) CountReportsFromUserSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		reporterIndex := tx.Bucket(BucketReportsByReporter)
		reportsBucket := tx.Bucket(BucketReports)
		if reporterIndex == nil || reportsBucket == nil {
			return nil
		}

		cursor := reporterIndex.Cursor()
		prefix := []byte(reporterID + ":")

		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			data := reportsBucket.Get(v)
			if data == nil {
				continue
			}

			var report moderation.Report
			if err := json.Unmarshal(data, &report); err != nil {
				continue
			}
			if report.CreatedAt.After(since) {
				count++
			}
		}

		return nil
	})

	return count, err
}

// LogAction stores a moderation action in the audit log.
func (s *ReportStore) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketAuditLog)
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}

		// Timestamp-based key for chronological ordering
		key := fmt.Sprintf("%020d:%s", entry.Timestamp.UnixNano(), entry.ID)

		return bucket.Put([]byte(key), data)
	})
}

// ListAuditLog returns the most recent audit log entries, newest first.
func (s *ReportStore) ListAuditLog(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	var entries []moderation.AuditEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = cursor.Prev() {
			var entry moderation.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}

		return nil
	})

	return entries, err
}
