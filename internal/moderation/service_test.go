package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*User

	applyErr error
}

func newFakeUserStore(ids ...string) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*User)}
	for _, id := range ids {
		s.users[id] = &User{ID: id}
	}
	return s
}

func (s *fakeUserStore) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.BanHistory = append([]BanHistoryEntry(nil), u.BanHistory...)
	return &cp, nil
}

func (s *fakeUserStore) ApplyUserBan(ctx context.Context, id string, state BanState, strikeCount int, entry BanHistoryEntry) (*User, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.IsBanned, u.BannedUntil = state.Fields()
	u.StrikeCount = strikeCount
	u.BanHistory = append(u.BanHistory, entry)
	cp := *u
	cp.BanHistory = append([]BanHistoryEntry(nil), u.BanHistory...)
	return &cp, nil
}

// fakeReportStore is an in-memory ReportStore and AuditStore.
type fakeReportStore struct {
	mu      sync.Mutex
	reports map[string]*Report
	audit   []AuditEntry

	resolveErr error
	auditErr   error
}

func newFakeReportStore(reports ...Report) *fakeReportStore {
	s := &fakeReportStore{reports: make(map[string]*Report)}
	for i := range reports {
		r := reports[i]
		s.reports[r.ID] = &r
	}
	return s
}

func (s *fakeReportStore) CreateReport(ctx context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = &report
	return nil
}

func (s *fakeReportStore) GetReport(ctx context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeReportStore) ListReports(ctx context.Context, status ReportStatus, limit int) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Report
	for _, r := range s.reports {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeReportStore) ResolveReport(ctx context.Context, id string, status ReportStatus, resolvedBy string, duration BanDuration, notes string) error {
	if s.resolveErr != nil {
		return s.resolveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != ReportStatusPending {
		return ErrReportResolved
	}
	now := time.Now()
	r.Status = status
	r.ResolvedBy = resolvedBy
	r.BanDuration = duration
	r.AdminNotes = notes
	r.ResolvedAt = &now
	return nil
}

func (s *fakeReportStore) HasReported(ctx context.Context, reporterID, reportedRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ReportedBy == reporterID && r.ReportedRef == reportedRef {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeReportStore) CountReportsFromUserSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reports {
		if r.ReportedBy == reporterID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *fakeReportStore) LogAction(ctx context.Context, entry AuditEntry) error {
	if s.auditErr != nil {
		return s.auditErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *fakeReportStore) ListAuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEntry(nil), s.audit...), nil
}

// fakeNotifier records ban notices.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *fakeNotifier) NotifyBanApplied(ctx context.Context, userID string, result StrikeResult, bannedUntil *time.Time) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, userID)
	return nil
}

func pendingReport(id, target string) Report {
	return Report{
		ID:           id,
		ReportedType: ReportedTypeContent,
		ReportedRef:  "post-" + id,
		ReportedUser: target,
		Reason:       "spam",
		ReportedBy:   "reporter-1",
		Status:       ReportStatusPending,
		CreatedAt:    time.Now(),
	}
}

func newTestService(users *fakeUserStore, reports *fakeReportStore, notifier *fakeNotifier) *ActionService {
	// Avoid wrapping a typed-nil *fakeNotifier in the Notifier interface,
	// which would defeat the service's nil check.
	var n Notifier
	if notifier != nil {
		n = notifier
	}
	svc := NewActionService(users, reports, reports, n, DefaultPolicy())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc
}

func TestApplyBan_Escalation(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")
	reports := newFakeReportStore(
		pendingReport("r1", "alice"),
		pendingReport("r2", "alice"),
		pendingReport("r3", "alice"),
	)
	notifier := &fakeNotifier{}
	svc := newTestService(users, reports, notifier)

	// First strike: 24 hours.
	res, err := svc.ApplyBan(ctx, "alice", Duration24Hour, "spam", "admin-1", "r1")
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	assert.False(t, res.AlreadyApplied)
	assert.Equal(t, 1, res.Strike.StrikeNumber)
	assert.Equal(t, Duration24Hour, res.Strike.Duration)
	assert.Equal(t, 1, res.User.StrikeCount)
	require.NotNil(t, res.User.BannedUntil)

	r1, err := reports.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, ReportStatusActionTaken, r1.Status)
	assert.Equal(t, "admin-1", r1.ResolvedBy)

	// Second strike: a 1h request is escalated to the 7 day floor.
	res, err = svc.ApplyBan(ctx, "alice", Duration1Hour, "more spam", "admin-1", "r2")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Strike.StrikeNumber)
	assert.Equal(t, Duration7Day, res.Strike.Duration)
	assert.Equal(t, 7*24*time.Hour, res.Strike.BanLength)

	// Third strike: permanent regardless of the requested duration.
	res, err = svc.ApplyBan(ctx, "alice", Duration1Hour, "again", "admin-1", "r3")
	require.NoError(t, err)
	assert.True(t, res.Strike.IsPermanent)
	assert.Equal(t, 3, res.Strike.StrikeNumber)
	assert.True(t, res.User.IsBanned)
	assert.Nil(t, res.User.BannedUntil)

	// One notification and one audit entry per applied ban.
	assert.Equal(t, []string{"alice", "alice", "alice"}, notifier.calls)
	audit, err := reports.ListAuditLog(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, audit, 3)
}

func TestApplyBan_IdempotentRetry(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")
	reports := newFakeReportStore(pendingReport("r1", "alice"))
	notifier := &fakeNotifier{}
	svc := newTestService(users, reports, notifier)

	first, err := svc.ApplyBan(ctx, "alice", Duration24Hour, "spam", "admin-1", "r1")
	require.NoError(t, err)

	// The retry must not add a strike, re-notify, or re-audit.
	retry, err := svc.ApplyBan(ctx, "alice", Duration24Hour, "spam", "admin-1", "r1")
	require.NoError(t, err)
	assert.True(t, retry.AlreadyApplied)
	assert.Equal(t, first.Strike.StrikeNumber, retry.Strike.StrikeNumber)
	assert.Equal(t, first.Strike.Duration, retry.Strike.Duration)
	assert.Equal(t, 1, retry.User.StrikeCount)
	assert.Len(t, retry.User.BanHistory, 1)

	assert.Len(t, notifier.calls, 1)
	audit, err := reports.ListAuditLog(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, audit, 1)
}

func TestApplyBan_SoftFailuresAreWarnings(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")
	reports := newFakeReportStore(pendingReport("r1", "alice"))
	reports.resolveErr = errors.New("report bucket unavailable")
	reports.auditErr = errors.New("audit bucket unavailable")
	notifier := &fakeNotifier{err: errors.New("dispatch down")}
	svc := newTestService(users, reports, notifier)

	res, err := svc.ApplyBan(ctx, "alice", Duration24Hour, "spam", "admin-1", "r1")
	require.NoError(t, err, "soft failures must not fail the ban")
	assert.Len(t, res.Warnings, 3)

	// The ban itself landed.
	u, err := users.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.IsBanned)
	assert.Equal(t, 1, u.StrikeCount)
}

func TestApplyBan_PersistFailureIsHard(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")
	users.applyErr = errors.New("disk full")
	reports := newFakeReportStore(pendingReport("r1", "alice"))
	notifier := &fakeNotifier{}
	svc := newTestService(users, reports, notifier)

	_, err := svc.ApplyBan(ctx, "alice", Duration24Hour, "spam", "admin-1", "r1")
	require.Error(t, err)

	// Nothing downstream ran.
	assert.Empty(t, notifier.calls)
	r1, err := reports.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, ReportStatusPending, r1.Status)
}

func TestApplyBan_Validation(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")
	reports := newFakeReportStore()
	svc := newTestService(users, reports, nil)

	t.Run("missing user id", func(t *testing.T) {
		_, err := svc.ApplyBan(ctx, "", Duration24Hour, "spam", "admin-1", "")
		assert.True(t, IsValidation(err))
	})

	t.Run("invalid duration rejected before any write", func(t *testing.T) {
		_, err := svc.ApplyBan(ctx, "alice", BanDuration("forever"), "spam", "admin-1", "")
		assert.True(t, IsValidation(err))

		u, err := users.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, u.IsBanned)
		assert.Empty(t, u.BanHistory)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.ApplyBan(ctx, "ghost", Duration24Hour, "spam", "admin-1", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestApplyBan_ManualKey(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")
	reports := newFakeReportStore()
	svc := newTestService(users, reports, nil)

	key := NewManualBanKey()
	res, err := svc.ApplyBan(ctx, "alice", Duration24Hour, "tos violation", "admin-1", key)
	require.NoError(t, err)
	// No report to resolve, so no warning about one either.
	assert.Empty(t, res.Warnings)

	retry, err := svc.ApplyBan(ctx, "alice", Duration24Hour, "tos violation", "admin-1", key)
	require.NoError(t, err)
	assert.True(t, retry.AlreadyApplied)
	assert.Equal(t, 1, retry.User.StrikeCount)
}

func TestDismissReport(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")
	reports := newFakeReportStore(pendingReport("r1", "alice"))
	svc := newTestService(users, reports, nil)

	require.NoError(t, svc.DismissReport(ctx, "r1", "admin-1", "not actionable"))

	r1, err := reports.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, ReportStatusDismissed, r1.Status)
	assert.Equal(t, "not actionable", r1.AdminNotes)

	t.Run("already resolved", func(t *testing.T) {
		err := svc.DismissReport(ctx, "r1", "admin-1", "again")
		assert.ErrorIs(t, err, ErrReportResolved)
	})

	t.Run("unknown report", func(t *testing.T) {
		err := svc.DismissReport(ctx, "nope", "admin-1", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSubmitReport(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore("alice")

	t.Run("valid report", func(t *testing.T) {
		reports := newFakeReportStore()
		svc := newTestService(users, reports, nil)

		report, err := svc.SubmitReport(ctx, ReportedTypeComment, "comment-1", "alice", "  rude  ", "bob")
		require.NoError(t, err)
		assert.Equal(t, ReportStatusPending, report.Status)
		assert.Equal(t, "rude", report.Reason)
		assert.NotEmpty(t, report.ID)
	})

	t.Run("empty reason gets placeholder", func(t *testing.T) {
		reports := newFakeReportStore()
		svc := newTestService(users, reports, nil)

		report, err := svc.SubmitReport(ctx, ReportedTypeUser, "alice", "alice", "   ", "bob")
		require.NoError(t, err)
		assert.Equal(t, "No reason provided", report.Reason)
	})

	t.Run("overlong reason truncated", func(t *testing.T) {
		reports := newFakeReportStore()
		svc := newTestService(users, reports, nil)

		long := make([]byte, MaxReportReasonLength+100)
		for i := range long {
			long[i] = 'x'
		}
		report, err := svc.SubmitReport(ctx, ReportedTypeContent, "post-1", "alice", string(long), "bob")
		require.NoError(t, err)
		assert.Len(t, report.Reason, MaxReportReasonLength)
	})

	t.Run("self report rejected", func(t *testing.T) {
		reports := newFakeReportStore()
		svc := newTestService(users, reports, nil)

		_, err := svc.SubmitReport(ctx, ReportedTypeUser, "bob", "bob", "test", "bob")
		assert.True(t, IsValidation(err))
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		reports := newFakeReportStore()
		svc := newTestService(users, reports, nil)

		_, err := svc.SubmitReport(ctx, ReportedTypeContent, "post-1", "alice", "spam", "bob")
		require.NoError(t, err)

		_, err = svc.SubmitReport(ctx, ReportedTypeContent, "post-1", "alice", "spam again", "bob")
		assert.True(t, IsValidation(err))
	})

	t.Run("hourly rate limit", func(t *testing.T) {
		reports := newFakeReportStore()
		svc := newTestService(users, reports, nil)

		for i := 0; i < ReportRateLimitPerHour; i++ {
			_, err := svc.SubmitReport(ctx, ReportedTypeContent, fmt.Sprintf("post-%d", i), "alice", "spam", "bob")
			require.NoError(t, err)
		}

		_, err := svc.SubmitReport(ctx, ReportedTypeContent, "post-overflow", "alice", "spam", "bob")
		assert.True(t, IsValidation(err))
	})
}
