package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsCurrentlyBanned(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		state  BanState
		banned bool
	}{
		{"active user", Active(), false},
		{"permanent ban", PermanentBan(), true},
		{"timed ban in the future", TimedBan(now.Add(time.Hour)), true},
		{"timed ban expired", TimedBan(now.Add(-time.Minute)), false},
		{"timed ban expiring exactly now", TimedBan(now), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.banned, IsCurrentlyBanned(tt.state, now))
		})
	}
}

func TestIsCurrentlyBanned_ExpiryBoundary(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := TimedBan(until)

	assert.True(t, IsCurrentlyBanned(state, until.Add(-time.Nanosecond)))
	assert.False(t, IsCurrentlyBanned(state, until))
	assert.False(t, IsCurrentlyBanned(state, until.Add(time.Nanosecond)))
}

func TestBanStateFromFields(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("not banned", func(t *testing.T) {
		state := BanStateFromFields(false, nil)
		assert.False(t, IsCurrentlyBanned(state, until))
		assert.False(t, state.IsPermanent())
	})

	t.Run("banned with no expiry is permanent", func(t *testing.T) {
		state := BanStateFromFields(true, nil)
		assert.True(t, state.IsPermanent())
	})

	t.Run("banned with expiry is timed", func(t *testing.T) {
		state := BanStateFromFields(true, &until)
		got, ok := state.Until()
		assert.True(t, ok)
		assert.Equal(t, until, got)
	})

	t.Run("round-trips through Fields", func(t *testing.T) {
		for _, state := range []BanState{Active(), PermanentBan(), TimedBan(until)} {
			isBanned, bannedUntil := state.Fields()
			assert.Equal(t, state, BanStateFromFields(isBanned, bannedUntil))
		}
	})
}

func TestDescribeBanStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state BanState
		want  string
	}{
		{"active", Active(), "Your account is in good standing."},
		{"permanent", PermanentBan(), "Your account has been permanently banned."},
		{"expired", TimedBan(now.Add(-time.Hour)), "Your ban has expired."},
		{"under an hour rounds up to one hour", TimedBan(now.Add(30 * time.Minute)), "Your account is banned for 1 more hour."},
		{"partial hours round up", TimedBan(now.Add(90 * time.Minute)), "Your account is banned for 2 more hours."},
		{"under a day shown in hours", TimedBan(now.Add(23 * time.Hour)), "Your account is banned for 23 more hours."},
		{"exactly a day shown in days", TimedBan(now.Add(24 * time.Hour)), "Your account is banned for 1 more day."},
		{"partial days round up", TimedBan(now.Add(25 * time.Hour)), "Your account is banned for 2 more days."},
		{"a week", TimedBan(now.Add(7 * 24 * time.Hour)), "Your account is banned for 7 more days."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeBanStatus(tt.state, now))
		})
	}
}
