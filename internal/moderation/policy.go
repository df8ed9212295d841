package moderation

import (
	"fmt"
	"time"
)

// Policy defines the strike escalation rules. The per-strike minimums act
// as a floor: an admin-requested duration weaker than the floor for the
// user's next strike is escalated to the floor.
type Policy struct {
	// MaxStrikes is the strike number at which a ban becomes permanent.
	MaxStrikes int

	// FirstStrikeBanHours is the minimum ban length for a first strike.
	FirstStrikeBanHours int

	// SecondStrikeBanDays is the minimum ban length for a second strike.
	SecondStrikeBanDays int
}

// DefaultPolicy returns the standard escalation rules: 24 hours, 7 days,
// then permanent on the third strike.
func DefaultPolicy() Policy {
	return Policy{
		MaxStrikes:          3,
		FirstStrikeBanHours: 24,
		SecondStrikeBanDays: 7,
	}
}

// StrikeResult is the ban actually applied after escalation.
type StrikeResult struct {
	Duration     BanDuration
	BanLength    time.Duration // zero when permanent
	IsPermanent  bool
	StrikeNumber int
	Reason       string
}

// CalculateStrikeBan computes the ban to apply for a user's next strike.
// The applied duration is the stricter of the requested duration and the
// policy floor for that strike number. Requesting DurationPerm always
// yields a permanent ban. Invalid durations are rejected, never coerced.
func (p Policy) CalculateStrikeBan(currentStrikeCount int, requested BanDuration) (StrikeResult, error) {
	if !requested.Valid() {
		return StrikeResult{}, &ValidationError{
			Field:   "ban_duration",
			Message: fmt.Sprintf("unknown duration %q", string(requested)),
		}
	}

	strikeNumber := currentStrikeCount + 1

	if requested == DurationPerm || strikeNumber >= p.MaxStrikes {
		return StrikeResult{
			Duration:     DurationPerm,
			IsPermanent:  true,
			StrikeNumber: strikeNumber,
			Reason:       fmt.Sprintf("Strike %d: permanent ban", strikeNumber),
		}, nil
	}

	requestedLength, _ := requested.Length()
	floor := p.floorFor(strikeNumber)

	applied := requested
	appliedLength := requestedLength
	if floor > requestedLength {
		appliedLength = floor
		applied = durationForLength(floor)
	}

	return StrikeResult{
		Duration:     applied,
		BanLength:    appliedLength,
		StrikeNumber: strikeNumber,
		Reason:       fmt.Sprintf("Strike %d: banned for %s", strikeNumber, applied),
	}, nil
}

// floorFor returns the minimum ban length for the given strike number.
func (p Policy) floorFor(strikeNumber int) time.Duration {
	switch {
	case strikeNumber <= 1:
		return time.Duration(p.FirstStrikeBanHours) * time.Hour
	default:
		return time.Duration(p.SecondStrikeBanDays) * 24 * time.Hour
	}
}

// durationForLength maps a concrete length back onto the coarsest enum
// value that covers it. Lengths that fall between tiers round up.
func durationForLength(length time.Duration) BanDuration {
	switch {
	case length <= time.Hour:
		return Duration1Hour
	case length <= 24*time.Hour:
		return Duration24Hour
	case length <= 7*24*time.Hour:
		return Duration7Day
	default:
		return Duration365Day
	}
}

// NewBanHistoryEntry builds the history entry for an applied strike.
// Pure construction; it does not touch any store.
func NewBanHistoryEntry(result StrikeResult, reason, bannedBy, reportID string, now time.Time) BanHistoryEntry {
	entry := BanHistoryEntry{
		Reason:      reason,
		BannedAt:    now,
		BannedBy:    bannedBy,
		IsPermanent: result.IsPermanent,
		StrikeCount: result.StrikeNumber,
		ReportID:    reportID,
	}
	if !result.IsPermanent {
		until := now.Add(result.BanLength)
		entry.BannedUntil = &until
	}
	return entry
}

// CurrentStrikeCount derives the strike count from ban history.
// History, not a separately maintained counter, is the source of truth;
// this is defensive against an out-of-sync strike_count field.
func CurrentStrikeCount(history []BanHistoryEntry) int {
	max := 0
	for _, entry := range history {
		if entry.StrikeCount > max {
			max = entry.StrikeCount
		}
	}
	return max
}
