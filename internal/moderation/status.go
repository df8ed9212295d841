package moderation

import (
	"fmt"
	"time"
)

// IsCurrentlyBanned reports whether a ban is in effect at the given time.
// This is the single authority consulted by every gate (posting, messaging,
// login); callers must not re-derive ban state from the raw fields.
func IsCurrentlyBanned(state BanState, now time.Time) bool {
	switch state.kind {
	case banKindPermanent:
		return true
	case banKindTimed:
		return now.Before(state.until)
	}
	return false
}

// DescribeBanStatus renders a human-readable description of a ban.
// Remaining time is shown in hours when less than a day is left,
// otherwise in whole days rounded up.
func DescribeBanStatus(state BanState, now time.Time) string {
	switch state.kind {
	case banKindPermanent:
		return "Your account has been permanently banned."
	case banKindTimed:
		remaining := state.until.Sub(now)
		if remaining <= 0 {
			return "Your ban has expired."
		}
		if remaining < 24*time.Hour {
			hours := int((remaining + time.Hour - 1) / time.Hour)
			if hours == 1 {
				return "Your account is banned for 1 more hour."
			}
			return fmt.Sprintf("Your account is banned for %d more hours.", hours)
		}
		days := int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
		if days == 1 {
			return "Your account is banned for 1 more day."
		}
		return fmt.Sprintf("Your account is banned for %d more days.", days)
	}
	return "Your account is in good standing."
}
