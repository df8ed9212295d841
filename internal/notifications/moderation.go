package notifications

import (
	"context"
	"strconv"
	"time"

	"cortado/internal/moderation"
)

// BanNotifier adapts the dispatcher to the moderation engine's notifier
// interface, translating an applied strike into a notification intent.
type BanNotifier struct {
	dispatcher *Dispatcher
}

// NewBanNotifier creates a BanNotifier over the given dispatcher.
func NewBanNotifier(d *Dispatcher) *BanNotifier {
	return &BanNotifier{dispatcher: d}
}

var _ moderation.Notifier = (*BanNotifier)(nil)

// NotifyBanApplied tells the banned user what happened. Fan-out runs
// detached; the moderation flow must not block on channel adapters.
func (b *BanNotifier) NotifyBanApplied(ctx context.Context, userID string, result moderation.StrikeResult, bannedUntil *time.Time) error {
	state := moderation.PermanentBan()
	if !result.IsPermanent && bannedUntil != nil {
		state = moderation.TimedBan(*bannedUntil)
	}

	intent := Intent{
		Type:        TypeModeration,
		RecipientID: userID,
		Title:       "Your account has been suspended",
		Message:     result.Reason + " " + moderation.DescribeBanStatus(state, time.Now()),
		Metadata: map[string]string{
			"strike":    strconv.Itoa(result.StrikeNumber),
			"duration":  string(result.Duration),
			"permanent": strconv.FormatBool(result.IsPermanent),
		},
	}

	_, err := b.dispatcher.SubmitDetached(ctx, intent)
	return err
}
