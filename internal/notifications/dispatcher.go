package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cortado/internal/metrics"
	"cortado/internal/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultChannelTimeout bounds each channel adapter call so the
// dispatcher never waits unboundedly on a misbehaving channel.
const DefaultChannelTimeout = 10 * time.Second

// Dispatcher persists notification intents and fans them out to the
// realtime hub, email, and push channels. Only the durable write can
// fail the call; every channel failure is soft.
type Dispatcher struct {
	store Store
	prefs PreferenceStore
	subs  SubscriptionStore
	hub   *Hub
	email EmailChannel
	push  PushChannel

	channelTimeout time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannelTimeout overrides the per-channel call timeout.
func WithChannelTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.channelTimeout = d }
}

// WithClock overrides the dispatcher clock.
func WithClock(now func() time.Time) Option {
	return func(dp *Dispatcher) { dp.now = now }
}

// NewDispatcher creates a Dispatcher. email, push, prefs, and subs may
// be nil; the corresponding channels are skipped.
func NewDispatcher(store Store, hub *Hub, prefs PreferenceStore, subs SubscriptionStore, email EmailChannel, push PushChannel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:          store,
		prefs:          prefs,
		subs:           subs,
		hub:            hub,
		email:          email,
		push:           push,
		channelTimeout: DefaultChannelTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result reports a dispatch outcome. Warnings carry soft channel
// failures; the notification record itself was persisted.
type Result struct {
	Notification Notification
	EmailSent    bool
	PushSent     bool
	Warnings     []string
}

// Submit persists the intent and attempts every delivery channel.
// The call fails only when the durable write fails; channel errors are
// collected as warnings. Email and push run concurrently, each bounded
// by the channel timeout.
func (d *Dispatcher) Submit(ctx context.Context, intent Intent) (*Result, error) {
	ctx, span := tracing.DispatchSpan(ctx, string(intent.Type), intent.RecipientID)
	defer span.End()

	n, err := d.persist(ctx, intent)
	if err != nil {
		return nil, err
	}

	res := &Result{Notification: *n}
	d.fanOut(ctx, n, res)
	return res, nil
}

// SubmitDetached persists the intent synchronously and runs the channel
// fan-out in the background, so a caller dispatching as a side effect of
// another action does not block past the durable write. Soft failures
// are logged; there is no result to attach them to.
func (d *Dispatcher) SubmitDetached(ctx context.Context, intent Intent) (*Notification, error) {
	ctx, span := tracing.DispatchSpan(ctx, string(intent.Type), intent.RecipientID)
	defer span.End()

	n, err := d.persist(ctx, intent)
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		res := &Result{Notification: *n}
		d.fanOut(bg, n, res)
	}()
	return n, nil
}

// persist validates the intent and writes the canonical record.
func (d *Dispatcher) persist(ctx context.Context, intent Intent) (*Notification, error) {
	if !intent.Type.Valid() {
		return nil, fmt.Errorf("invalid notification type %q", string(intent.Type))
	}
	if intent.RecipientID == "" {
		return nil, fmt.Errorf("notification intent missing recipient")
	}

	title := intent.Title
	if title == "" {
		title = intent.Type.DefaultTitle()
	}

	n := Notification{
		ID:          uuid.NewString(),
		RecipientID: intent.RecipientID,
		SenderID:    intent.SenderID,
		Type:        intent.Type,
		Title:       title,
		Message:     intent.Message,
		Metadata:    intent.Metadata,
		CreatedAt:   d.now(),
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	metrics.NotificationsDispatchedTotal.WithLabelValues(string(n.Type)).Inc()
	return &n, nil
}

// fanOut attempts all channels and fails none of them onto the caller.
func (d *Dispatcher) fanOut(ctx context.Context, n *Notification, res *Result) {
	// Realtime delivery is in-process and synchronous.
	if d.hub != nil {
		d.hub.Deliver(n.RecipientID, *n)
	}

	var mu sync.Mutex
	warn := func(channel string, err error) {
		metrics.NotificationChannelErrorsTotal.WithLabelValues(channel).Inc()
		log.Warn().Err(err).Str("channel", channel).Str("notification", n.ID).Msg("dispatch: channel delivery failed")
		mu.Lock()
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", channel, err))
		mu.Unlock()
	}

	var g errgroup.Group

	g.Go(func() error {
		sent, err := d.sendEmail(ctx, n)
		if err != nil {
			warn("email", err)
			return nil
		}
		mu.Lock()
		res.EmailSent = sent
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		sent, err := d.sendPush(ctx, n)
		if err != nil {
			warn("push", err)
			return nil
		}
		mu.Lock()
		res.PushSent = sent
		mu.Unlock()
		return nil
	})

	// Closures report failures as warnings and never return an error.
	_ = g.Wait()
}

// sendEmail delivers by email when the recipient preference enables it
// for this type. The email-sent flags flip only after a successful send.
func (d *Dispatcher) sendEmail(ctx context.Context, n *Notification) (bool, error) {
	if d.email == nil || d.prefs == nil {
		return false, nil
	}

	prefs, err := d.prefs.GetPreferences(ctx, n.RecipientID)
	if err != nil {
		return false, fmt.Errorf("failed to load preferences: %w", err)
	}
	if prefs.Email == "" || !prefs.EmailEnabledFor(n.Type) {
		return false, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.channelTimeout)
	defer cancel()

	if err := d.email.Send(sendCtx, prefs.Email, n.Title, n.Message); err != nil {
		return false, err
	}

	metrics.EmailsSentTotal.Inc()
	if err := d.store.MarkEmailSent(ctx, n.RecipientID, n.ID); err != nil {
		// The mail went out; a stale flag is not worth a warning to the caller.
		log.Warn().Err(err).Str("notification", n.ID).Msg("dispatch: failed to mark email sent")
	}
	return true, nil
}

// sendPush fires the push channel when the recipient has a subscription.
func (d *Dispatcher) sendPush(ctx context.Context, n *Notification) (bool, error) {
	if d.push == nil || d.subs == nil {
		return false, nil
	}

	sub, err := d.subs.GetSubscription(ctx, n.RecipientID)
	if err != nil {
		return false, fmt.Errorf("failed to load push subscription: %w", err)
	}
	if sub == nil {
		return false, nil
	}

	payload, err := json.Marshal(map[string]string{
		"id":      n.ID,
		"type":    string(n.Type),
		"title":   n.Title,
		"message": n.Message,
	})
	if err != nil {
		return false, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.channelTimeout)
	defer cancel()

	if err := d.push.Send(sendCtx, *sub, payload); err != nil {
		return false, err
	}

	metrics.PushSentTotal.Inc()
	return true, nil
}
