package notifications

import "context"

// EmailChannel sends a notification email. Adapters apply their own
// bounded timeout and report failure rather than block.
type EmailChannel interface {
	Send(ctx context.Context, address, subject, body string) error
}

// PushChannel fires a push payload at a subscription. Failures are
// always soft from the dispatcher's point of view.
type PushChannel interface {
	Send(ctx context.Context, sub PushSubscription, payload []byte) error
}
