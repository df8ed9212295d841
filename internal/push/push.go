// Package push delivers notification payloads to registered push
// endpoints over HTTP.
package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cortado/internal/notifications"
)

// Config holds push delivery configuration.
type Config struct {
	// AuthToken is sent as a bearer token when set.
	AuthToken string

	// Timeout bounds each delivery request. Zero means 10s.
	Timeout time.Duration
}

// Sender posts payloads to subscription endpoints. It implements the
// dispatcher's PushChannel interface.
type Sender struct {
	cfg    Config
	client *http.Client
}

// NewSender creates a push Sender.
func NewSender(cfg Config) *Sender {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Send posts the payload to the subscription's endpoint. Non-2xx
// responses are reported as errors; gone subscriptions (404/410) are
// wrapped in ErrSubscriptionGone so callers can prune them.
func (s *Sender) Send(ctx context.Context, sub notifications.PushSubscription, payload []byte) error {
	if sub.Endpoint == "" {
		return fmt.Errorf("push subscription for %s has no endpoint", sub.UserID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AuthToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("endpoint %s: %w", sub.Endpoint, ErrSubscriptionGone)
	default:
		return fmt.Errorf("push send: unexpected status %d", resp.StatusCode)
	}
}

// ErrSubscriptionGone indicates the push endpoint no longer exists.
var ErrSubscriptionGone = errors.New("push subscription gone")
