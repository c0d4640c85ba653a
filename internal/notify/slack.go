// Package notify publishes one-line operator alerts to a Slack incoming
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack posts messages to an incoming-webhook URL. A configured user id is
// prepended as a mention so alerts ping the operator.
type Slack struct {
	webhookURL      string
	userIDToInclude string
	client          *http.Client
}

// NewSlack builds a notifier. An empty webhook URL yields a notifier whose
// Notify is a no-op, so callers need no nil checks.
func NewSlack(webhookURL, userIDToInclude string) *Slack {
	return &Slack{
		webhookURL:      webhookURL,
		userIDToInclude: userIDToInclude,
		client:          &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify publishes msg to the operator channel.
func (s *Slack) Notify(ctx context.Context, msg string) error {
	if s.webhookURL == "" {
		return nil
	}
	if s.userIDToInclude != "" {
		msg = fmt.Sprintf("<@%s> %s", s.userIDToInclude, msg)
	}

	payload, err := json.Marshal(map[string]string{"text": msg})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
