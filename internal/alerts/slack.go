// Package alerts delivers human escalations out of band.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"inboxmind/internal/capability"
)

// Slack posts escalations to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ capability.Alerts = (*Slack)(nil)

// NewSlack builds the Slack alerter. channel is the default destination,
// overridable per call.
func NewSlack(webhookURL, channel string, logger *zap.Logger) (*Slack, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Slack{
		webhookURL: webhookURL,
		channel:    channel,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}, nil
}

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// Escalate posts one urgency-tagged message to the webhook.
func (s *Slack) Escalate(ctx context.Context, channel, message, urgency string) error {
	if channel == "" {
		channel = s.channel
	}
	payload := slackPayload{
		Channel: channel,
		Text:    formatMessage(message, urgency),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post slack alert: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	s.logger.Info("escalation alert sent",
		zap.String("channel", channel),
		zap.String("urgency", urgency))
	return nil
}

// formatMessage tags the text with its urgency so channel scanning works
// at a glance.
func formatMessage(message, urgency string) string {
	tag := strings.ToUpper(urgency)
	if tag == "" {
		tag = "MEDIUM"
	}
	icon := ":warning:"
	if tag == "HIGH" {
		icon = ":rotating_light:"
	}
	return fmt.Sprintf("%s [%s] %s", icon, tag, message)
}

// Nop is the alerter used when no webhook is configured. Escalations are
// logged and dropped; the cycle still records them in session memory.
type Nop struct {
	logger *zap.Logger
}

var _ capability.Alerts = (*Nop)(nil)

// NewNop builds the logging-only alerter.
func NewNop(logger *zap.Logger) *Nop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Nop{logger: logger}
}

func (n *Nop) Escalate(ctx context.Context, channel, message, urgency string) error {
	n.logger.Warn("escalation alert (no delivery configured)",
		zap.String("message", message),
		zap.String("urgency", urgency))
	return nil
}
