package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SlackNotifier posts catalog updates to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier with the given webhook URL.
func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// BuildSlackPayload creates the Slack Block Kit message for u.
func BuildSlackPayload(u Update) slackPayload {
	headline := Headline(u)
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "Catalog update: " + headline},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Products:*\n" + FormatProducts(u.Changed)},
		},
	}

	if u.ReleaseTag != "" {
		release := fmt.Sprintf("*Release:* `%s`", u.ReleaseTag)
		if u.ReleaseURL != "" {
			release = fmt.Sprintf("*Release:* <%s|%s>", u.ReleaseURL, u.ReleaseTag)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: release},
		})
	}

	blocks = append(blocks, slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("_%d files tracked, run %s_", u.TotalFiles, u.RunID)},
	})

	return slackPayload{Text: headline, Blocks: blocks}
}

// Notify posts u to Slack. Retries once on failure.
func (s *SlackNotifier) Notify(ctx context.Context, u Update) error {
	body, err := json.Marshal(BuildSlackPayload(u))
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	if err := s.post(ctx, body); err != nil {
		s.logger.Warn("slack notify failed, retrying", "error", err)
		if err := s.post(ctx, body); err != nil {
			return fmt.Errorf("slack notify failed after retry: %w", err)
		}
	}
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
