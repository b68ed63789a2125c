package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DiscordNotifier posts catalog updates to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a DiscordNotifier with the given webhook URL.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type discordEmbed struct {
	Title     string         `json:"title"`
	URL       string         `json:"url,omitempty"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Footer    *discordFooter `json:"footer,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// discordFieldLimit is Discord's maximum embed field value length.
const discordFieldLimit = 1024

// BuildDiscordPayload creates the Discord embed message for u.
func BuildDiscordPayload(u Update) discordPayload {
	products := FormatProducts(u.Changed)
	if len(products) > discordFieldLimit {
		products = products[:discordFieldLimit-3] + "..."
	}

	fields := []discordField{
		{Name: "Products", Value: products, Inline: false},
		{Name: "Files tracked", Value: fmt.Sprintf("%d", u.TotalFiles), Inline: true},
	}
	if u.ReleaseTag != "" {
		fields = append(fields, discordField{Name: "Release", Value: u.ReleaseTag, Inline: true})
	}

	embed := discordEmbed{
		Title:  Headline(u),
		URL:    u.ReleaseURL,
		Color:  3066993, // green
		Fields: fields,
		Footer: &discordFooter{Text: "mvsdump - run " + u.RunID},
	}
	if !u.FinishedAt.IsZero() {
		embed.Timestamp = u.FinishedAt.UTC().Format(time.RFC3339)
	}

	return discordPayload{Embeds: []discordEmbed{embed}}
}

// Notify posts u to Discord.
func (d *DiscordNotifier) Notify(ctx context.Context, u Update) error {
	body, err := json.Marshal(BuildDiscordPayload(u))
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}
	return d.post(ctx, body)
}

func (d *DiscordNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
