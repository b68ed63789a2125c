package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jacklau/mvsdump/internal/catalog"
)

// Update describes the outcome of a sync that found new files.
type Update struct {
	RunID      string
	Changed    []catalog.ProductRef
	NewFiles   int
	TotalFiles int
	ReleaseTag string // empty when the run was not published
	ReleaseURL string
	FinishedAt time.Time
}

// Notifier sends notifications about catalog updates.
type Notifier interface {
	Notify(ctx context.Context, u Update) error
}

// MultiNotifier sends notifications to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMultiNotifier creates a MultiNotifier from the given notifiers.
func NewMultiNotifier(logger *slog.Logger, notifiers ...Notifier) *MultiNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiNotifier{notifiers: notifiers, logger: logger}
}

// FromWebhooks builds a MultiNotifier with a Slack and/or Discord notifier for
// each non-empty webhook URL.
func FromWebhooks(slackURL, discordURL string, logger *slog.Logger) *MultiNotifier {
	var ns []Notifier
	if slackURL != "" {
		ns = append(ns, NewSlackNotifier(slackURL, logger))
	}
	if discordURL != "" {
		ns = append(ns, NewDiscordNotifier(discordURL))
	}
	return NewMultiNotifier(logger, ns...)
}

// Len returns the number of configured notifiers.
func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

// Notify sends u to all configured notifiers, continuing past failures.
// All errors are returned joined.
func (m *MultiNotifier) Notify(ctx context.Context, u Update) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, u); err != nil {
			m.logger.Warn("notifier error", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
