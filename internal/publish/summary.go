package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jacklau/mvsdump/internal/catalog"
	"github.com/jacklau/mvsdump/internal/provider"
)

const (
	defaultSummaryTimeout = 30 * time.Second

	// maxSummaryProducts bounds the prompt size.
	maxSummaryProducts = 100
)

// Summarizer asks a language model for a short release summary.
type Summarizer struct {
	completer provider.Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSummarizer creates a Summarizer backed by completer.
func NewSummarizer(completer provider.Completer, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{completer: completer, timeout: defaultSummaryTimeout, logger: logger}
}

// Summarize returns a summary of the changed products, or "" when there is
// nothing to summarise or the model fails. Failures are only logged.
func (s *Summarizer) Summarize(ctx context.Context, changed []catalog.ProductRef) string {
	if len(changed) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.completer.Complete(ctx, buildSummaryPrompt(changed))
	if err != nil {
		s.logger.Warn("release summary unavailable", "error", err)
		return ""
	}
	return strings.TrimSpace(out)
}

func buildSummaryPrompt(changed []catalog.ProductRef) string {
	var b strings.Builder
	b.WriteString("The following software products gained new downloadable files today.\n")
	b.WriteString("Write at most two plain sentences summarising the update for a release note. ")
	b.WriteString("Do not use markdown and do not list every product.\n\n")

	for i, p := range changed {
		if i == maxSummaryProducts {
			fmt.Fprintf(&b, "... and %d more\n", len(changed)-i)
			break
		}
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "- %d: %s\n", p.ID, name)
	}
	return b.String()
}
