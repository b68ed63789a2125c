package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacklau/mvsdump/internal/catalog"
)

// Release describes one snapshot to publish.
type Release struct {
	DBPath    string
	Changed   []catalog.ProductRef
	CreatedAt time.Time
}

// Artifact is a Release prepared for upload: the database compressed next to
// itself and the rendered release notes.
type Artifact struct {
	Release
	Tag         string
	ArchivePath string
	Notes       string
	Size        int64 // uncompressed database size
}

// AssetName is the file name the archive is published under.
func (a *Artifact) AssetName() string {
	return a.Tag + ".gz"
}

// Sink receives prepared artifacts.
type Sink interface {
	Name() string
	Publish(ctx context.Context, a *Artifact) error
}

// Prepare compresses the database to <db>.gz and renders the release notes.
func Prepare(rel Release, summary string) (*Artifact, error) {
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	archive := rel.DBPath + ".gz"
	size, err := Compress(rel.DBPath, archive)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Release:     rel,
		Tag:         TagFor(rel.CreatedAt),
		ArchivePath: archive,
		Notes:       Changelog(rel.Changed, size, summary),
		Size:        size,
	}, nil
}

// Publisher prepares a release once and hands it to every sink.
type Publisher struct {
	sinks      []Sink
	summarizer *Summarizer
	logger     *slog.Logger
}

// NewPublisher creates a Publisher. summarizer may be nil.
func NewPublisher(summarizer *Summarizer, logger *slog.Logger, sinks ...Sink) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{sinks: sinks, summarizer: summarizer, logger: logger}
}

// Sinks returns the number of configured sinks.
func (p *Publisher) Sinks() int {
	return len(p.sinks)
}

// Publish prepares rel and uploads it to every sink. A failing sink does not
// stop the others; all failures are returned joined.
func (p *Publisher) Publish(ctx context.Context, rel Release) (*Artifact, error) {
	var summary string
	if p.summarizer != nil {
		summary = p.summarizer.Summarize(ctx, rel.Changed)
	}

	a, err := Prepare(rel, summary)
	if err != nil {
		return nil, fmt.Errorf("preparing release: %w", err)
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.Publish(ctx, a); err != nil {
			p.logger.Error("publishing release failed", "sink", s.Name(), "tag", a.Tag, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		p.logger.Info("release published", "sink", s.Name(), "tag", a.Tag, "products", len(a.Changed))
	}
	return a, errors.Join(errs...)
}
