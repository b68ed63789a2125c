package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacklau/mvsdump/internal/engine"
	"github.com/jacklau/mvsdump/internal/notify"
	"github.com/jacklau/mvsdump/internal/publish"
	"github.com/jacklau/mvsdump/internal/pubsub"
)

// Publisher publishes a database snapshot.
type Publisher interface {
	Publish(ctx context.Context, rel publish.Release) (*publish.Artifact, error)
}

// Deps holds the dependencies for the Pipeline.
type Deps struct {
	Broker    *pubsub.Broker[*engine.Report]
	Publisher Publisher       // nil disables publication
	Notifier  notify.Notifier // nil disables notifications
	DBPath    string

	// Checkpoint, if set, runs before publishing so DBPath is complete on disk.
	Checkpoint func(ctx context.Context) error

	// ReleaseURL maps a release tag to a link for notifications. Optional.
	ReleaseURL func(tag string) string

	Logger *slog.Logger
	Now    func() time.Time
}

// Outcome is what Handle did with a report.
type Outcome struct {
	Artifact *publish.Artifact // nil when nothing was published
	Notified bool
}

// Pipeline runs the post-sync steps for reports with changes: publish the
// snapshot, then notify.
type Pipeline struct {
	deps Deps
}

// New creates a new Pipeline with the given dependencies.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps}
}

// Run subscribes to the broker and handles reports until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.Consume(ctx, p.deps.Broker.Subscribe(ctx))
}

// Consume handles events from an existing subscription until ctx is
// cancelled or the channel closes.
func (p *Pipeline) Consume(ctx context.Context, events <-chan pubsub.Event[*engine.Report]) error {
	p.deps.Logger.Info("pipeline started, listening for events")

	for {
		select {
		case <-ctx.Done():
			p.deps.Logger.Info("pipeline shutting down", "reason", ctx.Err())
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				p.deps.Logger.Info("event channel closed")
				return nil
			}
			p.handleEvent(ctx, evt)
		}
	}
}

func (p *Pipeline) handleEvent(ctx context.Context, evt pubsub.Event[*engine.Report]) {
	report := evt.Payload
	if report == nil {
		return
	}
	logger := p.deps.Logger.With("run_id", report.RunID, "event", string(evt.Type))

	switch evt.Type {
	case pubsub.ChangesFound:
	case pubsub.SyncFailed:
		logger.Warn("sync run failed", "stored", report.ProductsStored)
		return
	default:
		logger.Debug("sync run without changes")
		return
	}

	start := time.Now()
	out, err := p.Handle(ctx, report)
	if err != nil {
		logger.Error("post-sync pipeline failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Info("post-sync pipeline finished",
		"published", out.Artifact != nil,
		"notified", out.Notified,
		"duration", time.Since(start),
	)
}

// Handle publishes and announces report. Reports without changes are
// ignored. A publication failure is returned; a notification failure is only
// logged.
func (p *Pipeline) Handle(ctx context.Context, report *engine.Report) (*Outcome, error) {
	out := &Outcome{}
	if report == nil || !report.HasChanges() {
		return out, nil
	}
	logger := p.deps.Logger.With("run_id", report.RunID)

	if p.deps.Publisher != nil {
		if p.deps.Checkpoint != nil {
			if err := p.deps.Checkpoint(ctx); err != nil {
				return out, fmt.Errorf("flushing database before publish: %w", err)
			}
		}
		a, err := p.deps.Publisher.Publish(ctx, publish.Release{
			DBPath:    p.deps.DBPath,
			Changed:   report.Changed,
			CreatedAt: p.deps.Now(),
		})
		out.Artifact = a
		if err != nil {
			return out, fmt.Errorf("publishing release: %w", err)
		}
	}

	if p.deps.Notifier == nil {
		return out, nil
	}
	u := notify.Update{
		RunID:      report.RunID,
		Changed:    report.Changed,
		NewFiles:   len(report.NewFileIDs),
		TotalFiles: report.NewFileCount,
		FinishedAt: report.FinishedAt,
	}
	if out.Artifact != nil {
		u.ReleaseTag = out.Artifact.Tag
		if p.deps.ReleaseURL != nil {
			u.ReleaseURL = p.deps.ReleaseURL(u.ReleaseTag)
		}
	}
	if err := p.deps.Notifier.Notify(ctx, u); err != nil {
		logger.Error("notification failed", "error", err)
		return out, nil
	}
	out.Notified = true
	return out, nil
}
