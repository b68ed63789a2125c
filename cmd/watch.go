package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/credential"
	"github.com/jacklau/mvsdump/internal/engine"
	"github.com/jacklau/mvsdump/internal/pipeline"
	"github.com/jacklau/mvsdump/internal/pubsub"
	"github.com/jacklau/mvsdump/internal/store"
)

var (
	watchInterval string
	watchPublish  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [database]",
	Short: "Sync periodically and publish changes",
	Long: `Run a sync every interval until interrupted. Runs that find new files
are handed to the post-sync pipeline, which publishes a release (with
--publish) and sends the configured notifications.

A failed run is logged and retried at the next tick.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchInterval, "interval", "", "time between syncs, e.g. 30m (default from config)")
	watchCmd.Flags().BoolVar(&watchPublish, "publish", false, "publish a release for every run with changes")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	dbPath, err := dbPathArg(args, cfg)
	if err != nil {
		return err
	}
	opts, err := syncOptions(cfg, nil)
	if err != nil {
		return err
	}

	interval, err := cfg.Sync.Interval()
	if err != nil {
		return fmt.Errorf("parsing sync.interval: %w", err)
	}
	if watchInterval != "" {
		interval, err = time.ParseDuration(watchInterval)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", watchInterval, err)
		}
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secrets, closeSecrets, err := openSecrets(cfg)
	if err != nil {
		return err
	}
	defer closeSecrets()

	session, err := newSession(cfg, secrets, logger)
	if err != nil {
		return err
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	broker := pubsub.NewBroker[*engine.Report]()
	deps := pipeline.Deps{
		Broker:     broker,
		Notifier:   newNotifier(cfg, logger),
		DBPath:     dbPath,
		Checkpoint: db.Checkpoint,
		ReleaseURL: releaseURL(cfg),
		Logger:     logger,
	}
	if watchPublish {
		publisher, err := newPublisher(ctx, cfg, secrets, logger)
		if err != nil {
			return err
		}
		if publisher == nil {
			return fmt.Errorf("--publish given but no publish target is configured")
		}
		deps.Publisher = publisher
	}
	p := pipeline.New(deps)

	// Subscribe before the first run so its report is not missed.
	events := broker.Subscribe(ctx)
	pipelineErr := make(chan error, 1)
	go func() {
		pipelineErr <- p.Consume(ctx, events)
	}()

	logger.Info("starting watch", "database", dbPath, "interval", interval.String(), "strategy", string(opts.Strategy))
	err = watchLoop(ctx, interval, func(ctx context.Context) {
		runWatchSync(ctx, session, db, opts, broker, logger)
	})

	stop()
	if perr := <-pipelineErr; perr != nil && !errors.Is(perr, context.Canceled) {
		return fmt.Errorf("pipeline error: %w", perr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("watch stopped")
	return nil
}

// watchLoop calls run immediately and then every interval until ctx is done.
func watchLoop(ctx context.Context, interval time.Duration, run func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func runWatchSync(ctx context.Context, session *credential.Session, st store.Store, opts engine.Options, broker *pubsub.Broker[*engine.Report], logger *slog.Logger) {
	report, err := syncWithRetry(ctx, session, st, opts, broker, logger)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("sync run failed", "error", err)
		}
		return
	}
	logger.Info("sync run complete", "run_id", report.RunID, "new_files", len(report.NewFileIDs))
}
