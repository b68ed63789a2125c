package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/config"
	"github.com/jacklau/mvsdump/internal/credential"
	"github.com/jacklau/mvsdump/internal/engine"
	"github.com/jacklau/mvsdump/internal/mvs"
	"github.com/jacklau/mvsdump/internal/pipeline"
	"github.com/jacklau/mvsdump/internal/pubsub"
	"github.com/jacklau/mvsdump/internal/store"
)

var (
	syncPublish   bool
	syncNoPublish bool
	syncStrategy  string
	syncWorkers   int
	syncBatchSize int
	syncProgress  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <database> [count]",
	Short: "Fetch the catalog into the database and report new files",
	Long: `Fetch product ids 1..count (default 15000) into the database and list
the products that gained files. With --strategy discover, every stored
product is fetched again and ids past the largest one are probed until a
batch comes back empty.

With --publish, a gzip snapshot and changelog are published to the
configured targets when new files were found.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncPublish, "publish", false, "publish a release when new files are found")
	syncCmd.Flags().BoolVar(&syncNoPublish, "no-publish", false, "never publish (overrides --publish)")
	syncCmd.Flags().StringVar(&syncStrategy, "strategy", "", "id selection: range or discover (default from config)")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "concurrent batch requests (default from config)")
	syncCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "product ids per request (default from config)")
	syncCmd.Flags().BoolVar(&syncProgress, "progress", false, "show a progress bar on stderr")
	rootCmd.AddCommand(syncCmd)
}

// syncOptions merges config defaults, flags and the optional count argument.
func syncOptions(cfg *config.Config, args []string) (engine.Options, error) {
	opts := engine.Options{
		Strategy:  engine.Strategy(cfg.Sync.Strategy),
		Count:     cfg.Sync.Count,
		BatchSize: cfg.Sync.BatchSize,
		Workers:   cfg.Sync.Workers,
	}
	if syncStrategy != "" {
		opts.Strategy = engine.Strategy(syncStrategy)
	}
	if syncWorkers > 0 {
		opts.Workers = syncWorkers
	}
	if syncBatchSize > 0 {
		opts.BatchSize = syncBatchSize
	}
	if len(args) > 1 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid count %q: must be a non-negative integer", args[1])
		}
		opts.Count = n
	}

	switch opts.Strategy {
	case engine.StrategyRange, engine.StrategyDiscover:
	default:
		return opts, fmt.Errorf("invalid strategy %q: must be range or discover", opts.Strategy)
	}
	return opts, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	dbPath, err := dbPathArg(args, cfg)
	if err != nil {
		return err
	}
	opts, err := syncOptions(cfg, args)
	if err != nil {
		return err
	}
	publishing := syncPublish && !syncNoPublish

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

	if syncProgress && opts.Strategy == engine.StrategyRange {
		bar := newProgressBar(opts.Count, "Fetching", os.Stderr)
		opts.OnBatch = func(b engine.Batch) { bar.Advance(b.Last - b.First + 1) }
		defer bar.Finish()
	}

	report, err := syncWithRetry(ctx, session, db, opts, nil, logger)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	out := cmd.OutOrStdout()
	printReport(out, report)

	deps := pipeline.Deps{
		Notifier:   newNotifier(cfg, logger),
		DBPath:     dbPath,
		Checkpoint: db.Checkpoint,
		ReleaseURL: releaseURL(cfg),
		Logger:     logger,
	}
	if publishing && report.HasChanges() {
		publisher, err := newPublisher(ctx, cfg, secrets, logger)
		if err != nil {
			return err
		}
		if publisher == nil {
			return fmt.Errorf("--publish given but no publish target is configured")
		}
		deps.Publisher = publisher
	}

	result, err := pipeline.New(deps).Handle(ctx, report)
	if err != nil {
		return err
	}
	if result.Artifact != nil {
		fmt.Fprintf(out, "[I] Published release %s\n", result.Artifact.Tag)
	}
	return nil
}

// syncWithRetry runs the engine once and, when the session token expires
// mid-run, signs in again and reruns the whole sync. Both attempts diff
// against the file ids stored before the first one.
func syncWithRetry(ctx context.Context, session *credential.Session, st store.Store, opts engine.Options, broker *pubsub.Broker[*engine.Report], logger *slog.Logger) (*engine.Report, error) {
	if opts.Baseline == nil {
		baseline, err := st.FileIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshotting file ids: %w", err)
		}
		opts.Baseline = baseline
	}

	client, err := session.Client(ctx)
	if err != nil {
		return nil, err
	}
	report, err := engine.New(st, client, broker, logger).Run(ctx, opts)
	if !errors.Is(err, mvs.ErrCredentialExpired) {
		return report, err
	}

	logger.Warn("session token expired during sync, signing in again")
	client, err = session.Refresh(ctx)
	if err != nil {
		return report, err
	}
	return engine.New(st, client, broker, logger).Run(ctx, opts)
}

// printReport writes the run summary in the [I]/[S] line format.
func printReport(w io.Writer, report *engine.Report) {
	if !report.HasChanges() {
		fmt.Fprintln(w, "[I] Nothing changed.")
		return
	}
	fmt.Fprintln(w, "[I] Something new detected.")
	fmt.Fprintln(w, "[S] Changes found in products:")
	for _, p := range report.Changed {
		fmt.Fprintf(w, "[S] %5d %s\n", p.ID, p.Name)
	}
}
