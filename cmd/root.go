package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/config"
	"github.com/jacklau/mvsdump/internal/credential"
	"github.com/jacklau/mvsdump/internal/mvs"
	"github.com/jacklau/mvsdump/internal/notify"
	"github.com/jacklau/mvsdump/internal/provider"
	"github.com/jacklau/mvsdump/internal/publish"
	"github.com/jacklau/mvsdump/internal/secret"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mvsdump",
	Short: "Mirror the Visual Studio Subscriptions download catalog",
	Long: `mvsdump fetches the file listings of every Visual Studio Subscriptions
product into a local SQLite database, reports the files that appeared since
the last run, and can publish a compressed snapshot with a changelog.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default %s)", config.DefaultPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// loadConfig reads --config, or the default file when present. The CLI works
// without any config file.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadOrDefault(config.DefaultPath())
}

// openSecrets returns the configured secret store and a function releasing it.
func openSecrets(cfg *config.Config) (secret.Store, func(), error) {
	switch cfg.Secrets.Backend {
	case "redis":
		s := secret.NewRedisStore(cfg.Secrets.RedisAddr, cfg.Secrets.RedisPassword, cfg.Secrets.RedisDB, cfg.Secrets.RedisPrefix)
		return s, func() { s.Close() }, nil
	case "file", "":
		return secret.NewFileStore(cfg.Secrets.Dir), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported secrets backend %q", cfg.Secrets.Backend)
	}
}

// clientOptions maps the mvs config section to client options.
func clientOptions(cfg *config.Config, logger *slog.Logger) ([]mvs.Option, error) {
	timeout, err := cfg.MVS.RequestTimeout()
	if err != nil {
		return nil, fmt.Errorf("parsing request_timeout: %w", err)
	}
	opts := []mvs.Option{
		mvs.WithBaseURL(cfg.MVS.BaseURL),
		mvs.WithHTTPClient(&http.Client{Timeout: timeout}),
		mvs.WithMaxAttempts(cfg.MVS.MaxAttempts),
		mvs.WithLogger(logger),
	}
	if cfg.MVS.RequestsPerSecond > 0 {
		opts = append(opts, mvs.WithRateLimit(cfg.MVS.RequestsPerSecond, cfg.MVS.Burst))
	}
	return opts, nil
}

// newSession builds the credential session. Without a helper command a
// session can only use the cached token.
func newSession(cfg *config.Config, secrets secret.Store, logger *slog.Logger) (*credential.Session, error) {
	opts, err := clientOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	var p credential.Provider
	if len(cfg.Credentials.Command) > 0 {
		timeout, err := cfg.Credentials.HelperTimeout()
		if err != nil {
			return nil, fmt.Errorf("parsing helper_timeout: %w", err)
		}
		p = credential.NewCommandProvider(cfg.Credentials.Command, timeout)
	}
	return credential.NewSession(secrets, p, logger, opts...), nil
}

// newPublisher builds a Publisher with a sink per configured target. It
// returns nil when no target is configured.
func newPublisher(ctx context.Context, cfg *config.Config, secrets secret.Store, logger *slog.Logger) (*publish.Publisher, error) {
	var sinks []publish.Sink

	if gh := cfg.Publish.GitHub; gh.Enabled() {
		auth := publish.GitHubAuth{
			AppID:          gh.AppID,
			InstallationID: gh.InstallationID,
			PrivateKey:     []byte(gh.PrivateKey),
			PrivateKeyPath: gh.PrivateKeyPath,
		}
		if gh.Auth == "token" {
			token, err := secrets.Get(ctx, gh.TokenSecret)
			if err != nil {
				return nil, fmt.Errorf("reading github token secret %q: %w", gh.TokenSecret, err)
			}
			auth.Token = token
		}
		client, err := publish.NewGitHubClient(auth)
		if err != nil {
			return nil, fmt.Errorf("creating GitHub client: %w", err)
		}
		sinks = append(sinks, publish.NewGitHubSink(client, gh.Owner, gh.Repo, gh.Target))
	}

	if s3 := cfg.Publish.S3; s3.Enabled() {
		sink, err := publish.NewS3Sink(ctx, publish.S3Config{
			Bucket:   s3.Bucket,
			Region:   s3.Region,
			Endpoint: s3.Endpoint,
			Prefix:   s3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("creating S3 sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		return nil, nil
	}

	var summarizer *publish.Summarizer
	if sc := cfg.Publish.Summary; sc.Type != "" {
		completer, err := provider.NewCompleter(provider.CompleterConfig{
			Type:   sc.Type,
			Model:  sc.Model,
			APIKey: sc.APIKey,
			URL:    sc.URL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating summary provider: %w", err)
		}
		summarizer = publish.NewSummarizer(completer, logger)
	}
	return publish.NewPublisher(summarizer, logger, sinks...), nil
}

// newNotifier returns the configured notifiers, or nil when there are none.
func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	n := notify.FromWebhooks(cfg.Notify.SlackWebhook, cfg.Notify.DiscordWebhook, logger)
	if n.Len() == 0 {
		return nil
	}
	return n
}

// releaseURL links a tag to its GitHub release page, when releases go to GitHub.
func releaseURL(cfg *config.Config) func(string) string {
	gh := cfg.Publish.GitHub
	if !gh.Enabled() {
		return nil
	}
	return func(tag string) string {
		return fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", gh.Owner, gh.Repo, tag)
	}
}

// dbPathArg returns the database named on the command line, falling back to
// store.path from the config.
func dbPathArg(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Store.Path != "" {
		return cfg.Store.Path, nil
	}
	return "", fmt.Errorf("no database given: pass a path or set store.path in the config")
}
