package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	MVS         MVSConfig         `yaml:"mvs"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Secrets     SecretsConfig     `yaml:"secrets"`
	Sync        SyncConfig        `yaml:"sync"`
	Publish     PublishConfig     `yaml:"publish"`
	Notify      NotifyConfig      `yaml:"notify"`
	Store       StoreConfig       `yaml:"store"`
}

// MVSConfig holds API client settings.
type MVSConfig struct {
	BaseURL           string  `yaml:"base_url"`
	RequestTimeoutRaw string  `yaml:"request_timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxAttempts       int     `yaml:"max_attempts"`
}

// CredentialsConfig configures the helper that turns an email and password
// into a session token.
type CredentialsConfig struct {
	Command          []string `yaml:"command"`
	HelperTimeoutRaw string   `yaml:"helper_timeout"`
}

// SecretsConfig selects where secrets are kept.
type SecretsConfig struct {
	Backend       string `yaml:"backend"`
	Dir           string `yaml:"dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// SyncConfig holds sync defaults; command-line flags override them.
type SyncConfig struct {
	Strategy    string `yaml:"strategy"`
	Count       int64  `yaml:"count"`
	BatchSize   int    `yaml:"batch_size"`
	Workers     int    `yaml:"workers"`
	IntervalRaw string `yaml:"interval"`
}

// PublishConfig groups the publication targets.
type PublishConfig struct {
	GitHub  GitHubConfig   `yaml:"github"`
	S3      S3Config       `yaml:"s3"`
	Summary ProviderConfig `yaml:"summary"`
}

// GitHubConfig holds the release repository and its authentication.
type GitHubConfig struct {
	Auth           string `yaml:"auth"`
	Owner          string `yaml:"owner"`
	Repo           string `yaml:"repo"`
	Target         string `yaml:"target"`
	TokenSecret    string `yaml:"token_secret"`
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	PrivateKey     string `yaml:"private_key"`
}

// Enabled reports whether a release repository is configured.
func (g GitHubConfig) Enabled() bool {
	return g.Owner != "" && g.Repo != ""
}

// S3Config holds the snapshot mirror bucket.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// Enabled reports whether a bucket is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// ProviderConfig holds settings for the release summary model.
type ProviderConfig struct {
	Type   string `yaml:"type"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
}

// NotifyConfig holds notification webhook URLs.
type NotifyConfig struct {
	SlackWebhook   string `yaml:"slack_webhook"`
	DiscordWebhook string `yaml:"discord_webhook"`
}

// StoreConfig holds storage settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RequestTimeout returns the parsed API request timeout.
func (m MVSConfig) RequestTimeout() (time.Duration, error) {
	if m.RequestTimeoutRaw == "" {
		return 2 * time.Minute, nil
	}
	return time.ParseDuration(m.RequestTimeoutRaw)
}

// HelperTimeout returns the parsed credential helper timeout.
func (c CredentialsConfig) HelperTimeout() (time.Duration, error) {
	if c.HelperTimeoutRaw == "" {
		return 2 * time.Minute, nil
	}
	return time.ParseDuration(c.HelperTimeoutRaw)
}

// Interval returns the parsed watch interval.
func (s SyncConfig) Interval() (time.Duration, error) {
	if s.IntervalRaw == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(s.IntervalRaw)
}

// envVarPattern matches ${VAR} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} placeholders with environment variable values.
// Returns an error if any referenced variable is not set.
func expandEnvVars(data []byte) ([]byte, error) {
	var missing []string

	result := envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		val, ok := os.LookupEnv(string(varName))
		if !ok {
			missing = append(missing, string(varName))
			return match
		}
		return []byte(val)
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DefaultDir is the per-user directory holding config and secrets.
func DefaultDir() string {
	return expandTilde("~/.mvsdump")
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a config file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. Any other error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse parses config from raw YAML bytes, expanding env vars and validating.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnvVars(data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MVS.BaseURL == "" {
		cfg.MVS.BaseURL = "https://my.visualstudio.com"
	}
	if cfg.MVS.RequestTimeoutRaw == "" {
		cfg.MVS.RequestTimeoutRaw = "2m"
	}
	if cfg.MVS.MaxAttempts == 0 {
		cfg.MVS.MaxAttempts = 3
	}
	if cfg.MVS.RequestsPerSecond > 0 && cfg.MVS.Burst == 0 {
		cfg.MVS.Burst = 1
	}
	if cfg.Credentials.HelperTimeoutRaw == "" {
		cfg.Credentials.HelperTimeoutRaw = "2m"
	}

	if cfg.Secrets.Backend == "" {
		cfg.Secrets.Backend = "file"
	}
	if cfg.Secrets.Dir == "" {
		cfg.Secrets.Dir = "~/.mvsdump/secrets"
	}
	cfg.Secrets.Dir = expandTilde(cfg.Secrets.Dir)
	if cfg.Secrets.RedisPrefix == "" {
		cfg.Secrets.RedisPrefix = "mvsdump:secret:"
	}

	if cfg.Sync.Strategy == "" {
		cfg.Sync.Strategy = "range"
	}
	if cfg.Sync.Count == 0 {
		cfg.Sync.Count = 15000
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 128
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.IntervalRaw == "" {
		cfg.Sync.IntervalRaw = "1h"
	}

	if cfg.Publish.GitHub.Auth == "" {
		cfg.Publish.GitHub.Auth = "token"
	}
	if cfg.Publish.GitHub.Target == "" {
		cfg.Publish.GitHub.Target = "master"
	}
	if cfg.Publish.GitHub.TokenSecret == "" {
		cfg.Publish.GitHub.TokenSecret = "github-key"
	}
	cfg.Publish.GitHub.PrivateKeyPath = expandTilde(cfg.Publish.GitHub.PrivateKeyPath)

	cfg.Store.Path = expandTilde(cfg.Store.Path)
}

func validate(cfg *Config) error {
	durations := map[string]string{
		"mvs.request_timeout":        cfg.MVS.RequestTimeoutRaw,
		"credentials.helper_timeout": cfg.Credentials.HelperTimeoutRaw,
		"sync.interval":              cfg.Sync.IntervalRaw,
	}
	for name, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, raw)
		}
	}

	if cfg.MVS.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %f", cfg.MVS.RequestsPerSecond)
	}
	if cfg.MVS.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MVS.MaxAttempts)
	}

	switch cfg.Secrets.Backend {
	case "file":
	case "redis":
		if cfg.Secrets.RedisAddr == "" {
			return fmt.Errorf("secrets.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported secrets backend: %s", cfg.Secrets.Backend)
	}

	switch cfg.Sync.Strategy {
	case "range", "discover":
	default:
		return fmt.Errorf("unsupported sync strategy: %s", cfg.Sync.Strategy)
	}
	if cfg.Sync.Count < 0 {
		return fmt.Errorf("sync.count must not be negative, got %d", cfg.Sync.Count)
	}
	if cfg.Sync.BatchSize < 0 || cfg.Sync.Workers < 0 {
		return fmt.Errorf("sync.batch_size and sync.workers must not be negative")
	}

	gh := cfg.Publish.GitHub
	if (gh.Owner == "") != (gh.Repo == "") {
		return fmt.Errorf("publish.github needs both owner and repo")
	}
	switch gh.Auth {
	case "token":
	case "app":
		if gh.Enabled() && (gh.AppID == 0 || gh.InstallationID == 0) {
			return fmt.Errorf("publish.github app auth needs app_id and installation_id")
		}
	default:
		return fmt.Errorf("unsupported github auth: %s", gh.Auth)
	}

	validSummaryTypes := map[string]bool{"openai": true, "ollama": true, "anthropic": true, "": true}
	if !validSummaryTypes[cfg.Publish.Summary.Type] {
		return fmt.Errorf("unsupported summary provider type: %s", cfg.Publish.Summary.Type)
	}

	return nil
}
