package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup for mvsdump configuration",
	Long:  `Creates a default configuration file with guided prompts.`,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// initAnswers holds the values gathered by runInit.
type initAnswers struct {
	Helper          string
	Owner, Repo     string
	SummaryProvider string
	SlackURL        string
	DiscordURL      string
}

func runInit(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		answer, _ := reader.ReadString('\n')
		return strings.TrimSpace(answer)
	}

	fmt.Fprintln(out, "Welcome to mvsdump setup!")
	fmt.Fprintln(out, "This will create a configuration file for you.")
	fmt.Fprintln(out)

	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Config file already exists at %s\n", configPath)
		answer := strings.ToLower(ask("Overwrite? [y/N]: "))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var a initAnswers
	a.Helper = ask("Credential helper command, e.g. 'node get_cookie.js' (or press Enter to skip): ")
	if repo := ask("GitHub release repository owner/repo (or press Enter to skip): "); repo != "" {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" {
			return fmt.Errorf("invalid repo format: expected owner/repo, got %q", repo)
		}
		a.Owner, a.Repo = owner, name
	}
	a.SummaryProvider = ask("Release summary provider (openai/anthropic/ollama, or press Enter to skip): ")
	a.SlackURL = ask("Slack webhook URL (or press Enter to skip): ")
	a.DiscordURL = ask("Discord webhook URL (or press Enter to skip): ")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(buildConfigYAML(a)), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", configPath)
	fmt.Fprintln(out, "Store your account with 'mvsdump secret set email' and 'mvsdump secret set password'.")
	return nil
}

func buildConfigYAML(a initAnswers) string {
	var b strings.Builder

	b.WriteString("# mvsdump configuration\n\n")

	b.WriteString("credentials:\n")
	if fields := strings.Fields(a.Helper); len(fields) > 0 {
		b.WriteString("  command: [")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", f)
		}
		b.WriteString("]\n")
	} else {
		b.WriteString("  # command: [\"node\", \"get_cookie.js\"]\n")
	}
	b.WriteString("  helper_timeout: 2m\n\n")

	b.WriteString("secrets:\n")
	b.WriteString("  backend: file\n")
	b.WriteString("  dir: ~/.mvsdump/secrets\n\n")

	b.WriteString("sync:\n")
	b.WriteString("  strategy: range\n")
	b.WriteString("  count: 15000\n")
	b.WriteString("  batch_size: 128\n")
	b.WriteString("  workers: 4\n")
	b.WriteString("  interval: 1h\n\n")

	b.WriteString("publish:\n")
	b.WriteString("  github:\n")
	if a.Owner != "" {
		fmt.Fprintf(&b, "    owner: %s\n", a.Owner)
		fmt.Fprintf(&b, "    repo: %s\n", a.Repo)
	} else {
		b.WriteString("    # owner: your-name\n")
		b.WriteString("    # repo: mvs-dump\n")
	}
	b.WriteString("    auth: token\n")
	b.WriteString("    token_secret: github-key\n")
	if a.SummaryProvider != "" {
		model, apiKey := summaryProviderDefaults(a.SummaryProvider)
		b.WriteString("  summary:\n")
		fmt.Fprintf(&b, "    type: %s\n", a.SummaryProvider)
		fmt.Fprintf(&b, "    model: %s\n", model)
		fmt.Fprintf(&b, "    api_key: %s\n", apiKey)
	}
	b.WriteString("\n")

	b.WriteString("notify:\n")
	if a.SlackURL != "" {
		fmt.Fprintf(&b, "  slack_webhook: %s\n", a.SlackURL)
	} else {
		b.WriteString("  # slack_webhook: https://hooks.slack.com/services/...\n")
	}
	if a.DiscordURL != "" {
		fmt.Fprintf(&b, "  discord_webhook: %s\n", a.DiscordURL)
	} else {
		b.WriteString("  # discord_webhook: https://discord.com/api/webhooks/...\n")
	}
	b.WriteString("\n")

	b.WriteString("store:\n")
	b.WriteString("  path: ~/.mvsdump/catalog.db\n")

	return b.String()
}

// summaryProviderDefaults returns the default model and api_key placeholder
// for the given summary provider type.
func summaryProviderDefaults(provider string) (model, apiKey string) {
	switch provider {
	case "anthropic":
		return "claude-3-5-haiku-latest", "${ANTHROPIC_API_KEY}"
	case "ollama":
		return "llama3.1:8b", "\"\""
	default: // openai
		return "gpt-4o-mini", "${OPENAI_API_KEY}"
	}
}
