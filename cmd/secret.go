package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/secret"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage stored secrets",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Store a secret (email, password, cookie, github-key)",
	Long: `Store a secret in the configured backend. Without a value argument the
value is read from the first line of stdin, which keeps it out of the
shell history.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSecretSet,
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	rootCmd.AddCommand(secretCmd)
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	value, err := secretValue(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	secrets, closeSecrets, err := openSecrets(cfg)
	if err != nil {
		return err
	}
	defer closeSecrets()

	if err := secrets.Set(cmd.Context(), name, value); err != nil {
		return fmt.Errorf("storing secret %q: %w", name, err)
	}
	if !knownSecret(name) {
		fmt.Fprintf(cmd.OutOrStdout(), "[I] Stored %s (not a name mvsdump reads itself).\n", name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[I] Stored %s.\n", name)
	return nil
}

func secretValue(args []string, in io.Reader) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading value from stdin: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("empty secret value")
	}
	return value, nil
}

func knownSecret(name string) bool {
	switch name {
	case secret.Email, secret.Password, secret.Cookie, secret.GitHubKey:
		return true
	}
	return false
}
