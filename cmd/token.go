package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/mvs"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign in and cache a fresh session token",
	Long: `Run the configured credential helper with the stored email and password
secrets and store the resulting token as the cookie secret.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	secrets, closeSecrets, err := openSecrets(cfg)
	if err != nil {
		return err
	}
	defer closeSecrets()

	session, err := newSession(cfg, secrets, logger)
	if err != nil {
		return err
	}
	token, err := session.Token(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	exp, err := mvs.TokenExpiry(token)
	if err != nil {
		fmt.Fprintln(out, "[I] Token cached (expiry unknown).")
		return nil
	}
	fmt.Fprintf(out, "[I] Token cached, valid until %s.\n", exp.Local().Format(time.RFC1123))
	return nil
}
