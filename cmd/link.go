package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linkProduct int64

var linkCmd = &cobra.Command{
	Use:   "link <file name>",
	Short: "Print a download URL for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLink,
}

func init() {
	linkCmd.Flags().Int64Var(&linkProduct, "product", 0, "product id sent with the request (default: a product every subscription can see)")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
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
	client, err := session.Client(ctx)
	if err != nil {
		return err
	}

	link, err := client.GetLink(ctx, args[0], linkProduct)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}
