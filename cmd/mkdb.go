package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/store"
)

var mkdbCmd = &cobra.Command{
	Use:   "mkdb <database>",
	Short: "Create an empty catalog database",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdb,
}

func init() {
	rootCmd.AddCommand(mkdbCmd)
}

func runMkdb(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[I] Created %s\n", path)
	return nil
}
