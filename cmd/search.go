package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/store"
)

var (
	searchLimit  int
	searchHashes bool
)

var searchCmd = &cobra.Command{
	Use:   "search <database> <pattern>",
	Short: "Search stored files by name or description",
	Long: `Search file names and descriptions, case-insensitively. The pattern is
matched as a substring unless it contains a % wildcard.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "maximum results (0 for all)")
	searchCmd.Flags().BoolVar(&searchHashes, "hashes", false, "include SHA1 checksums")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	db, err := store.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	matches, err := db.SearchFiles(cmd.Context(), args[1], searchLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintf(out, "No files match %q.\n", args[1])
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "PRODUCT\tFILE ID\tLANG\tNAME"
	if searchHashes {
		header += "\tSHA1"
	}
	fmt.Fprintln(w, header)
	for _, m := range matches {
		line := fmt.Sprintf("%d\t%d\t%s\t%s", m.ProductID, m.FileID, m.LanguageCodes, m.Name)
		if searchHashes {
			line += "\t" + m.SHA1
		}
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}
