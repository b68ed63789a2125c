package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jacklau/mvsdump/internal/notify"
	"github.com/jacklau/mvsdump/internal/store"
)

var statusTop int

var statusCmd = &cobra.Command{
	Use:   "status [database]",
	Short: "Show catalog statistics",
	Long: `Display product and file counts for a catalog database, the products
with the most files, and the database size and age.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusTop, "top", 10, "number of largest products to list")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	path, err := dbPathArg(args, cfg)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("database %s: %w", path, err)
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	stats, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("querying stats: %w", err)
	}

	out := cmd.OutOrStdout()
	if stats.ProductCount == 0 {
		fmt.Fprintf(out, "No products stored in %s yet.\n", path)
		fmt.Fprintln(out, "Run 'mvsdump sync <database>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Products\t%d (%d named, largest id %d)\n", stats.ProductCount, stats.NamedProducts, stats.MaxProductID)
	fmt.Fprintf(w, "Files\t%d\n", stats.FileCount)
	fmt.Fprintf(w, "With SHA1\t%d\n", stats.ChecksummedCount)
	fmt.Fprintf(w, "Bootstrappers\t%d\n", stats.BootstrapperCount)
	w.Flush()

	if statusTop > 0 {
		top, err := db.TopProducts(ctx, statusTop)
		if err != nil {
			return fmt.Errorf("querying products: %w", err)
		}
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILES\tPRODUCT")
		fmt.Fprintln(w, "--\t-----\t-------")
		for _, p := range top {
			name := p.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(w, "%d\t%d\t%s\n", p.ID, p.FileCount, name)
		}
		w.Flush()
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Database: %s (%s, modified %s)\n", path, formatBytes(info.Size()), notify.TimeAgo(info.ModTime()))
	return nil
}

// formatBytes formats bytes into a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
