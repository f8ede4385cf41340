package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mobilelessons/internal/cli"
	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/indexer"
	"github.com/sgx-labs/mobilelessons/internal/store"
)

func reindexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the SQLite search index from the content tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rewrite every platform regardless of changes")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many lessons are indexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd)
		},
	}
}

func runReindex(cmd *cobra.Command, force bool) error {
	ix, err := loadIndex()
	if err != nil {
		return err
	}
	db, err := store.Open()
	if err != nil {
		return config.ErrNoDatabase
	}
	defer db.Close()

	progress := func(current, total int, p content.Platform) {
		if !jsonOut {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s\n", current, total, p.Title())
		}
	}
	stats, err := indexer.ReindexWithProgress(db, ix, force, progress)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, stats)
	}
	fmt.Fprintf(out, "Indexed %s lessons (%d updated, %d unchanged).\n",
		cli.FormatNumber(stats.LessonsInIndex), stats.NewlyIndexed, stats.SkippedUnchanged)
	return nil
}

func runStats(cmd *cobra.Command) error {
	db, err := store.Open()
	if err != nil {
		return config.ErrNoDatabase
	}
	defer db.Close()

	stats := indexer.GetStats(db)
	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, stats)
	}

	cli.Header(out, "Lesson index")
	fmt.Fprintln(out)
	cli.Row(out, "content", cli.ShortenHome(config.ContentRoot()), 10)
	cli.Row(out, "database", cli.ShortenHome(config.DBPath()), 10)
	counts, err := db.CountsByPlatform()
	if err != nil {
		return fmt.Errorf("count lessons: %w", err)
	}
	total := 0
	for _, p := range content.Platforms() {
		cli.Row(out, p.Title(), cli.FormatNumber(counts[string(p)]), 10)
		total += counts[string(p)]
	}
	cli.Row(out, "total", cli.FormatNumber(total), 10)
	if ts, ok := stats["last_reindex"].(string); ok {
		cli.Row(out, "reindexed", ts, 10)
	}
	return nil
}
