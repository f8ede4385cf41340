package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mobilelessons/internal/cli"
	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/store"
)

var platformArgs = []string{"ios", "android", "flutter"}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list <platform>",
		Short:     "List a platform's lessons in curriculum order",
		Args:      cobra.ExactArgs(1),
		ValidArgs: platformArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := content.ParsePlatform(args[0])
			if err != nil {
				return err
			}
			ix, err := loadIndex()
			if err != nil {
				return err
			}
			lessons, err := ix.Lessons(p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, lessonSummaries(lessons))
			}
			if len(lessons) == 0 {
				fmt.Fprintf(out, "No %s lessons yet.\n", p.Title())
				return nil
			}
			cli.Section(out, p.Title())
			for i, l := range lessons {
				fmt.Fprintf(out, "  %s%2d.%s %s%s%s  %s%s%s\n",
					cli.Dim, i+1, cli.Reset, cli.Bold, l.Title, cli.Reset, cli.Dim, l.Slug, cli.Reset)
				fmt.Fprintf(out, "      %s\n", l.Description)
			}
			return nil
		},
	}
}

type lessonSummary struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

func lessonSummaries(lessons []content.Lesson) []lessonSummary {
	out := make([]lessonSummary, len(lessons))
	for i, l := range lessons {
		out[i] = lessonSummary{Slug: l.Slug, Title: l.Title, Description: l.Description, Order: l.Order}
	}
	return out
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <platform> <slug>",
		Short:             "Print one lesson",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeLessonArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, p, err := indexForPlatform(args[0])
			if err != nil {
				return err
			}
			l, ok := ix.Lesson(p, args[1])
			if !ok {
				return fmt.Errorf("lesson %s/%s not found (see 'lessons list %s')", p, args[1], p)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, l)
			}
			fmt.Fprintf(out, "%s%s%s\n%s%s%s\n\n", cli.Bold, l.Title, cli.Reset, cli.Dim, l.Description, cli.Reset)
			fmt.Fprint(out, l.Body)
			if !strings.HasSuffix(l.Body, "\n") {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func navCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "nav <platform> <slug>",
		Short:             "Show the previous and next lesson",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeLessonArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, p, err := indexForPlatform(args[0])
			if err != nil {
				return err
			}
			if _, ok := ix.Lesson(p, args[1]); !ok {
				return fmt.Errorf("lesson %s/%s not found", p, args[1])
			}
			nav := ix.Navigation(p, args[1])

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, nav)
			}
			fmt.Fprintf(out, "previous: %s\n", navLabel(nav.Previous))
			fmt.Fprintf(out, "next:     %s\n", navLabel(nav.Next))
			return nil
		},
	}
}

func navLabel(l *content.Lesson) string {
	if l == nil {
		return "(none)"
	}
	return fmt.Sprintf("%s (%s)", l.Title, l.Slug)
}

func sidebarCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sidebar [platform]",
		Short:     "Print sidebar navigation for one or all platforms",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: platformArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := loadIndex()
			if err != nil {
				return err
			}
			var entries []index.SidebarEntry
			if len(args) == 1 {
				p, err := content.ParsePlatform(args[0])
				if err != nil {
					return err
				}
				if entries, err = ix.Sidebar(p); err != nil {
					return err
				}
			} else {
				entries = ix.SidebarTree()
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, entries)
			}
			printSidebar(out, entries, 0)
			return nil
		},
	}
}

func printSidebar(out io.Writer, entries []index.SidebarEntry, depth int) {
	indent := strings.Repeat("  ", depth+1)
	for _, e := range entries {
		fmt.Fprintf(out, "%s%s %s%s%s\n", indent, e.Label, cli.Dim, e.Href, cli.Reset)
		printSidebar(out, e.Children, depth+1)
	}
}

func searchCmd() *cobra.Command {
	var (
		platform string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search lesson titles and descriptions",
		Long: `Search lesson titles and descriptions across platforms.

Uses the SQLite search index when 'lessons reindex' has been run,
otherwise searches the content tree directly.

Examples:
  lessons search "state management"
  lessons search navigation --platform flutter`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			var p content.Platform
			if platform != "" {
				parsed, err := content.ParsePlatform(platform)
				if err != nil {
					return err
				}
				p = parsed
			}
			if limit <= 0 || limit > config.MaxSearchResults {
				limit = config.DefaultSearchLimit
			}
			results, err := runSearch(query, p, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No lessons matched.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(out, "  %s%-8s%s %s%s%s  %s%s/%s%s\n",
					cli.Cyan, r.Platform.Title(), cli.Reset, cli.Bold, r.Title, cli.Reset, cli.Dim, r.Platform, r.Slug, cli.Reset)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "Restrict results to one platform")
	cmd.Flags().IntVar(&limit, "limit", config.DefaultSearchLimit, "Maximum results")
	_ = cmd.RegisterFlagCompletionFunc("platform", completePlatformFlag)
	return cmd
}

// runSearch prefers the persisted keyword index and falls back to an
// in-memory match over a fresh build.
func runSearch(query string, p content.Platform, limit int) ([]index.SearchableLesson, error) {
	if _, err := os.Stat(config.DBPath()); err == nil {
		db, err := store.Open()
		if err != nil {
			return nil, config.ErrNoDatabase
		}
		defer db.Close()
		if n, _ := db.LessonCount(); n > 0 {
			rows, err := db.KeywordSearch(index.ExtractSearchTerms(query), string(p), limit)
			if err != nil {
				return nil, fmt.Errorf("search: %w", err)
			}
			out := make([]index.SearchableLesson, len(rows))
			for i, r := range rows {
				out[i] = index.SearchableLesson{
					Title:       r.Title,
					Description: r.Description,
					Platform:    content.Platform(r.Platform),
					Slug:        r.Slug,
				}
			}
			return out, nil
		}
	}

	ix, err := loadIndex()
	if err != nil {
		return nil, err
	}
	var items []index.SearchableLesson
	for _, it := range ix.Searchable() {
		if p == "" || it.Platform == p {
			items = append(items, it)
		}
	}
	return index.Match(items, query, limit), nil
}

func indexForPlatform(arg string) (*index.Index, content.Platform, error) {
	p, err := content.ParsePlatform(arg)
	if err != nil {
		return nil, "", err
	}
	ix, err := loadIndex()
	if err != nil {
		return nil, "", err
	}
	return ix, p, nil
}
