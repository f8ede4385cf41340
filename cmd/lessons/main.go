// Package main is the entrypoint for the lessons CLI.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/indexer"
	"github.com/sgx-labs/mobilelessons/internal/logging"
	"github.com/sgx-labs/mobilelessons/internal/metrics"
)

// Version is set at build time via ldflags.
var Version = "dev"

// jsonOut is set by the global --json flag.
var jsonOut bool

// errCheckFailed signals a failed check without printing it twice; the
// command has already reported the details.
var errCheckFailed = errors.New("check failed")

func main() {
	indexer.Version = Version
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lessons",
		Short: "Mobile development lesson index",
		Long:  "lessons: browse, search, and serve the iOS, Android, and Flutter lesson tree.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(listCmd())
	root.AddCommand(showCmd())
	root.AddCommand(navCmd())
	root.AddCommand(sidebarCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(reindexCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(webCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(initCmd())
	root.AddCommand(configCmd())
	root.AddCommand(setupCmd())
	root.AddCommand(completionCmd())
	root.AddCommand(versionCmd())

	// Global flags
	root.PersistentFlags().StringVar(&config.ContentOverride, "content", "", "Content root (overrides config and LESSONS_CONTENT_ROOT)")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "Machine-readable JSON output")

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the lessons version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version":    Version,
					"go_version": runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lessons %s\n", Version)
			return nil
		},
	}
}

// loadIndex builds the index from the configured content root.
func loadIndex() (*index.Index, error) {
	root, err := config.RequireContentRoot()
	if err != nil {
		return nil, err
	}
	return index.Load(root, index.WithBasePath(config.BasePath()))
}

// loadIndexObserved is loadIndex for long-running commands: the build is
// recorded in m.
func loadIndexObserved(m *metrics.Metrics) (*index.Index, error) {
	start := time.Now()
	ix, err := loadIndex()
	if err != nil {
		m.ObserveIndex(nil, time.Since(start).Seconds(), err)
		return nil, err
	}
	counts, _ := ix.Count()
	m.ObserveIndex(counts, time.Since(start).Seconds(), nil)
	return ix, nil
}

func newLogger() (*logging.Logger, error) {
	return logging.New(config.LogMode())
}

func newMetrics() *metrics.Metrics {
	return metrics.New(Version, runtime.Version())
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
