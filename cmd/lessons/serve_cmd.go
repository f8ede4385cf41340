package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/guard"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/indexer"
	"github.com/sgx-labs/mobilelessons/internal/logging"
	mcpserver "github.com/sgx-labs/mobilelessons/internal/mcp"
	"github.com/sgx-labs/mobilelessons/internal/store"
	"github.com/sgx-labs/mobilelessons/internal/watcher"
	"github.com/sgx-labs/mobilelessons/internal/web"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func watchCmd() *cobra.Command {
	var reindex bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the content tree and rebuild on changes",
		Long: `Monitor the content tree for lesson file changes. Each burst of edits is
debounced, then the index is rebuilt and any errors are reported. With
--reindex the SQLite search index is refreshed after each good build.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			root, err := config.RequireContentRoot()
			if err != nil {
				return err
			}
			var db *store.DB
			if reindex {
				if db, err = store.Open(); err != nil {
					return config.ErrNoDatabase
				}
				defer db.Close()
			}

			ctx, stop := signalContext()
			defer stop()
			return watcher.Watch(ctx, watcher.Options{
				Root:     root,
				BasePath: config.BasePath(),
				Debounce: config.WatchDebounce(),
				Logger:   log,
				OnRebuild: func(ix *index.Index) {
					syncSearchIndex(db, ix, log)
				},
				OnError: func(err error) {
					for _, msg := range splitErrors(err) {
						fmt.Fprintf(os.Stderr, "  %s\n", msg)
					}
				},
			})
		},
	}
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Refresh the search index after each rebuild")
	return cmd
}

// syncSearchIndex writes ix into db when a database is open.
func syncSearchIndex(db *store.DB, ix *index.Index, log *logging.Logger) {
	if db == nil {
		return
	}
	stats, err := indexer.Reindex(db, ix, false)
	if err != nil {
		log.Error("search index update failed", "error", err)
		return
	}
	log.Info("search index updated", "updated", stats.NewlyIndexed, "unchanged", stats.SkippedUnchanged)
}

func webCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the lesson API on localhost",
		Long: `Start a local read-only JSON API over the lesson index.

The server only binds loopback addresses and rejects non-local Host headers.
Prometheus metrics are served at /metrics.

Examples:
  lessons web                         # Listen on 127.0.0.1:4078
  lessons web --addr 127.0.0.1:8080   # Custom address
  lessons web --watch                 # Rebuild when lessons change`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = config.WebAddr()
			}
			return runWeb(addr, watch)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild the index when lesson files change")
	return cmd
}

func runWeb(addr string, watch bool) error {
	if err := web.CheckLoopback(addr); err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	m := newMetrics()
	ix, err := loadIndexObserved(m)
	if err != nil {
		return err
	}

	// the search index is optional; memory search covers its absence
	var db *store.DB
	if _, statErr := os.Stat(config.DBPath()); statErr == nil {
		if db, err = store.Open(); err != nil {
			log.Warn("search database unavailable, using in-memory search", "error", err)
			db = nil
		} else {
			defer db.Close()
		}
	}

	srv := web.New(ix, web.Options{
		Version: Version,
		DB:      db,
		Metrics: m,
		Logger:  log,
	})

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx, addr) })
	if watch {
		root := config.ContentRoot()
		g.Go(func() error {
			return watcher.Watch(ctx, watcher.Options{
				Root:     root,
				BasePath: config.BasePath(),
				Debounce: config.WatchDebounce(),
				Logger:   log,
				Metrics:  m,
				OnRebuild: func(ix *index.Index) {
					srv.SetIndex(ix)
					syncSearchIndex(db, ix, log)
				},
			})
		})
	}
	return g.Wait()
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the AI tool integration server (MCP) on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}
}

func runMCP() error {
	// stdout carries the protocol; logs go to stderr
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	root, err := config.RequireContentRoot()
	if err != nil {
		return err
	}
	m := newMetrics()
	ix, err := loadIndexObserved(m)
	if err != nil {
		return err
	}

	db, err := store.Open()
	if err != nil {
		log.Warn("search database unavailable, using in-memory search", "error", err)
		db = nil
	} else {
		defer db.Close()
		if _, err := indexer.Reindex(db, ix, false); err != nil {
			log.Warn("search index refresh failed", "error", err)
		}
	}

	g := guard.New(config.GuardEnabled(), config.GuardThreshold())
	runID := guard.NewRunID()
	if g.Enabled() {
		scanned, findings := g.Scan(context.Background(), ix)
		entry := guard.AuditEntry{
			RunID:      runID,
			Action:     "filter",
			Scanned:    scanned,
			Passed:     len(findings) == 0,
			Violations: len(findings),
			Findings:   findings,
		}
		if err := guard.AppendAudit(config.DataDir(), entry); err != nil {
			log.Warn("audit log write failed", "error", err)
		}
		if len(findings) > 0 {
			log.Warn("lesson bodies will be withheld from agents", "count", len(findings), "run_id", runID)
		}
	}

	srv := mcpserver.New(ix, mcpserver.Options{
		Version:     Version,
		ContentRoot: root,
		BasePath:    config.BasePath(),
		DB:          db,
		Guard:       g,
		Metrics:     m,
		Logger:      log.With("run_id", runID),
	})

	ctx, stop := signalContext()
	defer stop()
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
