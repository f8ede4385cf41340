package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mobilelessons/internal/cli"
	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/guard"
)

func checkCmd() *cobra.Command {
	var noAudit bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate every lesson and scan bodies for prompt injection",
		Long: `Build the full lesson index and report every malformed file, duplicate
slug, and lesson body the injection detector flags.

Exits non-zero when anything fails, so it can gate CI. Each run is appended
to the audit log in the data directory unless --no-audit is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, !noAudit)
		},
	}
	cmd.Flags().BoolVar(&noAudit, "no-audit", false, "Do not append to the audit log")
	return cmd
}

type checkReport struct {
	RunID    string          `json:"run_id"`
	Lessons  int             `json:"lessons"`
	Scanned  int             `json:"scanned"`
	Passed   bool            `json:"passed"`
	Errors   []string        `json:"errors,omitempty"`
	Findings []guard.Finding `json:"findings,omitempty"`
}

func runCheck(cmd *cobra.Command, audit bool) error {
	report := checkReport{RunID: guard.NewRunID(), Passed: true}

	ix, err := loadIndex()
	if err != nil {
		report.Passed = false
		report.Errors = splitErrors(err)
	} else {
		_, report.Lessons = ix.Count()
		g := guard.New(true, config.GuardThreshold())
		report.Scanned, report.Findings = g.Scan(context.Background(), ix)
		if len(report.Findings) > 0 {
			report.Passed = false
		}
	}

	if audit {
		entry := guard.AuditEntry{
			RunID:      report.RunID,
			Action:     "scan",
			Scanned:    report.Scanned,
			Passed:     report.Passed,
			Violations: len(report.Errors) + len(report.Findings),
			Findings:   report.Findings,
		}
		if err := guard.AppendAudit(config.DataDir(), entry); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: audit log: %v\n", err)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		printCheck(cmd, report)
	}
	if !report.Passed {
		return errCheckFailed
	}
	return nil
}

func printCheck(cmd *cobra.Command, r checkReport) {
	out := cmd.OutOrStdout()
	cli.Section(out, "Content")
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			cli.Check(out, false, e)
		}
		return
	}
	cli.Check(out, true, fmt.Sprintf("%s lessons parsed", cli.FormatNumber(r.Lessons)))

	cli.Section(out, "Injection scan")
	if len(r.Findings) == 0 {
		cli.Check(out, true, fmt.Sprintf("%s lesson bodies clean", cli.FormatNumber(r.Scanned)))
		return
	}
	for _, f := range r.Findings {
		cli.Check(out, false, fmt.Sprintf("%s/%s (%s) flagged", f.Platform, f.Slug, f.File))
	}
}

// splitErrors unpacks an errors.Join tree into one message per failure.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, splitErrors(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
