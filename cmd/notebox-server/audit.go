package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/notebox/internal/audit"
)

var (
	auditUserID int
	auditAction string
	auditLevel  string
	auditSince  time.Duration
	auditLimit  int
	auditScan   bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit events",
	Long: `Show recent audit events from the database.

Examples:
  # Last 50 events
  notebox-server audit

  # Foreign profile lookups in the last hour
  notebox-server audit --action PROFILE_LOOKUP_FOREIGN --since 1h

  # Run the enumeration and failed-login checks once
  notebox-server audit --scan`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditUserID, "user-id", 0, "only events of this user")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "only events with this action")
	auditCmd.Flags().StringVar(&auditLevel, "level", "", "only events at this level (INFO, WARNING, ERROR, CRITICAL)")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only events newer than this")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum number of events")
	auditCmd.Flags().BoolVar(&auditScan, "scan", false, "run the suspicious activity checks before listing")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	auditLogger, err := audit.NewLogger(ctx, env.db, audit.Options{}, env.log)
	if err != nil {
		return err
	}
	defer auditLogger.Close()

	if auditScan {
		audit.NewMonitor(auditLogger, env.log).DetectSuspiciousActivity(ctx)
	}

	filters := audit.QueryFilters{
		Action: auditAction,
		Level:  audit.LogLevel(auditLevel),
		Limit:  auditLimit,
	}
	if auditUserID > 0 {
		filters.UserID = audit.UserRef(auditUserID)
	}
	if auditSince > 0 {
		start := time.Now().UTC().Add(-auditSince)
		filters.StartTime = &start
	}

	events, err := auditLogger.QueryLogs(ctx, filters)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLEVEL\tUSER\tACTION\tRESOURCE\tOK\tDETAIL")
	for _, e := range events {
		user := "-"
		if e.UserID != nil {
			user = fmt.Sprint(*e.UserID)
		}
		detail := e.ErrorMsg
		if detail == "" {
			detail = e.Metadata
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Level, user, e.Action, e.Resource, e.Success, detail)
	}
	return w.Flush()
}
