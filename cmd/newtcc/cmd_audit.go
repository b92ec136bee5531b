package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcc/pkg/audit"
	"github.com/newtron-network/newtcc/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View audit logs of controller changes.

Every mutation, lock and verification made by an executed run is logged
with:
  - Timestamp
  - Run ID and user
  - Fabric site and resource
  - Controller task ID
  - Success/failure status

Events are read from audit_db when set, otherwise from audit_log.

Examples:
  newtcc audit list --site Global/USA/SAN-JOSE
  newtcc audit list --last 24h
  newtcc audit list --run 6f1c... --failures`,
}

var (
	auditRun      string
	auditSite     string
	auditUser     string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			RunID:       auditRun,
			Site:        auditSite,
			User:        auditUser,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			duration, err := parseLast(auditLast)
			if err != nil {
				return err
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "RUN", "USER", "SITE", "RESOURCE", "OPERATION", "TASK", "STATUS")
		for _, event := range events {
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				shortID(event.RunID),
				event.User,
				event.Site,
				event.Resource,
				event.Operation,
				event.TaskID,
				eventStatus(event),
			)
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditRun, "run", "", "Filter by run ID")
	auditListCmd.Flags().StringVar(&auditSite, "site", "", "Filter by fabric site")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 7d)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")
	auditListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print events as JSON")

	auditCmd.AddCommand(auditListCmd)
}

// parseLast accepts Go durations plus a whole-day suffix such as "7d".
func parseLast(s string) (time.Duration, error) {
	var days int
	if n, err := fmt.Sscanf(s, "%dd", &days); err == nil && n == 1 && fmt.Sprintf("%dd", days) == s {
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return d, nil
}

func eventStatus(e *audit.Event) string {
	switch {
	case e.DryRun:
		return yellow("dry-run")
	case !e.Success:
		return red("failed")
	}
	return green("ok")
}

// shortID trims a run ID to its first UUID group.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
