// Newtcc - Catalyst Center SDA Fabric Device Reconciler
//
// Reads a playbook of fabric_devices blocks and reconciles each fabric
// site's devices and their layer 2, SDA transit and IP transit handoffs
// against the controller:
//   - Dry-run by default (preview the plan, require -x to execute)
//   - Per-site run lock in Redis when redis_addr is set
//   - Audit logging of every controller mutation
//
// Examples:
//
//	newtcc validate -f fabric.yaml                    # Offline checks only
//	newtcc apply -f fabric.yaml                       # Preview the plan
//	newtcc apply -f fabric.yaml -x                    # Execute
//	newtcc apply -f fabric.yaml -x --state absent     # Remove listed handoffs/devices
//	newtcc audit list --site Global/USA/SAN-JOSE --last 24h
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/newtcc/pkg/audit"
	"github.com/newtron-network/newtcc/pkg/cli"
	"github.com/newtron-network/newtcc/pkg/engine"
	"github.com/newtron-network/newtcc/pkg/sda/fabricdevices"
	"github.com/newtron-network/newtcc/pkg/settings"
	"github.com/newtron-network/newtcc/pkg/util"
	"github.com/newtron-network/newtcc/pkg/version"
)

var (
	// Global option flags
	verbose    bool
	jsonOutput bool
	logJSON    bool
	noColor    bool

	// Global state
	userSettings *settings.Settings
	auditLogger  audit.Logger
)

func main() {
	err := rootCmd.Execute()
	if auditLogger != nil {
		auditLogger.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "newtcc",
	Short:             "Catalyst Center SDA fabric device reconciler",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Newtcc reconciles SDA fabric devices and their handoffs on Catalyst Center.

A playbook lists the desired devices per fabric site. apply previews the
changes by default; use -x to execute.

  newtcc apply -f <playbook> [-x]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if logJSON {
			util.SetJSONFormat()
		}
		if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
			cli.SetColor(false)
		}

		auditLogger = openAudit(userSettings)
		if auditLogger != nil {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "fabric", Title: "Fabric Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{applyCmd, validateCmd} {
		cmd.GroupID = "fabric"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("newtcc")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (set version info with -ldflags, see pkg/version)\n", tool)
	} else {
		fmt.Printf("%s %s\n", tool, version.Info())
	}
}

// modules returns every resource family newtcc reconciles.
func modules() []engine.Module {
	return []engine.Module{fabricdevices.New()}
}

// openAudit opens the JSON-lines audit file and, when audit_db is set, the
// SQLite store beside it. Failures only warn: a run is never refused for
// want of an audit trail.
func openAudit(s *settings.Settings) audit.Logger {
	var loggers audit.MultiLogger

	fileLogger, err := audit.NewFileLogger(s.GetAuditLog(), audit.RotationConfig{
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxBackups: 10,
	})
	if err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
	} else {
		loggers = append(loggers, fileLogger)
	}

	if s.AuditDB != "" {
		dbLogger, err := audit.NewSQLiteLogger(s.AuditDB)
		if err != nil {
			util.Warnf("Could not open audit database: %v", err)
		} else {
			// The database answers queries when present
			loggers = append(audit.MultiLogger{dbLogger}, loggers...)
		}
	}

	switch len(loggers) {
	case 0:
		return nil
	case 1:
		return loggers[0]
	}
	return loggers
}

// isSettingsOrHelp returns true for commands that need no audit or log setup.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "help", "version", "completion":
			return true
		}
	}
	return false
}

func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
