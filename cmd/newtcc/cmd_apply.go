package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/cli"
	"github.com/newtron-network/newtcc/pkg/engine"
	"github.com/newtron-network/newtcc/pkg/lock"
	"github.com/newtron-network/newtcc/pkg/playbook"
	"github.com/newtron-network/newtcc/pkg/settings"
	"github.com/newtron-network/newtcc/pkg/util"
)

var (
	playbookFile string
	executeMode  bool
	hostFlag     string
	userFlag     string
	stateFlag    string
	verifyFlag   bool
	timeoutFlag  time.Duration
	pollFlag     time.Duration
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile a playbook against the controller",
	Long: `Reconcile every block of a playbook against Catalyst Center.

Without -x the run observes the controller and prints the planned changes.
With -x the plan is executed: devices are added or updated in batches
before their handoffs; under state absent the listed handoffs are removed
first, and a device is removed only when no handoffs are listed for it.

The controller password is taken from the playbook, then $NEWTCC_PASSWORD,
then prompted for when stdin is a terminal.

Examples:
  newtcc apply -f fabric.yaml
  newtcc apply -f fabric.yaml -x --verify-config
  newtcc apply -f fabric.yaml -x --state absent`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runApply(ctx, cmd.OutOrStdout())
	},
}

func init() {
	applyCmd.Flags().StringVarP(&playbookFile, "file", "f", "", "Playbook file (required)")
	applyCmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
	applyCmd.Flags().StringVar(&hostFlag, "host", "", "Controller host (overrides the playbook)")
	applyCmd.Flags().StringVar(&userFlag, "username", "", "Controller user (overrides the playbook)")
	applyCmd.Flags().StringVar(&stateFlag, "state", "", "present or absent (overrides the playbook)")
	applyCmd.Flags().BoolVar(&verifyFlag, "verify-config", false, "Re-read the controller after applying and compare")
	applyCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Task and pagination timeout (overrides api_task_timeout)")
	applyCmd.Flags().DurationVar(&pollFlag, "poll-interval", 0, "Task poll interval (overrides task_poll_interval)")
	applyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run result as JSON")
	applyCmd.MarkFlagRequired("file")
}

func runApply(ctx context.Context, out io.Writer) error {
	doc, err := playbook.Load(playbookFile, engine.Schemas(modules()))
	if err != nil {
		return err
	}
	env := doc.Envelope
	if err := applyOverrides(&env, userSettings); err != nil {
		return err
	}

	closeLog, err := configureLogging(env)
	if err != nil {
		return err
	}
	if closeLog != nil {
		defer closeLog.Close()
	}

	env.Password, err = controllerPassword(env.Password)
	if err != nil {
		return err
	}

	cfg := catalyst.Config{
		Host:      env.Host,
		Port:      env.Port,
		Username:  env.Username,
		Password:  env.Password,
		Verify:    env.Verify,
		Debug:     env.Debug,
		RateLimit: userSettings.RateLimit,
	}
	dialer, err := jumpDialer(userSettings)
	if err != nil {
		return err
	}
	if dialer != nil {
		defer dialer.Close()
		cfg.Dialer = dialer
	}

	client, err := catalyst.NewHTTPClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	opts := runOptions(env)
	if userSettings.RedisAddr != "" {
		locker := lock.NewRedisLocker(userSettings.RedisAddr, 0, time.Duration(userSettings.GetLockTTL())*time.Minute)
		defer locker.Close()
		if err := locker.Ping(ctx); err != nil {
			return fmt.Errorf("connecting to lock store %s: %w", userSettings.RedisAddr, err)
		}
		opts.Locker = locker
	}

	log := util.WithRun(opts.RunID).WithField("host", env.Host)
	log.WithField("execute", executeMode).WithField("blocks", len(doc.Blocks)).Info("starting run")

	res, runErr := engine.Run(ctx, engine.NewRunContext(client, opts), modules(), doc.Blocks)

	if jsonOutput {
		if err := cli.RenderJSON(out, res); err != nil {
			return err
		}
	} else {
		cli.RenderRun(out, res)
	}

	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	if res.Failed {
		return fmt.Errorf("run %s failed", res.RunID)
	}
	return nil
}

// applyOverrides layers command-line flags and stored settings over the
// playbook envelope. Flags win over the playbook, which wins over settings.
func applyOverrides(env *playbook.Envelope, s *settings.Settings) error {
	if hostFlag != "" {
		env.Host = hostFlag
	}
	if env.Host == "" {
		env.Host = s.DefaultHost
	}
	if userFlag != "" {
		env.Username = userFlag
	}
	if env.Username == "" {
		env.Username = s.DefaultUsername
	}
	if env.Host == "" {
		return fmt.Errorf("controller host required: set host in the playbook, use --host, or 'newtcc settings set default_host <host>'")
	}
	if env.Username == "" {
		return fmt.Errorf("controller username required: set username in the playbook or use --username")
	}

	switch stateFlag {
	case "":
	case playbook.StatePresent, playbook.StateAbsent:
		env.State = stateFlag
	default:
		return fmt.Errorf("--state must be %s or %s, got %q", playbook.StatePresent, playbook.StateAbsent, stateFlag)
	}
	if verifyFlag {
		env.ConfigVerify = true
	}
	if timeoutFlag > 0 && timeoutFlag < time.Second {
		return fmt.Errorf("--timeout must be at least 1s, got %s", timeoutFlag)
	}
	if pollFlag > 0 && pollFlag < time.Second {
		return fmt.Errorf("--poll-interval must be at least 1s, got %s", pollFlag)
	}
	if timeoutFlag > 0 {
		env.APITaskTimeout = int(timeoutFlag / time.Second)
	}
	if pollFlag > 0 {
		env.TaskPollInterval = int(pollFlag / time.Second)
	}
	return nil
}

// configureLogging honours the playbook's debug and log settings unless -v
// already raised the level. The returned closer is nil when logs stay on
// stderr.
func configureLogging(env playbook.Envelope) (io.Closer, error) {
	if !verbose {
		level := ""
		switch {
		case env.Debug:
			level = "debug"
		case env.Log:
			level = env.LogrusLevel()
		}
		if level != "" {
			if err := util.SetLogLevel(level); err != nil {
				return nil, fmt.Errorf("log_level: %w", err)
			}
		}
	}
	if !env.Log || env.LogFilePath == "" {
		return nil, nil
	}
	return util.SetLogFile(env.LogFilePath, env.LogAppend)
}

func runOptions(env playbook.Envelope) engine.Options {
	return engine.Options{
		State:             env.State,
		Timeout:           time.Duration(env.APITaskTimeout) * time.Second,
		PollInterval:      time.Duration(env.TaskPollInterval) * time.Second,
		DryRun:            !executeMode,
		ConfigVerify:      env.ConfigVerify,
		ControllerVersion: env.Version,
		User:              currentUser(),
		RunID:             newRunID(),
	}
}
