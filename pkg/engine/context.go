package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/newtcc/pkg/audit"
	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/playbook"
	"github.com/newtron-network/newtcc/pkg/util"
)

// Defaults for a run.
const (
	DefaultTimeout      = 1200 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Locker serializes runs against the same fabric site.
type Locker interface {
	Lock(ctx context.Context, site, holder string) error
	Unlock(ctx context.Context, site, holder string) error
}

// Options configure a RunContext. Zero values select the defaults.
type Options struct {
	State             string
	Timeout           time.Duration
	PollInterval      time.Duration
	DryRun            bool
	ConfigVerify      bool
	ControllerVersion string
	User              string
	RunID             string
	Clock             Clock
	Auditor           audit.Logger
	Locker            Locker
}

// RunContext is the state shared by every stage of one run. Observed and
// Desired are indexed by block position and owned by the modules for the
// duration of the run.
type RunContext struct {
	Client            catalyst.Client
	State             string
	Timeout           time.Duration
	PollInterval      time.Duration
	DryRun            bool
	ConfigVerify      bool
	ControllerVersion string
	User              string
	RunID             string
	Clock             Clock
	Auditor           audit.Logger
	Locker            Locker

	Observed []any
	Desired  []any

	// mutations counts the calls submitted through Mutate.
	mutations int
}

// NewRunContext returns a run context for client with opts applied.
func NewRunContext(client catalyst.Client, opts Options) *RunContext {
	rc := &RunContext{
		Client:            client,
		State:             opts.State,
		Timeout:           opts.Timeout,
		PollInterval:      opts.PollInterval,
		DryRun:            opts.DryRun,
		ConfigVerify:      opts.ConfigVerify,
		ControllerVersion: opts.ControllerVersion,
		User:              opts.User,
		RunID:             opts.RunID,
		Clock:             opts.Clock,
		Auditor:           opts.Auditor,
		Locker:            opts.Locker,
	}
	if rc.State == "" {
		rc.State = playbook.StatePresent
	}
	if rc.Timeout <= 0 {
		rc.Timeout = DefaultTimeout
	}
	if rc.PollInterval <= 0 {
		rc.PollInterval = DefaultPollInterval
	}
	if rc.Clock == nil {
		rc.Clock = SystemClock{}
	}
	return rc
}

// Absent reports whether the run reconciles towards deletion.
func (rc *RunContext) Absent() bool {
	return rc.State == playbook.StateAbsent
}

// Log returns a logger scoped to this run.
func (rc *RunContext) Log() *logrus.Entry {
	return util.WithRun(rc.RunID)
}

func (rc *RunContext) holder() string {
	return rc.User + "/" + rc.RunID
}

func (rc *RunContext) record(event *audit.Event) {
	event.WithRun(rc.RunID).WithExecuteMode(!rc.DryRun)
	var err error
	if rc.Auditor != nil {
		err = rc.Auditor.Log(event)
	} else {
		err = audit.Log(event)
	}
	if err != nil {
		rc.Log().WithError(err).Warn("audit: failed to record event")
	}
}
