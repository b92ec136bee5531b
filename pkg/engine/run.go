package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/newtron-network/newtcc/pkg/audit"
	"github.com/newtron-network/newtcc/pkg/playbook"
	"github.com/newtron-network/newtcc/pkg/util"
	"github.com/newtron-network/newtcc/pkg/version"
)

// Run reconciles every block of a validated document against the
// controller. Blocks are prepared in document order before any of them is
// applied, so a validation or precondition failure anywhere aborts the run
// with the controller untouched. Blocks are then applied in order; once an
// earlier block has mutated the controller, a block is prepared again under
// its site lock so it plans against the state the earlier blocks left. The
// returned result is never nil; the error is set only when the run was
// aborted.
func Run(ctx context.Context, rc *RunContext, modules []Module, blocks []playbook.Block) (*RunResult, error) {
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	log := rc.Log()
	result := &RunResult{
		RunID:    rc.RunID,
		DryRun:   rc.DryRun,
		Response: make([]BlockResult, len(blocks)),
	}

	byKey := make(map[string]Module, len(modules))
	for _, m := range modules {
		byKey[m.ConfigKey()] = m
	}
	resolved := make([]Module, len(blocks))
	for i, b := range blocks {
		m, ok := byKey[b.Key]
		if !ok {
			return result.abort(util.NewValidationError(fmt.Sprintf("config[%d]: no module handles %q", i, b.Key)))
		}
		if err := checkVersion(rc.ControllerVersion, m); err != nil {
			return result.abort(err)
		}
		resolved[i] = m
		result.Response[i] = BlockResult{Index: i, Key: b.Key}
	}

	rc.Observed = make([]any, len(blocks))
	rc.Desired = make([]any, len(blocks))
	plans := make([]Plan, len(blocks))
	for i, b := range blocks {
		log.WithField("block", i).Debugf("preparing %s", resolved[i].Name())
		plan, err := resolved[i].Prepare(ctx, rc, i, b.Value)
		if err != nil {
			if AbortsRun(err) {
				return result.abort(fmt.Errorf("config[%d].%s: %w", i, b.Key, err))
			}
			log.WithField("block", i).WithError(err).Warn("block failed during prepare")
			result.Response[i].Fail(err)
			continue
		}
		plans[i] = plan
		result.Response[i].Site = plan.Site()
	}

	for i, plan := range plans {
		if plan == nil {
			continue
		}
		br := &result.Response[i]
		if rc.DryRun {
			for _, r := range plan.Preview() {
				r.Planned = true
				br.Add(r)
			}
			continue
		}

		m := resolved[i]
		var prepErr error
		err := rc.withLock(ctx, plan.Site(), func() {
			if rc.mutations > 0 {
				log.WithField("block", i).Debugf("re-preparing %s after earlier changes", m.Name())
				if plan, prepErr = m.Prepare(ctx, rc, i, blocks[i].Value); prepErr != nil {
					return
				}
			}
			for _, r := range m.Apply(ctx, rc, plan) {
				br.Add(r)
			}
		})
		if err == nil {
			err = prepErr
		}
		if err != nil {
			br.Fail(err)
			continue
		}

		if rc.ConfigVerify {
			err := m.Verify(ctx, rc, plan)
			event := audit.NewEvent(rc.User, plan.Site(), "verify").WithType(audit.EventTypeVerify).WithSite(plan.Site())
			if err != nil {
				br.Fail(err)
				event.WithError(err)
			} else {
				event.WithSuccess()
			}
			rc.record(event)
		}
	}

	result.finish()
	log.WithField("changed", result.Changed).WithField("failed", result.Failed).Info(result.Msg)
	return result, nil
}

func checkVersion(have string, m Module) error {
	if have == "" || m.MinVersion() == "" {
		return nil
	}
	ok, err := version.AtLeast(have, m.MinVersion())
	if err != nil {
		return util.NewValidationError(fmt.Sprintf("controller version: %v", err))
	}
	if !ok {
		return fmt.Errorf("%s requires controller %s or later, have %s: %w",
			m.Name(), m.MinVersion(), have, util.ErrVersionMismatch)
	}
	return nil
}

// withLock runs fn while holding the site lock, when a locker is set.
func (rc *RunContext) withLock(ctx context.Context, site string, fn func()) error {
	if rc.Locker == nil || site == "" {
		fn()
		return nil
	}
	holder := rc.holder()
	if err := rc.Locker.Lock(ctx, site, holder); err != nil {
		rc.record(audit.NewEvent(rc.User, site, "lock").WithType(audit.EventTypeLock).WithSite(site).WithError(err))
		return fmt.Errorf("locking %s: %w", site, err)
	}
	rc.record(audit.NewEvent(rc.User, site, "lock").WithType(audit.EventTypeLock).WithSite(site).WithSuccess())

	defer func() {
		event := audit.NewEvent(rc.User, site, "unlock").WithType(audit.EventTypeUnlock).WithSite(site)
		if err := rc.Locker.Unlock(ctx, site, holder); err != nil {
			rc.Log().WithError(err).WithField("site", site).Warn("failed to release site lock")
			event.WithError(err)
		} else {
			event.WithSuccess()
		}
		rc.record(event)
	}()
	fn()
	return nil
}

func (r *RunResult) abort(err error) (*RunResult, error) {
	r.Failed = true
	r.Msg = err.Error()
	return r, err
}

func (r *RunResult) finish() {
	failed := 0
	for i := range r.Response {
		b := &r.Response[i]
		b.summarize()
		if b.Changed {
			r.Changed = true
		}
		if b.Failed {
			r.Failed = true
			failed++
		}
	}
	switch {
	case failed > 0:
		r.Msg = fmt.Sprintf("%d of %d block(s) failed", failed, len(r.Response))
	case r.DryRun && r.Changed:
		r.Msg = "changes planned; re-run with --execute to apply"
	case r.Changed:
		r.Msg = "changes applied"
	default:
		r.Msg = "no changes required"
	}
}
