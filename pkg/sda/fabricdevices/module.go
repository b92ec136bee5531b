// Package fabricdevices reconciles SDA fabric devices and their layer 2,
// SDA transit and IP transit handoffs.
//
// A block names a fabric site and lists devices by management IP. Prepare
// resolves the site and devices, reads the fabric device record and one
// slot per listed handoff, builds the payloads and plans the changes.
// Apply then adds or updates devices in batches before touching any
// handoff; under absent it removes handoffs before the device.
package fabricdevices

import (
	"context"
	"fmt"

	"github.com/newtron-network/newtcc/pkg/engine"
	"github.com/newtron-network/newtcc/pkg/playbook"
	"github.com/newtron-network/newtcc/pkg/util"
)

// ConfigKey is the playbook key of this family.
const ConfigKey = "fabric_devices"

// MinVersion is the oldest controller release with the fabric device APIs.
const MinVersion = "2.3.7.6"

// Module implements engine.Module for SDA fabric devices.
type Module struct{}

// New returns the fabric devices module.
func New() *Module {
	return &Module{}
}

func (m *Module) Name() string            { return "SDA fabric devices" }
func (m *Module) ConfigKey() string       { return ConfigKey }
func (m *Module) MinVersion() string      { return MinVersion }
func (m *Module) Schema() playbook.Schema { return Schema }

// ValidateBlock checks a block without contacting the controller.
func (m *Module) ValidateBlock(block map[string]any, state string) error {
	_, err := decode(block, state)
	return err
}

func decode(block map[string]any, state string) (*BlockInput, error) {
	in := &BlockInput{}
	if err := playbook.Decode(block, in); err != nil {
		return nil, util.NewValidationError(err.Error())
	}
	if err := Validate(in, state); err != nil {
		return nil, err
	}
	return in, nil
}

// Prepare observes, builds and plans one block without mutating the
// controller.
func (m *Module) Prepare(ctx context.Context, rc *engine.RunContext, index int, block map[string]any) (engine.Plan, error) {
	in, err := decode(block, rc.State)
	if err != nil {
		return nil, err
	}

	log := rc.Log().WithField("site", in.FabricName)
	obs, err := newObserver(rc, in.FabricName).observe(ctx, in)
	if err != nil {
		return nil, err
	}
	store(rc.Observed, index, obs)

	want := &Desired{}
	if obs.Skip == "" {
		for i, d := range in.Devices {
			dd := &DesiredDevice{IP: d.DeviceIP}
			if !rc.Absent() {
				if dd, err = build(obs, obs.Devices[i], d); err != nil {
					return nil, fmt.Errorf("device_config[%d]: %w", i, err)
				}
			}
			want.Devices = append(want.Devices, dd)
		}
	}
	store(rc.Desired, index, want)

	p, err := plan(in, obs, want, rc.Absent())
	if err != nil {
		return nil, err
	}
	log.WithField("creates", len(p.Creates())).WithField("deletes", len(p.Deletes())).Debug("fabric devices planned")
	return p, nil
}

// Apply executes a plan returned by Prepare.
func (m *Module) Apply(ctx context.Context, rc *engine.RunContext, plan engine.Plan) []engine.ResourceResult {
	p, ok := plan.(*Plan)
	if !ok {
		return []engine.ResourceResult{{Kind: KindSite, Resource: plan.Site(), Status: engine.StatusFailed,
			Error: fmt.Sprintf("unexpected plan type %T", plan), ErrorKind: engine.KindInternal}}
	}
	return (&executor{rc: rc, plan: p}).run(ctx)
}

// Verify re-observes the devices of a plan after Apply.
func (m *Module) Verify(ctx context.Context, rc *engine.RunContext, plan engine.Plan) error {
	p, ok := plan.(*Plan)
	if !ok {
		return fmt.Errorf("unexpected plan type %T", plan)
	}
	return verify(ctx, rc, p)
}

func store(slots []any, index int, v any) {
	if index >= 0 && index < len(slots) {
		slots[index] = v
	}
}
