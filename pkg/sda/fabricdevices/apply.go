package fabricdevices

import (
	"context"
	"fmt"

	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/engine"
)

// Controller functions called by the executor.
const (
	fnAddDevices     = "add_fabric_devices"
	fnUpdateDevices  = "update_fabric_devices"
	fnDeleteDevice   = "delete_fabric_device_by_id"
	fnAddL2          = "add_fabric_devices_layer2_handoffs"
	fnDeleteL2       = "delete_fabric_device_layer2_handoff_by_id"
	fnAddSDA         = "add_fabric_devices_layer3_handoffs_with_sda_transit"
	fnUpdateSDA      = "update_fabric_devices_layer3_handoffs_with_sda_transit"
	fnDeleteSDA      = "delete_fabric_device_layer3_handoffs_with_sda_transit"
	fnAddIP          = "add_fabric_devices_layer3_handoffs_with_ip_transit"
	fnUpdateIP       = "update_fabric_devices_layer3_handoffs_with_ip_transit"
	fnDeleteIP       = "delete_fabric_device_layer3_handoff_with_ip_transit_by_id"
	parentFailedNote = "not attempted: device failed"
)

// executor applies a Plan. Calls are issued one at a time; each waits for
// its task before the next starts.
type executor struct {
	rc   *engine.RunContext
	plan *Plan
}

func (e *executor) run(ctx context.Context) []engine.ResourceResult {
	p := e.plan
	if p.skip != "" {
		return p.Preview()
	}
	if p.absent {
		for _, dp := range p.devices {
			e.remove(ctx, dp)
		}
	} else {
		e.devices(ctx)
		for _, dp := range p.devices {
			e.handoffs(ctx, dp)
		}
	}

	var out []engine.ResourceResult
	for _, dp := range p.devices {
		for _, s := range dp.steps() {
			out = append(out, s.result())
		}
	}
	return out
}

// devices adds and updates the block's fabric devices in batches. Control
// plane nodes are added in their own batches ahead of the rest.
func (e *executor) devices(ctx context.Context) {
	var cp, others, updates []*devicePlan
	for _, dp := range e.plan.devices {
		switch {
		case dp.device.status == engine.StatusCreated && dp.controlPlane():
			cp = append(cp, dp)
		case dp.device.status == engine.StatusCreated:
			others = append(others, dp)
		case dp.device.status == engine.StatusUpdated:
			updates = append(updates, dp)
		}
	}
	e.deviceBatches(ctx, fnAddDevices, cp)
	e.deviceBatches(ctx, fnAddDevices, others)
	e.deviceBatches(ctx, fnUpdateDevices, updates)
}

func (e *executor) deviceBatches(ctx context.Context, function string, dps []*devicePlan) {
	for _, batch := range engine.Chunk(dps, engine.MaxBatch) {
		steps := make([]*step, len(batch))
		for i, dp := range batch {
			steps[i] = &dp.device
		}
		e.batch(ctx, function, steps)
	}
}

// batch submits the payloads of steps as one list body and records the
// outcome on every step.
func (e *executor) batch(ctx context.Context, function string, steps []*step) {
	if len(steps) == 0 {
		return
	}
	payload := make([]any, len(steps))
	for i, s := range steps {
		payload[i] = s.payload
	}
	resource := steps[0].resource
	if len(steps) > 1 {
		resource = fmt.Sprintf("%s (+%d more)", resource, len(steps)-1)
	}
	taskID, err := e.rc.Mutate(ctx, engine.Call{
		Family:   "sda",
		Function: function,
		Params:   catalyst.Params{catalyst.PayloadKey: payload},
		Site:     e.plan.site,
		Resource: resource,
		Items:    len(steps),
	})
	for _, s := range steps {
		s.taskID = taskID
		if err != nil {
			s.fail(err)
		}
	}
}

// handoffs adds or updates a device's handoffs in the order layer 2, SDA
// transit, IP transit. Handoffs of a failed device are not attempted.
func (e *executor) handoffs(ctx context.Context, dp *devicePlan) {
	if dp.failed() {
		for _, s := range dp.steps()[1:] {
			if s.status != engine.StatusNoOp {
				s.status, s.msg = engine.StatusSkipped, parentFailedNote
			}
		}
		return
	}
	e.changes(ctx, dp.l2, fnAddL2, "")
	e.changes(ctx, dp.sda, fnAddSDA, fnUpdateSDA)
	e.changes(ctx, dp.ip, fnAddIP, fnUpdateIP)
}

func (e *executor) changes(ctx context.Context, steps []*step, add, update string) {
	var creates, updates []*step
	for _, s := range steps {
		switch s.status {
		case engine.StatusCreated:
			creates = append(creates, s)
		case engine.StatusUpdated:
			updates = append(updates, s)
		}
	}
	for _, batch := range engine.Chunk(creates, engine.MaxBatch) {
		e.batch(ctx, add, batch)
	}
	if update == "" {
		return
	}
	for _, batch := range engine.Chunk(updates, engine.MaxBatch) {
		e.batch(ctx, update, batch)
	}
}

// remove deletes the planned handoffs of a device and then, when planned,
// the device itself. A failed handoff deletion keeps the device.
func (e *executor) remove(ctx context.Context, dp *devicePlan) {
	var failed error
	for _, s := range dp.l2 {
		failed = firstErr(failed, e.deleteByID(ctx, fnDeleteL2, s))
	}
	for _, s := range dp.sda {
		if s.status != engine.StatusDeleted {
			continue
		}
		err := e.delete(ctx, fnDeleteSDA, s, catalyst.Params{
			"fabricId":        e.plan.observed.FabricID,
			"networkDeviceId": dp.obs.NetworkDeviceID,
		})
		failed = firstErr(failed, err)
	}
	for _, s := range dp.ip {
		failed = firstErr(failed, e.deleteByID(ctx, fnDeleteIP, s))
	}

	if dp.device.status != engine.StatusDeleted {
		return
	}
	if failed != nil {
		dp.device.fail(fmt.Errorf("device kept because a handoff could not be removed: %w", failed))
		return
	}
	e.deleteByID(ctx, fnDeleteDevice, &dp.device)
}

func (e *executor) deleteByID(ctx context.Context, function string, s *step) error {
	if s.status != engine.StatusDeleted {
		return nil
	}
	return e.delete(ctx, function, s, catalyst.Params{"id": s.id})
}

func (e *executor) delete(ctx context.Context, function string, s *step, params catalyst.Params) error {
	items := s.items
	if items == 0 {
		items = 1
	}
	taskID, err := e.rc.Mutate(ctx, engine.Call{
		Family:   "sda",
		Function: function,
		Params:   params,
		Site:     e.plan.site,
		Resource: s.resource,
		Items:    items,
	})
	s.taskID = taskID
	if err != nil {
		s.fail(err)
	}
	return err
}
