package fabricdevices

import (
	"fmt"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/newtron-network/newtcc/pkg/engine"
)

// step is one planned controller change and, after apply, its outcome.
type step struct {
	kind     string
	resource string
	status   engine.Status
	msg      string
	payload  any    // body item for creates and updates
	id       string // target of deletes
	items    int
	taskID   string
	err      error
}

func (s *step) result() engine.ResourceResult {
	r := engine.ResourceResult{Kind: s.kind, Resource: s.resource, Status: s.status, Msg: s.msg, TaskID: s.taskID}
	if s.err != nil {
		r.Fail(s.err)
	}
	return r
}

func (s *step) fail(err error) {
	s.status = engine.StatusFailed
	s.err = err
}

// devicePlan is the plan of one device_config entry.
type devicePlan struct {
	in     DeviceInput
	obs    *ObservedDevice
	want   *DesiredDevice
	device step
	l2     []*step
	sda    []*step
	ip     []*step
}

func (dp *devicePlan) failed() bool {
	return dp.device.status == engine.StatusFailed
}

func (dp *devicePlan) steps() []*step {
	out := []*step{&dp.device}
	out = append(out, dp.l2...)
	out = append(out, dp.sda...)
	return append(out, dp.ip...)
}

// controlPlane reports whether the device is, or is becoming, a control
// plane node.
func (dp *devicePlan) controlPlane() bool {
	if dp.want != nil && dp.want.Device != nil {
		return hasString(dp.want.Device.DeviceRoles, RoleControlPlane)
	}
	return hasString(dp.in.Roles, RoleControlPlane) || hasString(dp.obs.Roles(), RoleControlPlane)
}

// Plan is the ordered change set of one fabric_devices block.
type Plan struct {
	site     string
	absent   bool
	skip     string
	input    *BlockInput
	observed *Observed
	desired  *Desired
	devices  []*devicePlan
}

// Site implements engine.Plan.
func (p *Plan) Site() string {
	return p.site
}

// Preview implements engine.Plan.
func (p *Plan) Preview() []engine.ResourceResult {
	if p.skip != "" {
		return []engine.ResourceResult{{Kind: KindSite, Resource: p.site, Status: engine.StatusSkipped, Msg: p.skip}}
	}
	var out []engine.ResourceResult
	for _, dp := range p.devices {
		for _, s := range dp.steps() {
			out = append(out, s.result())
		}
	}
	return out
}

// Creates returns the devices to be added, in execution order.
func (p *Plan) Creates() []string {
	var out []string
	for _, dp := range p.devices {
		if dp.device.status == engine.StatusCreated {
			out = append(out, dp.in.DeviceIP)
		}
	}
	return out
}

// Deletes returns the devices to be removed, in execution order.
func (p *Plan) Deletes() []string {
	var out []string
	for _, dp := range p.devices {
		if dp.device.status == engine.StatusDeleted {
			out = append(out, dp.in.DeviceIP)
		}
	}
	return out
}

func plan(in *BlockInput, obs *Observed, want *Desired, absent bool) (*Plan, error) {
	p := &Plan{site: in.FabricName, absent: absent, skip: obs.Skip, input: in, observed: obs, desired: want}
	if p.skip != "" {
		return p, nil
	}
	for i, d := range in.Devices {
		dp := &devicePlan{in: d, obs: obs.Devices[i], want: want.Devices[i]}
		dp.device = step{kind: KindDevice, resource: d.DeviceIP, status: engine.StatusNoOp}
		var err error
		if absent {
			planAbsent(dp)
		} else {
			err = planPresent(dp)
		}
		if err != nil {
			return nil, err
		}
		p.devices = append(p.devices, dp)
	}

	rank := presentRank
	if absent {
		rank = absentRank
	}
	sort.SliceStable(p.devices, func(a, b int) bool {
		return rank(p.devices[a]) < rank(p.devices[b])
	})
	return p, nil
}

// presentRank puts control plane creates ahead of other creates, and all
// creates ahead of the remaining devices.
func presentRank(dp *devicePlan) int {
	switch {
	case dp.device.status == engine.StatusCreated && dp.controlPlane():
		return 0
	case dp.device.status == engine.StatusCreated:
		return 1
	}
	return 2
}

// absentRank puts devices with nothing to delete first and control plane
// nodes last.
func absentRank(dp *devicePlan) int {
	switch {
	case !dp.obs.Exists():
		return 0
	case dp.controlPlane():
		return 2
	}
	return 1
}

func planPresent(dp *devicePlan) error {
	if err := firstErr(dp.obs.Err, dp.want.Err); err != nil {
		dp.device.fail(err)
		return nil
	}
	if err := alignedSlots(dp); err != nil {
		return err
	}

	want := dp.want.Device
	if rec, ok := dp.obs.Record.Get(); ok {
		if diffs := deviceFields.Diff(rec, engine.JSON(want)); len(diffs) > 0 {
			dp.device.status = engine.StatusUpdated
			dp.device.payload = want
			dp.device.msg = diffMsg(diffs)
		}
	} else {
		dp.device.status = engine.StatusCreated
		dp.device.payload = want
	}

	ip := dp.in.DeviceIP
	if b := dp.in.Borders; b != nil {
		for k, h := range b.Layer2 {
			s := &step{kind: KindLayer2, resource: h.label(ip), status: engine.StatusNoOp}
			if !dp.obs.L2[k].IsPresent() {
				s.status, s.payload = engine.StatusCreated, dp.want.L2[k]
			}
			dp.l2 = append(dp.l2, s)
		}
		if h := b.SDATransit; h != nil {
			s := &step{kind: KindSDATransit, resource: h.label(ip), status: engine.StatusNoOp}
			planHandoff(s, dp.obs.SDA, dp.want.SDA, sdaFields)
			dp.sda = append(dp.sda, s)
		}
		for k, h := range b.IPTransit {
			s := &step{kind: KindIPTransit, resource: h.label(ip), status: engine.StatusNoOp}
			planHandoff(s, dp.obs.IP3[k], dp.want.IP3[k], ipFields)
			dp.ip = append(dp.ip, s)
		}
	}
	return nil
}

func planHandoff(s *step, slot engine.Option[gjson.Result], want any, fields engine.FieldMap) {
	rec, ok := slot.Get()
	if !ok {
		s.status, s.payload = engine.StatusCreated, want
		return
	}
	if diffs := fields.Diff(rec, engine.JSON(want)); len(diffs) > 0 {
		s.status, s.payload, s.msg = engine.StatusUpdated, want, diffMsg(diffs)
	}
}

func planAbsent(dp *devicePlan) {
	ip := dp.in.DeviceIP
	if dp.obs.Err != nil {
		dp.device.fail(dp.obs.Err)
		return
	}
	if !dp.obs.Exists() {
		dp.device.msg = "not a fabric device"
		return
	}

	if deletesDevice(dp.in) {
		a := dp.obs.Attached
		for _, r := range a.L2 {
			dp.l2 = append(dp.l2, &step{kind: KindLayer2, status: engine.StatusDeleted, id: r.Get("id").String(),
				resource: fmt.Sprintf("%s %s vlan %d", ip, r.Get("interfaceName").String(), r.Get("internalVlanId").Int())})
		}
		if len(a.SDA) > 0 {
			dp.sda = append(dp.sda, &step{kind: KindSDATransit, status: engine.StatusDeleted, items: len(a.SDA),
				resource: fmt.Sprintf("%s transit %s", ip, a.SDA[0].Get("transitNetworkId").String())})
		}
		for _, r := range a.IP {
			dp.ip = append(dp.ip, &step{kind: KindIPTransit, status: engine.StatusDeleted, id: r.Get("id").String(),
				resource: fmt.Sprintf("%s %s transit %s vlan %d", ip, r.Get("interfaceName").String(),
					r.Get("transitNetworkId").String(), r.Get("vlanId").Int())})
		}
		dp.device.status = engine.StatusDeleted
		dp.device.id = dp.obs.ID()
		return
	}

	b := dp.in.Borders
	for k, h := range b.Layer2 {
		s := &step{kind: KindLayer2, resource: h.label(ip), status: engine.StatusNoOp, msg: "already absent"}
		if rec, ok := dp.obs.L2[k].Get(); ok {
			s.status, s.id, s.msg = engine.StatusDeleted, rec.Get("id").String(), ""
		}
		dp.l2 = append(dp.l2, s)
	}
	if h := b.SDATransit; h != nil {
		s := &step{kind: KindSDATransit, resource: h.label(ip), status: engine.StatusNoOp, msg: "already absent"}
		if dp.obs.SDA.IsPresent() {
			s.status, s.msg, s.items = engine.StatusDeleted, "", 1
		}
		dp.sda = append(dp.sda, s)
	}
	for k, h := range b.IPTransit {
		s := &step{kind: KindIPTransit, resource: h.label(ip), status: engine.StatusNoOp, msg: "already absent"}
		if rec, ok := dp.obs.IP3[k].Get(); ok {
			s.status, s.id, s.msg = engine.StatusDeleted, rec.Get("id").String(), ""
		}
		dp.ip = append(dp.ip, s)
	}
	dp.device.msg = "retained; only listed handoffs removed"
}

// alignedSlots checks that every observed handoff slot has its desired
// counterpart.
func alignedSlots(dp *devicePlan) error {
	var l2, ip int
	if b := dp.in.Borders; b != nil {
		l2, ip = len(b.Layer2), len(b.IPTransit)
	}
	if len(dp.obs.L2) != l2 || len(dp.want.L2) != l2 || len(dp.obs.IP3) != ip || len(dp.want.IP3) != ip {
		return fmt.Errorf("%s: handoff slots out of step (layer2 %d/%d/%d, ip transit %d/%d/%d)",
			dp.in.DeviceIP, l2, len(dp.obs.L2), len(dp.want.L2), ip, len(dp.obs.IP3), len(dp.want.IP3))
	}
	return nil
}

func diffMsg(diffs []engine.FieldDiff) string {
	msg := "changed:"
	for _, d := range diffs {
		msg += fmt.Sprintf(" %s %v -> %v;", d.Field, d.Have, d.Want)
	}
	return msg[:len(msg)-1]
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
