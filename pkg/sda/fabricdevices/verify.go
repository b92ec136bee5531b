package fabricdevices

import (
	"context"
	"errors"

	"github.com/tidwall/gjson"

	"github.com/newtron-network/newtcc/pkg/engine"
	"github.com/newtron-network/newtcc/pkg/util"
)

// verify re-reads every device the plan touched, reusing the ids resolved
// before apply, and compares it with the desired state. Devices whose
// apply failed are already reported and are not checked again.
func verify(ctx context.Context, rc *engine.RunContext, p *Plan) error {
	if p.skip != "" {
		return nil
	}
	o := newObserver(rc, p.site)
	var errs []error
	for _, dp := range p.devices {
		if !dp.obs.Found || dp.failed() || anyFailed(dp.steps()) {
			continue
		}
		fresh := &ObservedDevice{
			IP:              dp.obs.IP,
			Found:           true,
			NetworkDeviceID: dp.obs.NetworkDeviceID,
			SDATransit:      dp.obs.SDATransit,
			IPTransits:      dp.obs.IPTransits,
		}
		if err := o.fabric(ctx, p.observed, fresh, dp.in); err != nil {
			errs = append(errs, err)
			continue
		}
		if p.absent {
			errs = append(errs, verifyAbsent(dp, fresh)...)
		} else {
			errs = append(errs, verifyPresent(dp, fresh)...)
		}
	}
	return errors.Join(errs...)
}

func verifyPresent(dp *devicePlan, fresh *ObservedDevice) []error {
	ip := dp.in.DeviceIP
	rec, ok := fresh.Record.Get()
	if !ok {
		return []error{missing(ip, "fabricDevice")}
	}
	want := dp.want.Device
	var errs []error
	if !sameSet(want.DeviceRoles, fresh.Roles()) {
		errs = append(errs, &util.VerificationError{Resource: ip, Path: "deviceRoles", Have: fresh.Roles(), Want: want.DeviceRoles})
	}
	errs = append(errs, diverged(ip, deviceFields.Diff(rec, engine.JSON(want)))...)

	for k, s := range dp.l2 {
		if !fresh.L2[k].IsPresent() {
			errs = append(errs, missing(s.resource, "layer2Handoff"))
		}
	}
	for _, s := range dp.sda {
		errs = append(errs, checkHandoff(s.resource, "layer3HandoffSdaTransit", fresh.SDA, dp.want.SDA, sdaFields)...)
	}
	for k, s := range dp.ip {
		errs = append(errs, checkHandoff(s.resource, "layer3HandoffIpTransit", fresh.IP3[k], dp.want.IP3[k], ipFields)...)
	}
	return errs
}

func checkHandoff(resource, path string, slot engine.Option[gjson.Result], want any, fields engine.FieldMap) []error {
	rec, ok := slot.Get()
	if !ok {
		return []error{missing(resource, path)}
	}
	return diverged(resource, fields.Diff(rec, engine.JSON(want)))
}

func verifyAbsent(dp *devicePlan, fresh *ObservedDevice) []error {
	if dp.device.status == engine.StatusDeleted {
		if fresh.Exists() {
			return []error{lingering(dp.in.DeviceIP, "fabricDevice")}
		}
		return nil
	}
	if !fresh.Exists() {
		return nil
	}
	var errs []error
	for k, s := range dp.l2 {
		if fresh.L2[k].IsPresent() {
			errs = append(errs, lingering(s.resource, "layer2Handoff"))
		}
	}
	for _, s := range dp.sda {
		if fresh.SDA.IsPresent() {
			errs = append(errs, lingering(s.resource, "layer3HandoffSdaTransit"))
		}
	}
	for k, s := range dp.ip {
		if fresh.IP3[k].IsPresent() {
			errs = append(errs, lingering(s.resource, "layer3HandoffIpTransit"))
		}
	}
	return errs
}

func diverged(resource string, diffs []engine.FieldDiff) []error {
	var errs []error
	for _, d := range diffs {
		errs = append(errs, &util.VerificationError{Resource: resource, Path: d.Path, Have: d.Have, Want: d.Want})
	}
	return errs
}

func missing(resource, path string) error {
	return &util.VerificationError{Resource: resource, Path: path, Have: "absent", Want: "present"}
}

func lingering(resource, path string) error {
	return &util.VerificationError{Resource: resource, Path: path, Have: "present", Want: "absent"}
}

func anyFailed(steps []*step) bool {
	for _, s := range steps {
		if s.status == engine.StatusFailed || s.status == engine.StatusSkipped {
			return true
		}
	}
	return false
}
