package fabricdevices

import (
	"errors"
	"fmt"

	"github.com/newtron-network/newtcc/pkg/util"
)

// PreconditionChecker collects the controller-side facts a block depends
// on. Any failure aborts the run before the first mutation.
type PreconditionChecker struct {
	operation string
	resource  string
	errors    []error
}

// NewPreconditionChecker creates a new precondition checker
func NewPreconditionChecker(operation, resource string) *PreconditionChecker {
	return &PreconditionChecker{
		operation: operation,
		resource:  resource,
	}
}

// RequireSite checks that the site hierarchy name resolved
func (p *PreconditionChecker) RequireSite(found bool, name string) *PreconditionChecker {
	if !found {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, "site must exist",
			fmt.Sprintf("site '%s' not found in the site hierarchy", name)))
	}
	return p
}

// RequireFabric checks that the site is a fabric site or fabric zone
func (p *PreconditionChecker) RequireFabric(fabricID, name string) *PreconditionChecker {
	if fabricID == "" {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, "site must be a fabric site or fabric zone",
			fmt.Sprintf("site '%s' is not part of the fabric - add it first", name)))
	}
	return p
}

// RequireDevice checks that a management IP resolved to a network device
func (p *PreconditionChecker) RequireDevice(od *ObservedDevice) *PreconditionChecker {
	if !od.Found {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, od.IP, "device must be managed by the controller",
			fmt.Sprintf("no network device with management IP %s", od.IP)))
	}
	return p
}

// RequireProvisioned checks that a device has been provisioned
func (p *PreconditionChecker) RequireProvisioned(od *ObservedDevice, provisioned bool, site string) *PreconditionChecker {
	if !provisioned {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, od.IP, "device must be provisioned",
			fmt.Sprintf("device %s is not provisioned to '%s' - provision it first", od.IP, site)))
	}
	return p
}

// RequireTransit checks that a transit network name resolved
func (p *PreconditionChecker) RequireTransit(found bool, device, name string) *PreconditionChecker {
	if !found {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, device, "transit network must exist",
			fmt.Sprintf("transit '%s' not found", name)))
	}
	return p
}

// RequirePoolReserved checks that an IP pool is reserved in the site
func (p *PreconditionChecker) RequirePoolReserved(reserved bool, device, pool, site string) *PreconditionChecker {
	if !reserved {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, device, "IP pool must be reserved in the fabric site",
			fmt.Sprintf("pool '%s' is not reserved in '%s'", pool, site)))
	}
	return p
}

// Result returns nil when every check passed. Several failures are joined.
func (p *PreconditionChecker) Result() error {
	switch len(p.errors) {
	case 0:
		return nil
	case 1:
		return p.errors[0]
	}
	return errors.Join(p.errors...)
}

// HasErrors reports whether any check has failed so far.
func (p *PreconditionChecker) HasErrors() bool {
	return len(p.errors) > 0
}
