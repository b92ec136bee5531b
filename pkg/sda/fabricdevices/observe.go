package fabricdevices

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/engine"
	"github.com/newtron-network/newtcc/pkg/util"
)

// Controller functions read by the observer.
const (
	fnSites         = "get_sites"
	fnFabricSites   = "get_fabric_sites"
	fnFabricZones   = "get_fabric_zones"
	fnDevices       = "get_device_list"
	fnProvisioned   = "get_provisioned_devices"
	fnFabricDevices = "get_fabric_devices"
	fnTransits      = "get_transit_networks"
	fnPools         = "retrieves_ip_address_subpools"
	fnL2Handoffs    = "get_fabric_devices_layer2_handoffs"
	fnSDAHandoffs   = "get_fabric_devices_layer3_handoffs_with_sda_transit"
	fnIPHandoffs    = "get_fabric_devices_layer3_handoffs_with_ip_transit"
)

// observer reads controller state for one block. Transit and pool lookups
// are cached for the block.
type observer struct {
	rc       *engine.RunContext
	checks   *PreconditionChecker
	transits map[string]engine.Option[Transit]
	pools    map[string]bool
}

func newObserver(rc *engine.RunContext, site string) *observer {
	return &observer{
		rc:       rc,
		checks:   NewPreconditionChecker("reconcile fabric devices", site),
		transits: make(map[string]engine.Option[Transit]),
		pools:    make(map[string]bool),
	}
}

// observe resolves the block's site and every device in it. Precondition
// failures are returned together; a failure confined to one device is
// kept on that device.
func (o *observer) observe(ctx context.Context, in *BlockInput) (*Observed, error) {
	obs := &Observed{Site: in.FabricName}
	if err := o.site(ctx, obs); err != nil {
		return nil, err
	}
	if obs.Skip != "" {
		return obs, nil
	}

	for _, d := range in.Devices {
		od := &ObservedDevice{IP: d.DeviceIP}
		obs.Devices = append(obs.Devices, od)
		if err := o.resolve(ctx, obs, od, d); err != nil {
			od.Err = err
			continue
		}
		// Once a precondition has failed the run aborts, so fabric records
		// are not read.
		if !od.Found || o.checks.HasErrors() {
			continue
		}
		if od.Err = o.fabric(ctx, obs, od, d); od.Err != nil {
			continue
		}
		if o.rc.Absent() && od.Exists() && deletesDevice(d) {
			od.Attached, od.Err = o.attached(ctx, obs, od)
		}
	}
	return obs, o.checks.Result()
}

// site resolves the hierarchy name to a site id and then to a fabric site
// or zone.
func (o *observer) site(ctx context.Context, obs *Observed) error {
	log := util.WithSite(obs.Site)
	site, err := o.rc.Paginate(ctx, "site_design", fnSites, catalyst.Params{"nameHierarchy": obs.Site},
		func(r gjson.Result) bool { return r.Get("nameHierarchy").String() == obs.Site })
	if err != nil {
		return fmt.Errorf("resolving site %s: %w", obs.Site, err)
	}
	rec, found := site.Get()
	if !found && o.rc.Absent() {
		obs.Skip = fmt.Sprintf("site '%s' does not exist; nothing to delete", obs.Site)
		return nil
	}
	if err := o.checks.RequireSite(found, obs.Site).Result(); err != nil {
		return err
	}
	obs.SiteID = rec.Get("id").String()

	for _, fn := range []string{fnFabricSites, fnFabricZones} {
		fabric, err := o.rc.Paginate(ctx, "sda", fn, catalyst.Params{"siteId": obs.SiteID},
			func(r gjson.Result) bool { return r.Get("siteId").String() == obs.SiteID })
		if err != nil {
			return fmt.Errorf("resolving fabric of %s: %w", obs.Site, err)
		}
		if rec, ok := fabric.Get(); ok {
			obs.FabricID = rec.Get("id").String()
			log.WithField("fabric", obs.FabricID).Debugf("site resolved via %s", fn)
			return nil
		}
	}
	if o.rc.Absent() {
		obs.Skip = fmt.Sprintf("site '%s' is not a fabric site or zone; nothing to delete", obs.Site)
		return nil
	}
	return o.checks.RequireFabric("", obs.Site).Result()
}

// resolve maps the device's management IP to its network device id, checks
// provisioning and resolves the transits and pools its handoffs name. The
// id is resolved here once and reused for the rest of the run.
func (o *observer) resolve(ctx context.Context, obs *Observed, od *ObservedDevice, d DeviceInput) error {
	dev, err := o.rc.Paginate(ctx, "devices", fnDevices, catalyst.Params{"managementIpAddress": d.DeviceIP},
		func(r gjson.Result) bool { return r.Get("managementIpAddress").String() == d.DeviceIP })
	if err != nil {
		return fmt.Errorf("resolving device %s: %w", d.DeviceIP, err)
	}
	rec, found := dev.Get()
	od.Found = found
	if !found {
		if !o.rc.Absent() {
			o.checks.RequireDevice(od)
		}
		return nil
	}
	od.NetworkDeviceID = rec.Get("id").String()
	od.Family = rec.Get("family").String()
	od.Hostname = rec.Get("hostname").String()
	util.WithDevice(d.DeviceIP).WithField("networkDeviceId", od.NetworkDeviceID).Debug("device resolved")

	present := !o.rc.Absent()
	if present && od.Family != wirelessFamily {
		prov, err := o.rc.Paginate(ctx, "sda", fnProvisioned, catalyst.Params{"networkDeviceId": od.NetworkDeviceID},
			func(r gjson.Result) bool { return r.Get("networkDeviceId").String() == od.NetworkDeviceID })
		if err != nil {
			return fmt.Errorf("checking provisioning of %s: %w", d.DeviceIP, err)
		}
		o.checks.RequireProvisioned(od, prov.IsPresent(), obs.Site)
	}

	if d.Borders == nil {
		return nil
	}
	if s := d.Borders.SDATransit; s != nil {
		t, err := o.transit(ctx, s.TransitName)
		if err != nil {
			return err
		}
		if present {
			o.checks.RequireTransit(t.IsPresent(), d.DeviceIP, s.TransitName)
		}
		od.SDATransit = t
	}
	for _, h := range d.Borders.IPTransit {
		t, err := o.transit(ctx, h.TransitName)
		if err != nil {
			return err
		}
		if present {
			o.checks.RequireTransit(t.IsPresent(), d.DeviceIP, h.TransitName)
		}
		od.IPTransits = append(od.IPTransits, t)

		if present && h.PoolName != "" {
			reserved, err := o.pool(ctx, obs, h.PoolName)
			if err != nil {
				return err
			}
			o.checks.RequirePoolReserved(reserved, d.DeviceIP, h.PoolName, obs.Site)
		}
	}
	return nil
}

func (o *observer) transit(ctx context.Context, name string) (engine.Option[Transit], error) {
	if t, ok := o.transits[name]; ok {
		return t, nil
	}
	found, err := o.rc.Paginate(ctx, "sda", fnTransits, catalyst.Params{"name": name},
		func(r gjson.Result) bool { return r.Get("name").String() == name })
	if err != nil {
		return engine.None[Transit](), fmt.Errorf("resolving transit %s: %w", name, err)
	}
	t := engine.None[Transit]()
	if rec, ok := found.Get(); ok {
		t = engine.Some(Transit{ID: rec.Get("id").String(), Name: name, Type: rec.Get("type").String()})
	}
	o.transits[name] = t
	return t, nil
}

func (o *observer) pool(ctx context.Context, obs *Observed, name string) (bool, error) {
	if ok, cached := o.pools[name]; cached {
		return ok, nil
	}
	found, err := o.rc.Paginate(ctx, "network_settings", fnPools, catalyst.Params{"siteId": obs.SiteID},
		func(r gjson.Result) bool { return r.Get("name").String() == name })
	if err != nil {
		return false, fmt.Errorf("looking up pool %s: %w", name, err)
	}
	o.pools[name] = found.IsPresent()
	return found.IsPresent(), nil
}

// fabric reads the fabric device record and fills one handoff slot per
// playbook entry. It relies only on ids already resolved, so the verifier
// calls it again after apply.
func (o *observer) fabric(ctx context.Context, obs *Observed, od *ObservedDevice, d DeviceInput) error {
	scope := catalyst.Params{"fabricId": obs.FabricID, "networkDeviceId": od.NetworkDeviceID}
	rec, err := o.rc.Paginate(ctx, "sda", fnFabricDevices, scope,
		func(r gjson.Result) bool { return r.Get("networkDeviceId").String() == od.NetworkDeviceID })
	if err != nil {
		return fmt.Errorf("reading fabric device %s: %w", d.DeviceIP, err)
	}
	od.Record = rec

	var b BordersInput
	if d.Borders != nil {
		b = *d.Borders
	}
	od.L2 = make([]engine.Option[gjson.Result], len(b.Layer2))
	od.IP3 = make([]engine.Option[gjson.Result], len(b.IPTransit))
	od.SDA = engine.None[gjson.Result]()
	if !od.Exists() {
		return nil
	}

	for k, h := range b.Layer2 {
		h := h
		od.L2[k], err = o.rc.Paginate(ctx, "sda", fnL2Handoffs, scope, func(r gjson.Result) bool {
			return r.Get("interfaceName").String() == h.InterfaceName && r.Get("internalVlanId").Int() == int64(h.InternalVlan)
		})
		if err != nil {
			return fmt.Errorf("reading layer 2 handoff %s: %w", h.label(d.DeviceIP), err)
		}
	}

	if t, ok := od.SDATransit.Get(); ok {
		od.SDA, err = o.rc.Paginate(ctx, "sda", fnSDAHandoffs, scope, func(r gjson.Result) bool {
			return r.Get("transitNetworkId").String() == t.ID
		})
		if err != nil {
			return fmt.Errorf("reading SDA transit handoff %s: %w", b.SDATransit.label(d.DeviceIP), err)
		}
	}

	for k, h := range b.IPTransit {
		t, ok := od.IPTransits[k].Get()
		if !ok {
			continue
		}
		h := h
		od.IP3[k], err = o.rc.Paginate(ctx, "sda", fnIPHandoffs, scope, func(r gjson.Result) bool {
			return matchIPHandoff(r, t.ID, h)
		})
		if err != nil {
			return fmt.Errorf("reading IP transit handoff %s: %w", h.label(d.DeviceIP), err)
		}
	}
	return nil
}

// matchIPHandoff matches on transit and interface plus the virtual network
// when given, the VLAN otherwise.
func matchIPHandoff(r gjson.Result, transitID string, h IPHandoffInput) bool {
	if r.Get("transitNetworkId").String() != transitID || r.Get("interfaceName").String() != h.InterfaceName {
		return false
	}
	if h.VirtualNetwork != "" {
		return r.Get("virtualNetworkName").String() == h.VirtualNetwork
	}
	return h.VlanID != nil && r.Get("vlanId").Int() == int64(*h.VlanID)
}

// attached lists every handoff of a device, so that deleting the device
// leaves nothing behind.
type attached struct {
	L2  []gjson.Result
	SDA []gjson.Result
	IP  []gjson.Result
}

func (o *observer) attached(ctx context.Context, obs *Observed, od *ObservedDevice) (attached, error) {
	var a attached
	scope := catalyst.Params{"fabricId": obs.FabricID, "networkDeviceId": od.NetworkDeviceID}
	var err error
	if a.L2, err = o.rc.Collect(ctx, "sda", fnL2Handoffs, scope); err != nil {
		return a, fmt.Errorf("listing layer 2 handoffs of %s: %w", od.IP, err)
	}
	if a.SDA, err = o.rc.Collect(ctx, "sda", fnSDAHandoffs, scope); err != nil {
		return a, fmt.Errorf("listing SDA transit handoffs of %s: %w", od.IP, err)
	}
	if a.IP, err = o.rc.Collect(ctx, "sda", fnIPHandoffs, scope); err != nil {
		return a, fmt.Errorf("listing IP transit handoffs of %s: %w", od.IP, err)
	}
	return a, nil
}
