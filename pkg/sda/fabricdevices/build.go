package fabricdevices

import (
	"sort"

	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/newtron-network/newtcc/pkg/engine"
	"github.com/newtron-network/newtcc/pkg/util"
)

// builder shapes the payloads of one device. Omitted input fields inherit
// the observed value, so a partial playbook stays idempotent.
type builder struct {
	obs *Observed
	od  *ObservedDevice
	in  DeviceInput
}

// build returns the desired state of a device under present. A
// ValidationError aborts the run; immutable and missing required fields
// are kept on the device so the rest of the block proceeds.
func build(obs *Observed, od *ObservedDevice, in DeviceInput) (*DesiredDevice, error) {
	want := &DesiredDevice{IP: in.DeviceIP}
	if od.Err != nil || !od.Found {
		return want, nil
	}
	b := &builder{obs: obs, od: od, in: in}

	roles, err := b.roles()
	if err != nil {
		want.Err = err
		return want, nil
	}
	border := hasString(roles, RoleBorder)
	if in.Borders != nil && !border {
		return nil, util.NewValidationError(in.DeviceIP + ": " + keyBordersSettings +
			" given but the device is not a " + RoleBorder)
	}

	want.Device = &DevicePayload{
		ID:              od.ID(),
		NetworkDeviceID: od.NetworkDeviceID,
		FabricID:        obs.FabricID,
		DeviceRoles:     roles,
	}
	if border {
		if want.Device.BorderSettings, err = b.borderSettings(); err != nil {
			want.Err = err
			return want, nil
		}
	}
	if in.Borders == nil {
		return want, nil
	}

	for k, h := range in.Borders.Layer2 {
		p, err := b.layer2(h, od.L2[k])
		if err != nil {
			want.Err = err
			return want, nil
		}
		want.L2 = append(want.L2, p)
	}
	if s := in.Borders.SDATransit; s != nil {
		want.SDA = b.sda(*s)
	}
	for k, h := range in.Borders.IPTransit {
		p, err := b.ipTransit(h, od.IP3[k], od.IPTransits[k])
		if err != nil {
			want.Err = err
			return want, nil
		}
		want.IP3 = append(want.IP3, p)
	}
	return want, nil
}

// roles are fixed once the device joins the fabric.
func (b *builder) roles() ([]string, error) {
	observed := b.od.Roles()
	if b.in.Roles == nil {
		if !b.od.Exists() {
			return nil, util.NewMissingRequiredError(b.in.DeviceIP, keyDeviceRoles)
		}
		return observed, nil
	}
	roles := dedupe(b.in.Roles)
	if b.od.Exists() && !sameSet(roles, observed) {
		return nil, util.NewImmutableFieldError(b.in.DeviceIP, keyDeviceRoles, observed, roles)
	}
	return roles, nil
}

func (b *builder) borderSettings() (*BorderSettingsPayload, error) {
	rec, _ := b.od.Record.Get()
	observed := rec.Get("borderDeviceSettings")

	types := stringsOf(observed.Get("borderTypes"))
	var l3 *Layer3Input
	if bs := b.in.Borders; bs != nil {
		l3 = bs.Layer3
		if bs.Layer3 != nil || bs.SDATransit != nil || len(bs.IPTransit) > 0 {
			types = appendMissing(types, BorderLayer3)
		}
		if len(bs.Layer2) > 0 {
			types = appendMissing(types, BorderLayer2)
		}
	}
	if len(types) == 0 {
		types = []string{BorderLayer3}
	}
	out := &BorderSettingsPayload{BorderTypes: types}
	if !hasString(types, BorderLayer3) {
		return out, nil
	}

	if l3 == nil {
		l3 = &Layer3Input{}
	}
	have := observed.Get("layer3Settings")
	p := &Layer3Payload{
		IsDefaultExit:        true,
		ImportExternalRoutes: true,
	}
	if asn, ok := stringAt(have, "localAutonomousSystemNumber"); ok {
		p.LocalASN = asn
	}
	if v := have.Get("isDefaultExit"); v.Exists() {
		p.IsDefaultExit = v.Bool()
	}
	if v := have.Get("importExternalRoutes"); v.Exists() {
		p.ImportExternalRoutes = v.Bool()
	}
	if v, ok := intAt(have, "borderPriority"); ok && v != unsetBorderPriority {
		p.BorderPriority = ptr.To(v)
	}
	if v, ok := intAt(have, "prependAutonomousSystemCount"); ok && v != unsetPrependCount {
		p.PrependCount = ptr.To(v)
	}

	if l3.ASN != nil {
		p.LocalASN = *l3.ASN
	}
	if l3.DefaultExit != nil {
		p.IsDefaultExit = *l3.DefaultExit
	}
	if l3.ImportRoutes != nil {
		p.ImportExternalRoutes = *l3.ImportRoutes
	}
	if l3.BorderPriority != nil {
		p.BorderPriority = ptr.To(*l3.BorderPriority)
	}
	if l3.PrependCount != nil {
		p.PrependCount = ptr.To(*l3.PrependCount)
	}

	if p.LocalASN == "" {
		return nil, util.NewMissingRequiredError(b.in.DeviceIP, keyLayer3Settings+"."+keyASN)
	}
	out.Layer3 = p

	if have.Exists() {
		want := engine.JSON(&DevicePayload{BorderSettings: out})
		if d := layer3Immutable.Diff(rec, want); len(d) > 0 {
			return nil, util.NewImmutableFieldError(b.in.DeviceIP, d[0].Field, d[0].Have, d[0].Want)
		}
	}
	return out, nil
}

func (b *builder) layer2(h L2HandoffInput, slot engine.Option[gjson.Result]) (*L2Payload, error) {
	p := &L2Payload{
		NetworkDeviceID: b.od.NetworkDeviceID,
		FabricID:        b.obs.FabricID,
		InterfaceName:   h.InterfaceName,
		InternalVlanID:  h.InternalVlan,
	}
	rec, exists := slot.Get()
	if exists {
		p.ExternalVlanID = int(rec.Get("externalVlanId").Int())
	}
	if h.ExternalVlan != nil {
		p.ExternalVlanID = *h.ExternalVlan
	}
	if !exists {
		if h.ExternalVlan == nil {
			return nil, util.NewMissingRequiredError(h.label(b.in.DeviceIP), keyExternalVlan)
		}
		return p, nil
	}
	if d := l2Immutable.Diff(rec, engine.JSON(p)); len(d) > 0 {
		return nil, util.NewImmutableFieldError(h.label(b.in.DeviceIP), d[0].Field, d[0].Have, d[0].Want)
	}
	return p, nil
}

func (b *builder) sda(h SDAHandoffInput) *SDAPayload {
	t, _ := b.od.SDATransit.Get()
	rec, _ := b.od.SDA.Get()
	p := &SDAPayload{
		NetworkDeviceID:     b.od.NetworkDeviceID,
		FabricID:            b.obs.FabricID,
		TransitNetworkID:    t.ID,
		ConnectedToInternet: rec.Get("connectedToInternet").Bool(),
	}
	if h.ConnectedToInternet != nil {
		p.ConnectedToInternet = *h.ConnectedToInternet
	}
	if !t.PubSub() {
		return p
	}

	if v, ok := intAt(rec, "affinityIdPrime"); ok {
		p.AffinityIDPrime = ptr.To(v)
	}
	if v, ok := intAt(rec, "affinityIdDecider"); ok {
		p.AffinityIDDecider = ptr.To(v)
	}
	p.Multicast = ptr.To(rec.Get("isMulticastOverTransitEnabled").Bool())
	if h.AffinityPrime != nil {
		p.AffinityIDPrime = ptr.To(*h.AffinityPrime)
		p.AffinityIDDecider = ptr.To(*h.AffinityDecider)
	}
	if h.Multicast != nil {
		p.Multicast = ptr.To(*h.Multicast)
	}
	return p
}

func (b *builder) ipTransit(h IPHandoffInput, slot engine.Option[gjson.Result], transit engine.Option[Transit]) (*IPPayload, error) {
	t, _ := transit.Get()
	rec, exists := slot.Get()
	label := h.label(b.in.DeviceIP)

	p := &IPPayload{
		ID:               rec.Get("id").String(),
		NetworkDeviceID:  b.od.NetworkDeviceID,
		FabricID:         b.obs.FabricID,
		TransitNetworkID: t.ID,
		InterfaceName:    h.InterfaceName,
		PoolName:         rec.Get("externalConnectivityIpPoolName").String(),
		VirtualNetwork:   rec.Get("virtualNetworkName").String(),
		VlanID:           int(rec.Get("vlanId").Int()),
		LocalIP:          rec.Get("localIpAddress").String(),
		RemoteIP:         rec.Get("remoteIpAddress").String(),
		LocalIPv6:        rec.Get("localIpv6Address").String(),
		RemoteIPv6:       rec.Get("remoteIpv6Address").String(),
	}
	if v, ok := intAt(rec, "tcpMssAdjustment"); ok {
		p.TCPMss = ptr.To(v)
	}

	if h.VirtualNetwork != "" {
		p.VirtualNetwork = h.VirtualNetwork
	}
	if h.VlanID != nil {
		p.VlanID = *h.VlanID
	}
	if h.TCPMss != nil {
		p.TCPMss = ptr.To(*h.TCPMss)
	}
	switch {
	case h.PoolName != "":
		// The pool supersedes explicit addresses.
		p.PoolName = h.PoolName
	case h.LocalIP != "":
		p.LocalIP, p.RemoteIP = h.LocalIP, h.RemoteIP
		if h.LocalIPv6 != "" {
			p.LocalIPv6, p.RemoteIPv6 = h.LocalIPv6, h.RemoteIPv6
		}
	}

	if !exists {
		switch {
		case p.VlanID == 0:
			return nil, util.NewMissingRequiredError(label, keyVlanID)
		case p.VirtualNetwork == "":
			return nil, util.NewMissingRequiredError(label, keyVirtualNetwork)
		case p.PoolName == "" && p.LocalIP == "":
			return nil, util.NewMissingRequiredError(label, keyPoolName)
		}
		if p.PoolName != "" {
			p.LocalIP, p.RemoteIP, p.LocalIPv6, p.RemoteIPv6 = "", "", "", ""
		}
		return p, nil
	}
	if d := ipImmutable.Diff(rec, engine.JSON(p)); len(d) > 0 {
		return nil, util.NewImmutableFieldError(label, d[0].Field, d[0].Have, d[0].Want)
	}
	return p, nil
}

func stringAt(r gjson.Result, path string) (string, bool) {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
		return "", false
	}
	return v.String(), true
}

func intAt(r gjson.Result, path string) (int, bool) {
	v := r.Get(path)
	if !v.Exists() || v.Type != gjson.Number {
		return 0, false
	}
	return int(v.Int()), true
}

func dedupe(in []string) []string {
	var out []string
	for _, s := range in {
		if !hasString(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func appendMissing(list []string, s string) []string {
	if hasString(list, s) {
		return list
	}
	return append(list, s)
}

func sameSet(a, b []string) bool {
	x, y := dedupe(a), dedupe(b)
	if len(x) != len(y) {
		return false
	}
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
