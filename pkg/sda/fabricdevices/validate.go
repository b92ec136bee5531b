package fabricdevices

import (
	"fmt"

	"github.com/newtron-network/newtcc/pkg/util"
)

const (
	minBorderPriority = 1
	maxBorderPriority = 9
	minPrependCount   = 1
	maxPrependCount   = 10
	maxAffinityID     = 2147483647
	minTCPMss         = 500
	maxTCPMss         = 1440
)

// Validate checks the value domains of a decoded block. It runs before any
// controller call; every violation is reported together.
func Validate(in *BlockInput, state string) error {
	v := &util.ValidationBuilder{}
	present := state != "absent"

	v.Add(in.FabricName != "", keyFabricName+": must not be empty")
	v.Add(len(in.Devices) > 0, keyDeviceConfig+": at least one device is required")

	seen := make(map[string]int)
	for i, d := range in.Devices {
		path := fmt.Sprintf("%s[%d]", keyDeviceConfig, i)
		if !util.IsValidIPv4(d.DeviceIP) {
			v.AddErrorf("%s.%s: %q is not a valid IPv4 address", path, keyDeviceIP, d.DeviceIP)
		} else if prev, dup := seen[d.DeviceIP]; dup {
			v.AddErrorf("%s.%s: %s already configured by %s[%d]", path, keyDeviceIP, d.DeviceIP, keyDeviceConfig, prev)
		} else {
			seen[d.DeviceIP] = i
		}

		validateRoles(v, path, d.Roles)
		if present && d.Roles != nil {
			border := d.hasRole(RoleBorder)
			switch {
			case border && d.Borders == nil:
				v.AddErrorf("%s.%s: required when %s includes %s", path, keyBordersSettings, keyDeviceRoles, RoleBorder)
			case !border && d.Borders != nil:
				v.AddErrorf("%s.%s: only allowed when %s includes %s", path, keyBordersSettings, keyDeviceRoles, RoleBorder)
			}
		}
		if d.Borders != nil {
			validateBorders(v, path+"."+keyBordersSettings, d.Borders)
		}
	}
	return v.Build()
}

func validateRoles(v *util.ValidationBuilder, path string, roles []string) {
	set := make(map[string]bool)
	for _, r := range roles {
		if !hasString(knownRoles, r) {
			v.AddErrorf("%s.%s: unknown role %q", path, keyDeviceRoles, r)
		}
		set[r] = true
	}
	if len(set) == 2 && set[RoleControlPlane] && set[RoleEdge] {
		v.AddErrorf("%s.%s: %s and %s cannot be combined without another role", path, keyDeviceRoles, RoleControlPlane, RoleEdge)
	}
}

func validateBorders(v *util.ValidationBuilder, path string, b *BordersInput) {
	if l3 := b.Layer3; l3 != nil {
		p := path + "." + keyLayer3Settings
		if l3.ASN != nil {
			v.Check(p+"."+keyASN, util.ValidateASN(*l3.ASN))
		}
		if l3.BorderPriority != nil {
			v.Check(p+"."+keyBorderPriority, util.ValidateRange("border priority", int64(*l3.BorderPriority), minBorderPriority, maxBorderPriority))
		}
		if l3.PrependCount != nil {
			v.Check(p+"."+keyPrependCount, util.ValidateRange("prepend count", int64(*l3.PrependCount), minPrependCount, maxPrependCount))
		}
	}

	if s := b.SDATransit; s != nil {
		p := path + "." + keySDATransit
		v.Add(s.TransitName != "", p+"."+keyTransitName+": must not be empty")
		if (s.AffinityPrime == nil) != (s.AffinityDecider == nil) {
			v.AddErrorf("%s: %s and %s must be given together", p, keyAffinityPrime, keyAffinityDecider)
		}
		if s.AffinityPrime != nil {
			v.Check(p+"."+keyAffinityPrime, util.ValidateRange("affinity id", int64(*s.AffinityPrime), 0, maxAffinityID))
		}
		if s.AffinityDecider != nil {
			v.Check(p+"."+keyAffinityDecider, util.ValidateRange("affinity id", int64(*s.AffinityDecider), 0, maxAffinityID))
		}
	}

	keys := make(map[string]int)
	for i, h := range b.Layer2 {
		p := fmt.Sprintf("%s.%s[%d]", path, keyLayer2Handoff, i)
		v.Check(p+"."+keyInternalVlan, util.ValidateVLAN(h.InternalVlan))
		if h.ExternalVlan != nil {
			v.Check(p+"."+keyExternalVlan, util.ValidateVLAN(*h.ExternalVlan))
		}
		k := fmt.Sprintf("%s/%d", h.InterfaceName, h.InternalVlan)
		if prev, dup := keys[k]; dup {
			v.AddErrorf("%s: duplicates %s[%d]", p, keyLayer2Handoff, prev)
		}
		keys[k] = i
	}

	keys = make(map[string]int)
	for i, h := range b.IPTransit {
		p := fmt.Sprintf("%s.%s[%d]", path, keyIPTransit, i)
		validateIPHandoff(v, p, h)
		k := ipKey(h.TransitName, h)
		if prev, dup := keys[k]; dup {
			v.AddErrorf("%s: duplicates %s[%d]", p, keyIPTransit, prev)
		}
		keys[k] = i
	}
}

func validateIPHandoff(v *util.ValidationBuilder, p string, h IPHandoffInput) {
	v.Add(h.TransitName != "", p+"."+keyTransitName+": must not be empty")
	v.Add(h.InterfaceName != "", p+"."+keyInterfaceName+": must not be empty")
	if h.VirtualNetwork == "" && h.VlanID == nil {
		v.AddErrorf("%s: one of %s or %s is required", p, keyVirtualNetwork, keyVlanID)
	}
	if h.VlanID != nil {
		v.Check(p+"."+keyVlanID, util.ValidateVLAN(*h.VlanID))
	}
	if h.TCPMss != nil {
		v.Check(p+"."+keyTCPMss, util.ValidateRange("TCP MSS adjustment", int64(*h.TCPMss), minTCPMss, maxTCPMss))
	}

	if h.PoolName != "" {
		return
	}
	if (h.LocalIP == "") != (h.RemoteIP == "") {
		v.AddErrorf("%s: %s and %s must be given together", p, keyLocalIP, keyRemoteIP)
	}
	if (h.LocalIPv6 == "") != (h.RemoteIPv6 == "") {
		v.AddErrorf("%s: %s and %s must be given together", p, keyLocalIPv6, keyRemoteIPv6)
	}
	for _, f := range []struct{ key, val string }{{keyLocalIP, h.LocalIP}, {keyRemoteIP, h.RemoteIP}} {
		if f.val != "" && !util.IsValidIPv4CIDR(f.val) {
			v.AddErrorf("%s.%s: %q is not an IPv4 address with prefix length", p, f.key, f.val)
		}
	}
	for _, f := range []struct{ key, val string }{{keyLocalIPv6, h.LocalIPv6}, {keyRemoteIPv6, h.RemoteIPv6}} {
		if f.val != "" && !util.IsValidIPv6CIDR(f.val) {
			v.AddErrorf("%s.%s: %q is not an IPv6 address with prefix length", p, f.key, f.val)
		}
	}
}

// ipKey identifies an IP handoff: transit, interface, and the virtual
// network when given, the VLAN otherwise.
func ipKey(transit string, h IPHandoffInput) string {
	if h.VirtualNetwork != "" {
		return fmt.Sprintf("%s|%s|vn:%s", transit, h.InterfaceName, h.VirtualNetwork)
	}
	vlan := 0
	if h.VlanID != nil {
		vlan = *h.VlanID
	}
	return fmt.Sprintf("%s|%s|vlan:%d", transit, h.InterfaceName, vlan)
}
