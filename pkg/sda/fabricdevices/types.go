package fabricdevices

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/newtron-network/newtcc/pkg/engine"
)

// Result kinds reported for this family.
const (
	KindDevice     = "fabric_device"
	KindLayer2     = "layer2_handoff"
	KindSDATransit = "layer3_handoff_sda_transit"
	KindIPTransit  = "layer3_handoff_ip_transit"
	KindSite       = "fabric_site"
)

// pubSubTransit is the transit type whose SDA handoffs carry affinity and
// multicast settings.
const pubSubTransit = "SDA_LISP_PUB_SUB_TRANSIT"

// wirelessFamily devices are not provisioned to a site before joining.
const wirelessFamily = "Wireless Controller"

// ============================================================================
// Playbook input
// ============================================================================

// BlockInput is one validated fabric_devices block. Pointer fields are nil
// when the playbook leaves them out, which is distinct from zero.
type BlockInput struct {
	FabricName string        `yaml:"fabric_name"`
	Devices    []DeviceInput `yaml:"device_config"`
}

// DeviceInput is one device_config entry.
type DeviceInput struct {
	DeviceIP string        `yaml:"device_ip"`
	Roles    []string      `yaml:"device_roles"`
	Delete   bool          `yaml:"delete_fabric_device"`
	Borders  *BordersInput `yaml:"borders_settings"`
}

// BordersInput is the borders_settings of a device.
type BordersInput struct {
	Layer3     *Layer3Input     `yaml:"layer3_settings"`
	IPTransit  []IPHandoffInput `yaml:"layer3_handoff_ip_transit"`
	SDATransit *SDAHandoffInput `yaml:"layer3_handoff_sda_transit"`
	Layer2     []L2HandoffInput `yaml:"layer2_handoff"`
}

// Layer3Input holds the border's layer 3 settings.
type Layer3Input struct {
	ASN            *string `yaml:"local_autonomous_system_number"`
	DefaultExit    *bool   `yaml:"is_default_exit"`
	ImportRoutes   *bool   `yaml:"import_external_routes"`
	BorderPriority *int    `yaml:"border_priority"`
	PrependCount   *int    `yaml:"prepend_autonomous_system_count"`
}

// IPHandoffInput is one layer 3 handoff over an IP transit.
type IPHandoffInput struct {
	TransitName    string `yaml:"transit_network_name"`
	InterfaceName  string `yaml:"interface_name"`
	PoolName       string `yaml:"external_connectivity_ip_pool_name"`
	VirtualNetwork string `yaml:"virtual_network_name"`
	VlanID         *int   `yaml:"vlan_id"`
	TCPMss         *int   `yaml:"tcp_mss_adjustment"`
	LocalIP        string `yaml:"local_ip_address"`
	RemoteIP       string `yaml:"remote_ip_address"`
	LocalIPv6      string `yaml:"local_ipv6_address"`
	RemoteIPv6     string `yaml:"remote_ipv6_address"`
}

// SDAHandoffInput is the layer 3 handoff over an SDA transit.
type SDAHandoffInput struct {
	TransitName         string `yaml:"transit_network_name"`
	AffinityPrime       *int   `yaml:"affinity_id_prime"`
	AffinityDecider     *int   `yaml:"affinity_id_decider"`
	ConnectedToInternet *bool  `yaml:"connected_to_internet"`
	Multicast           *bool  `yaml:"is_multicast_over_transit_enabled"`
}

// L2HandoffInput is one layer 2 handoff.
type L2HandoffInput struct {
	InterfaceName string `yaml:"interface_name"`
	InternalVlan  int    `yaml:"internal_vlan_id"`
	ExternalVlan  *int   `yaml:"external_vlan_id"`
}

// HasHandoffs reports whether any handoff sub-key is given. Under absent
// this restricts deletion to the listed handoffs.
func (d DeviceInput) HasHandoffs() bool {
	b := d.Borders
	return b != nil && (len(b.IPTransit) > 0 || b.SDATransit != nil || len(b.Layer2) > 0)
}

// deletesDevice reports whether an absent run removes the device itself
// rather than only the listed handoffs.
func deletesDevice(d DeviceInput) bool {
	return d.Delete || !d.HasHandoffs()
}

func (d DeviceInput) hasRole(role string) bool {
	return hasString(d.Roles, role)
}

func (h L2HandoffInput) label(ip string) string {
	return fmt.Sprintf("%s %s vlan %d", ip, h.InterfaceName, h.InternalVlan)
}

func (h SDAHandoffInput) label(ip string) string {
	return fmt.Sprintf("%s transit %s", ip, h.TransitName)
}

func (h IPHandoffInput) label(ip string) string {
	if h.VirtualNetwork != "" {
		return fmt.Sprintf("%s %s transit %s vn %s", ip, h.InterfaceName, h.TransitName, h.VirtualNetwork)
	}
	vlan := 0
	if h.VlanID != nil {
		vlan = *h.VlanID
	}
	return fmt.Sprintf("%s %s transit %s vlan %d", ip, h.InterfaceName, h.TransitName, vlan)
}

// ============================================================================
// Controller payloads
// ============================================================================

// DevicePayload is the add/update body of one fabric device.
type DevicePayload struct {
	ID              string                 `json:"id,omitempty"`
	NetworkDeviceID string                 `json:"networkDeviceId"`
	FabricID        string                 `json:"fabricId"`
	DeviceRoles     []string               `json:"deviceRoles"`
	BorderSettings  *BorderSettingsPayload `json:"borderDeviceSettings,omitempty"`
}

// BorderSettingsPayload is borderDeviceSettings.
type BorderSettingsPayload struct {
	BorderTypes []string       `json:"borderTypes"`
	Layer3      *Layer3Payload `json:"layer3Settings,omitempty"`
}

// Layer3Payload is borderDeviceSettings.layer3Settings. Priority and
// prepend count are left out when unset.
type Layer3Payload struct {
	LocalASN             string `json:"localAutonomousSystemNumber"`
	IsDefaultExit        bool   `json:"isDefaultExit"`
	ImportExternalRoutes bool   `json:"importExternalRoutes"`
	BorderPriority       *int   `json:"borderPriority,omitempty"`
	PrependCount         *int   `json:"prependAutonomousSystemCount,omitempty"`
}

// L2Payload is the add body of one layer 2 handoff.
type L2Payload struct {
	NetworkDeviceID string `json:"networkDeviceId"`
	FabricID        string `json:"fabricId"`
	InterfaceName   string `json:"interfaceName"`
	InternalVlanID  int    `json:"internalVlanId"`
	ExternalVlanID  int    `json:"externalVlanId"`
}

// SDAPayload is the add/update body of the SDA transit handoff. The
// affinity and multicast members are sent only for pub-sub transits.
type SDAPayload struct {
	NetworkDeviceID     string `json:"networkDeviceId"`
	FabricID            string `json:"fabricId"`
	TransitNetworkID    string `json:"transitNetworkId"`
	AffinityIDPrime     *int   `json:"affinityIdPrime,omitempty"`
	AffinityIDDecider   *int   `json:"affinityIdDecider,omitempty"`
	ConnectedToInternet bool   `json:"connectedToInternet"`
	Multicast           *bool  `json:"isMulticastOverTransitEnabled,omitempty"`
}

// IPPayload is the add/update body of one IP transit handoff.
type IPPayload struct {
	ID               string `json:"id,omitempty"`
	NetworkDeviceID  string `json:"networkDeviceId"`
	FabricID         string `json:"fabricId"`
	TransitNetworkID string `json:"transitNetworkId"`
	InterfaceName    string `json:"interfaceName"`
	PoolName         string `json:"externalConnectivityIpPoolName,omitempty"`
	VirtualNetwork   string `json:"virtualNetworkName,omitempty"`
	VlanID           int    `json:"vlanId"`
	TCPMss           *int   `json:"tcpMssAdjustment,omitempty"`
	LocalIP          string `json:"localIpAddress,omitempty"`
	RemoteIP         string `json:"remoteIpAddress,omitempty"`
	LocalIPv6        string `json:"localIpv6Address,omitempty"`
	RemoteIPv6       string `json:"remoteIpv6Address,omitempty"`
}

// ============================================================================
// Observed and desired state
// ============================================================================

// Transit is a resolved transit network.
type Transit struct {
	ID   string
	Name string
	Type string
}

// PubSub reports whether the transit is a LISP pub-sub SDA transit.
func (t Transit) PubSub() bool {
	return t.Type == pubSubTransit
}

// Observed is the controller state addressed by one block.
type Observed struct {
	Site     string
	SiteID   string
	FabricID string
	// Skip is set when the block needs no work at all, e.g. deleting from
	// a site that is not a fabric.
	Skip    string
	Devices []*ObservedDevice
}

// ObservedDevice is the state of one device_config entry. Handoff slots are
// parallel to the playbook's handoff lists; an absent handoff is None,
// never elided.
type ObservedDevice struct {
	IP              string
	Found           bool
	NetworkDeviceID string
	Family          string
	Hostname        string
	Record          engine.Option[gjson.Result]
	L2              []engine.Option[gjson.Result]
	SDA             engine.Option[gjson.Result]
	IP3             []engine.Option[gjson.Result]
	SDATransit      engine.Option[Transit]
	IPTransits      []engine.Option[Transit]
	// Attached is filled only when the device itself is to be deleted.
	Attached attached
	// Err holds an observation failure confined to this device.
	Err error
}

// Exists reports whether the device is already a fabric device.
func (o *ObservedDevice) Exists() bool {
	return o.Record.IsPresent()
}

// ID returns the fabric device id, or "" when the device is not in the
// fabric.
func (o *ObservedDevice) ID() string {
	rec, _ := o.Record.Get()
	return rec.Get("id").String()
}

// Roles returns the observed device roles.
func (o *ObservedDevice) Roles() []string {
	rec, _ := o.Record.Get()
	return stringsOf(rec.Get("deviceRoles"))
}

// Desired is the shaped payload set of one block.
type Desired struct {
	Devices []*DesiredDevice
}

// DesiredDevice holds the payloads for one device. Handoff slices are
// parallel to the observed slots.
type DesiredDevice struct {
	IP     string
	Device *DevicePayload
	L2     []*L2Payload
	SDA    *SDAPayload
	IP3    []*IPPayload
	// Err is a build failure confined to this device.
	Err error
}

func stringsOf(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
