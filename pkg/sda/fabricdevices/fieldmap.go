package fabricdevices

import "github.com/newtron-network/newtcc/pkg/engine"

// Playbook names. Controller names appear only in the payload struct tags
// and in the field maps below.
const (
	keyFabricName       = "fabric_name"
	keyDeviceConfig     = "device_config"
	keyDeviceIP         = "device_ip"
	keyDeviceRoles      = "device_roles"
	keyBordersSettings  = "borders_settings"
	keyDeleteDevice     = "delete_fabric_device"
	keyLayer3Settings   = "layer3_settings"
	keyIPTransit        = "layer3_handoff_ip_transit"
	keySDATransit       = "layer3_handoff_sda_transit"
	keyLayer2Handoff    = "layer2_handoff"
	keyASN              = "local_autonomous_system_number"
	keyDefaultExit      = "is_default_exit"
	keyImportRoutes     = "import_external_routes"
	keyBorderPriority   = "border_priority"
	keyPrependCount     = "prepend_autonomous_system_count"
	keyTransitName      = "transit_network_name"
	keyInterfaceName    = "interface_name"
	keyPoolName         = "external_connectivity_ip_pool_name"
	keyVirtualNetwork   = "virtual_network_name"
	keyVlanID           = "vlan_id"
	keyTCPMss           = "tcp_mss_adjustment"
	keyLocalIP          = "local_ip_address"
	keyRemoteIP         = "remote_ip_address"
	keyLocalIPv6        = "local_ipv6_address"
	keyRemoteIPv6       = "remote_ipv6_address"
	keyAffinityPrime    = "affinity_id_prime"
	keyAffinityDecider  = "affinity_id_decider"
	keyConnectedToInet  = "connected_to_internet"
	keyMulticastTransit = "is_multicast_over_transit_enabled"
	keyInternalVlan     = "internal_vlan_id"
	keyExternalVlan     = "external_vlan_id"
)

// Unset sentinels the controller reports for optional layer 3 settings.
const (
	unsetBorderPriority = 10
	unsetPrependCount   = 0
)

const layer3Path = "borderDeviceSettings.layer3Settings."

// deviceFields decide whether an existing fabric device needs an update.
var deviceFields = engine.FieldMap{
	{Input: "border_types", Observed: "borderDeviceSettings.borderTypes", Desired: "borderDeviceSettings.borderTypes", Unordered: true},
	{Input: keyASN, Observed: layer3Path + "localAutonomousSystemNumber", Desired: layer3Path + "localAutonomousSystemNumber"},
	{Input: keyDefaultExit, Observed: layer3Path + "isDefaultExit", Desired: layer3Path + "isDefaultExit"},
	{Input: keyImportRoutes, Observed: layer3Path + "importExternalRoutes", Desired: layer3Path + "importExternalRoutes"},
	{Input: keyBorderPriority, Observed: layer3Path + "borderPriority", Desired: layer3Path + "borderPriority", Default: unsetBorderPriority},
	{Input: keyPrependCount, Observed: layer3Path + "prependAutonomousSystemCount", Desired: layer3Path + "prependAutonomousSystemCount", Default: unsetPrependCount},
}

// sdaFields decide whether an existing SDA transit handoff needs an update.
var sdaFields = engine.FieldMap{
	{Input: keyAffinityPrime, Observed: "affinityIdPrime", Desired: "affinityIdPrime"},
	{Input: keyAffinityDecider, Observed: "affinityIdDecider", Desired: "affinityIdDecider"},
	{Input: keyConnectedToInet, Observed: "connectedToInternet", Desired: "connectedToInternet", Default: false},
	{Input: keyMulticastTransit, Observed: "isMulticastOverTransitEnabled", Desired: "isMulticastOverTransitEnabled", Default: false},
}

// ipFields decide whether an existing IP transit handoff needs an update.
// Every other IP handoff field is immutable.
var ipFields = engine.FieldMap{
	{Input: keyTCPMss, Observed: "tcpMssAdjustment", Desired: "tcpMssAdjustment"},
}

// ipImmutable are compared when a playbook entry matches an existing IP
// handoff; any difference fails the device.
var ipImmutable = engine.FieldMap{
	{Input: keyVlanID, Observed: "vlanId", Desired: "vlanId"},
	{Input: keyVirtualNetwork, Observed: "virtualNetworkName", Desired: "virtualNetworkName"},
	{Input: keyPoolName, Observed: "externalConnectivityIpPoolName", Desired: "externalConnectivityIpPoolName"},
	{Input: keyLocalIP, Observed: "localIpAddress", Desired: "localIpAddress"},
	{Input: keyRemoteIP, Observed: "remoteIpAddress", Desired: "remoteIpAddress"},
	{Input: keyLocalIPv6, Observed: "localIpv6Address", Desired: "localIpv6Address"},
	{Input: keyRemoteIPv6, Observed: "remoteIpv6Address", Desired: "remoteIpv6Address"},
}

// l2Immutable are compared when a playbook entry matches an existing L2
// handoff, which has no update operation.
var l2Immutable = engine.FieldMap{
	{Input: keyExternalVlan, Observed: "externalVlanId", Desired: "externalVlanId"},
}

// layer3Immutable are fixed once a border has layer 3 settings.
var layer3Immutable = engine.FieldMap{
	{Input: keyASN, Observed: layer3Path + "localAutonomousSystemNumber", Desired: layer3Path + "localAutonomousSystemNumber"},
	{Input: keyDefaultExit, Observed: layer3Path + "isDefaultExit", Desired: layer3Path + "isDefaultExit"},
	{Input: keyImportRoutes, Observed: layer3Path + "importExternalRoutes", Desired: layer3Path + "importExternalRoutes"},
}
