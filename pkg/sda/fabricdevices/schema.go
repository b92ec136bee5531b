package fabricdevices

import "github.com/newtron-network/newtcc/pkg/playbook"

// Device roles the controller accepts.
const (
	RoleControlPlane = "CONTROL_PLANE_NODE"
	RoleEdge         = "EDGE_NODE"
	RoleBorder       = "BORDER_NODE"
	RoleWireless     = "WIRELESS_CONTROLLER_NODE"
)

// Border types.
const (
	BorderLayer2 = "LAYER_2"
	BorderLayer3 = "LAYER_3"
)

var knownRoles = []string{RoleControlPlane, RoleEdge, RoleBorder, RoleWireless}

var layer3SettingsSchema = playbook.Schema{
	keyASN:            {Type: playbook.TypeStr},
	keyDefaultExit:    {Type: playbook.TypeBool},
	keyImportRoutes:   {Type: playbook.TypeBool},
	keyBorderPriority: {Type: playbook.TypeInt},
	keyPrependCount:   {Type: playbook.TypeInt},
}

var ipTransitSchema = playbook.Schema{
	keyTransitName:    {Type: playbook.TypeStr, Required: true},
	keyInterfaceName:  {Type: playbook.TypeStr, Required: true},
	keyPoolName:       {Type: playbook.TypeStr},
	keyVirtualNetwork: {Type: playbook.TypeStr},
	keyVlanID:         {Type: playbook.TypeInt},
	keyTCPMss:         {Type: playbook.TypeInt},
	keyLocalIP:        {Type: playbook.TypeStr},
	keyRemoteIP:       {Type: playbook.TypeStr},
	keyLocalIPv6:      {Type: playbook.TypeStr},
	keyRemoteIPv6:     {Type: playbook.TypeStr},
}

var sdaTransitSchema = playbook.Schema{
	keyTransitName:      {Type: playbook.TypeStr, Required: true},
	keyAffinityPrime:    {Type: playbook.TypeInt},
	keyAffinityDecider:  {Type: playbook.TypeInt},
	keyConnectedToInet:  {Type: playbook.TypeBool},
	keyMulticastTransit: {Type: playbook.TypeBool},
}

var layer2Schema = playbook.Schema{
	keyInterfaceName: {Type: playbook.TypeStr, Required: true},
	keyInternalVlan:  {Type: playbook.TypeInt, Required: true},
	keyExternalVlan:  {Type: playbook.TypeInt},
}

// Schema is the validator schema of one fabric_devices block.
var Schema = playbook.Schema{
	keyFabricName: {Type: playbook.TypeStr, Required: true, Aliases: []string{"fabric_site_name", "site_name_hierarchy"}},
	keyDeviceConfig: {Type: playbook.TypeList, Elements: playbook.TypeDict, Required: true, Options: playbook.Schema{
		keyDeviceIP:     {Type: playbook.TypeStr, Required: true, Aliases: []string{"ip_address", "management_ip_address"}},
		keyDeviceRoles:  {Type: playbook.TypeList, Elements: playbook.TypeStr, Upper: true, Choices: knownRoles},
		keyDeleteDevice: {Type: playbook.TypeBool, Default: false},
		keyBordersSettings: {Type: playbook.TypeDict, Options: playbook.Schema{
			keyLayer3Settings: {Type: playbook.TypeDict, Options: layer3SettingsSchema},
			keyIPTransit:      {Type: playbook.TypeList, Elements: playbook.TypeDict, Options: ipTransitSchema},
			keySDATransit:     {Type: playbook.TypeDict, Options: sdaTransitSchema},
			keyLayer2Handoff:  {Type: playbook.TypeList, Elements: playbook.TypeDict, Options: layer2Schema},
		}},
	}},
}
