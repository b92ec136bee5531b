package fabricdevices

import (
	"errors"
	"strings"
	"testing"

	"k8s.io/utils/ptr"

	"github.com/newtron-network/newtcc/pkg/util"
)

func border(b BordersInput) DeviceInput {
	return DeviceInput{DeviceIP: "10.0.0.1", Roles: []string{RoleBorder}, Borders: &b}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		device DeviceInput
		state  string
		want   string // substring of the error; empty means valid
	}{
		{
			name:   "control plane only",
			device: DeviceInput{DeviceIP: "10.0.0.1", Roles: []string{RoleControlPlane}},
		},
		{
			name:   "control plane and edge alone",
			device: DeviceInput{DeviceIP: "10.0.0.1", Roles: []string{RoleControlPlane, RoleEdge}},
			want:   "cannot be combined",
		},
		{
			name:   "control plane and edge with border",
			device: DeviceInput{DeviceIP: "10.0.0.1", Roles: []string{RoleControlPlane, RoleEdge, RoleBorder}, Borders: &BordersInput{}},
		},
		{
			name:   "unknown role",
			device: DeviceInput{DeviceIP: "10.0.0.1", Roles: []string{"SPINE"}},
			want:   `unknown role "SPINE"`,
		},
		{
			name:   "bad device ip",
			device: DeviceInput{DeviceIP: "10.0.0", Roles: []string{RoleEdge}},
			want:   "not a valid IPv4 address",
		},
		{
			name:   "border without settings",
			device: DeviceInput{DeviceIP: "10.0.0.1", Roles: []string{RoleBorder}},
			want:   "borders_settings: required",
		},
		{
			name:   "settings without border",
			device: DeviceInput{DeviceIP: "10.0.0.1", Roles: []string{RoleEdge}, Borders: &BordersInput{}},
			want:   "borders_settings: only allowed",
		},
		{
			name:   "settings without border under absent",
			device: DeviceInput{DeviceIP: "10.0.0.1", Borders: &BordersInput{Layer2: []L2HandoffInput{{InterfaceName: "Gi1/0/1", InternalVlan: 100}}}},
			state:  "absent",
		},
		{
			name:   "dotted ASN",
			device: border(BordersInput{Layer3: &Layer3Input{ASN: ptr.To("65000.10")}}),
		},
		{
			name:   "ASN out of range",
			device: border(BordersInput{Layer3: &Layer3Input{ASN: ptr.To("4294967296")}}),
			want:   "local_autonomous_system_number",
		},
		{
			name:   "border priority 10 is the unset sentinel",
			device: border(BordersInput{Layer3: &Layer3Input{BorderPriority: ptr.To(10)}}),
			want:   "border priority must be between 1 and 9",
		},
		{
			name:   "prepend count zero",
			device: border(BordersInput{Layer3: &Layer3Input{PrependCount: ptr.To(0)}}),
			want:   "prepend count must be between 1 and 10",
		},
		{
			name:   "affinity zero is a value",
			device: border(BordersInput{SDATransit: &SDAHandoffInput{TransitName: "T", AffinityPrime: ptr.To(0), AffinityDecider: ptr.To(0)}}),
		},
		{
			name:   "affinity alone",
			device: border(BordersInput{SDATransit: &SDAHandoffInput{TransitName: "T", AffinityPrime: ptr.To(1)}}),
			want:   "must be given together",
		},
		{
			name:   "reserved internal vlan",
			device: border(BordersInput{Layer2: []L2HandoffInput{{InterfaceName: "Gi1/0/1", InternalVlan: 1002, ExternalVlan: ptr.To(200)}}}),
			want:   "VLAN ID 1002 is reserved",
		},
		{
			name:   "reserved external vlan",
			device: border(BordersInput{Layer2: []L2HandoffInput{{InterfaceName: "Gi1/0/1", InternalVlan: 100, ExternalVlan: ptr.To(2046)}}}),
			want:   "VLAN ID 2046 is reserved",
		},
		{
			name: "duplicate layer2 handoff",
			device: border(BordersInput{Layer2: []L2HandoffInput{
				{InterfaceName: "Gi1/0/1", InternalVlan: 100, ExternalVlan: ptr.To(200)},
				{InterfaceName: "Gi1/0/1", InternalVlan: 100, ExternalVlan: ptr.To(201)},
			}}),
			want: "duplicates layer2_handoff[0]",
		},
		{
			name:   "ip handoff by pool",
			device: border(BordersInput{IPTransit: []IPHandoffInput{{TransitName: "T", InterfaceName: "Te1/0/1", PoolName: "P", VirtualNetwork: "VN", VlanID: ptr.To(440), TCPMss: ptr.To(501)}}}),
		},
		{
			name:   "ip handoff needs vn or vlan",
			device: border(BordersInput{IPTransit: []IPHandoffInput{{TransitName: "T", InterfaceName: "Te1/0/1", PoolName: "P"}}}),
			want:   "one of virtual_network_name or vlan_id is required",
		},
		{
			name:   "tcp mss out of range",
			device: border(BordersInput{IPTransit: []IPHandoffInput{{TransitName: "T", InterfaceName: "Te1/0/1", VlanID: ptr.To(440), TCPMss: ptr.To(1500)}}}),
			want:   "TCP MSS adjustment must be between 500 and 1440",
		},
		{
			name: "ipv6 both or neither",
			device: border(BordersInput{IPTransit: []IPHandoffInput{{TransitName: "T", InterfaceName: "Te1/0/1", VlanID: ptr.To(440),
				LocalIP: "10.1.1.1/30", RemoteIP: "10.1.1.2/30", LocalIPv6: "2001:db8::1/126"}}}),
			want: "local_ipv6_address and remote_ipv6_address must be given together",
		},
		{
			name: "ipv4 without prefix",
			device: border(BordersInput{IPTransit: []IPHandoffInput{{TransitName: "T", InterfaceName: "Te1/0/1", VlanID: ptr.To(440),
				LocalIP: "10.1.1.1", RemoteIP: "10.1.1.2/30"}}}),
			want: `"10.1.1.1" is not an IPv4 address with prefix length`,
		},
		{
			name: "pool supersedes malformed addresses",
			device: border(BordersInput{IPTransit: []IPHandoffInput{{TransitName: "T", InterfaceName: "Te1/0/1", VlanID: ptr.To(440),
				PoolName: "P", LocalIP: "bogus"}}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.state
			if state == "" {
				state = "present"
			}
			err := Validate(&BlockInput{FabricName: "Global/USA/SAN-JOSE", Devices: []DeviceInput{tt.device}}, state)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateDuplicateDevices(t *testing.T) {
	in := &BlockInput{FabricName: "f", Devices: []DeviceInput{
		{DeviceIP: "10.0.0.1", Roles: []string{RoleEdge}},
		{DeviceIP: "10.0.0.1", Roles: []string{RoleEdge}},
	}}
	err := Validate(in, "present")
	if err == nil || !strings.Contains(err.Error(), "already configured by device_config[0]") {
		t.Errorf("expected duplicate device error, got %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	in := &BlockInput{Devices: []DeviceInput{
		{DeviceIP: "x", Roles: []string{RoleControlPlane, RoleEdge}},
	}}
	err := Validate(in, "present")
	var ve *util.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *util.ValidationError, got %v", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("errors = %v, want fabric name, device ip and role pair", ve.Errors)
	}
}
