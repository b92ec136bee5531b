package catalyst

import (
	"fmt"
	"net/http"
)

// Families accepted by Exec.
var Families = map[string]bool{
	"sda":              true,
	"devices":          true,
	"site_design":      true,
	"network_settings": true,
	"task":             true,
	"sites":            true,
}

// Endpoint describes how a catalogued function maps onto HTTP.
type Endpoint struct {
	Method string
	Path   string   // may contain {id}
	Query  []string // Params keys copied into the query string when present
	Body   bool     // Params[PayloadKey] is sent as the JSON body
}

const (
	sdaBase         = "/dna/intent/api/v1/sda"
	fabricDevices   = sdaBase + "/fabricDevices"
	layer2Handoffs  = fabricDevices + "/layer2Handoffs"
	sdaTransitL3    = fabricDevices + "/layer3Handoffs/sdaTransits"
	ipTransitL3     = fabricDevices + "/layer3Handoffs/ipTransits"
	pageQuery       = "offset"
	limitQuery      = "limit"
	fabricQuery     = "fabricId"
	networkDevQuery = "networkDeviceId"
)

var handoffQuery = []string{fabricQuery, networkDevQuery, pageQuery, limitQuery}

// Catalogue maps "family/function" to its endpoint.
var Catalogue = map[string]Endpoint{
	"sda/get_fabric_sites":   {Method: http.MethodGet, Path: sdaBase + "/fabricSites", Query: []string{"id", "siteId", pageQuery, limitQuery}},
	"sda/get_fabric_zones":   {Method: http.MethodGet, Path: sdaBase + "/fabricZones", Query: []string{"id", "siteId", pageQuery, limitQuery}},
	"sda/get_fabric_devices": {Method: http.MethodGet, Path: fabricDevices, Query: []string{fabricQuery, networkDevQuery, "deviceRoles", pageQuery, limitQuery}},

	"sda/add_fabric_devices":         {Method: http.MethodPost, Path: fabricDevices, Body: true},
	"sda/update_fabric_devices":      {Method: http.MethodPut, Path: fabricDevices, Body: true},
	"sda/delete_fabric_device_by_id": {Method: http.MethodDelete, Path: fabricDevices + "/{id}"},

	"sda/get_fabric_devices_layer2_handoffs":        {Method: http.MethodGet, Path: layer2Handoffs, Query: handoffQuery},
	"sda/add_fabric_devices_layer2_handoffs":        {Method: http.MethodPost, Path: layer2Handoffs, Body: true},
	"sda/delete_fabric_device_layer2_handoff_by_id": {Method: http.MethodDelete, Path: layer2Handoffs + "/{id}"},

	"sda/get_fabric_devices_layer3_handoffs_with_sda_transit":    {Method: http.MethodGet, Path: sdaTransitL3, Query: handoffQuery},
	"sda/add_fabric_devices_layer3_handoffs_with_sda_transit":    {Method: http.MethodPost, Path: sdaTransitL3, Body: true},
	"sda/update_fabric_devices_layer3_handoffs_with_sda_transit": {Method: http.MethodPut, Path: sdaTransitL3, Body: true},
	"sda/delete_fabric_device_layer3_handoffs_with_sda_transit":  {Method: http.MethodDelete, Path: sdaTransitL3, Query: []string{fabricQuery, networkDevQuery}},

	"sda/get_fabric_devices_layer3_handoffs_with_ip_transit":        {Method: http.MethodGet, Path: ipTransitL3, Query: handoffQuery},
	"sda/add_fabric_devices_layer3_handoffs_with_ip_transit":        {Method: http.MethodPost, Path: ipTransitL3, Body: true},
	"sda/update_fabric_devices_layer3_handoffs_with_ip_transit":     {Method: http.MethodPut, Path: ipTransitL3, Body: true},
	"sda/delete_fabric_device_layer3_handoff_with_ip_transit_by_id": {Method: http.MethodDelete, Path: ipTransitL3 + "/{id}"},

	"sda/get_transit_networks":    {Method: http.MethodGet, Path: sdaBase + "/transitNetworks", Query: []string{"id", "name", "type", pageQuery, limitQuery}},
	"sda/get_provisioned_devices": {Method: http.MethodGet, Path: sdaBase + "/provisionDevices", Query: []string{"id", networkDevQuery, "siteId", pageQuery, limitQuery}},

	"site_design/get_sites":                          {Method: http.MethodGet, Path: "/dna/intent/api/v1/sites", Query: []string{"name", "nameHierarchy", "type", pageQuery, limitQuery}},
	"devices/get_device_list":                        {Method: http.MethodGet, Path: "/dna/intent/api/v1/network-device", Query: []string{"managementIpAddress", "hostname", "id", pageQuery, limitQuery}},
	"network_settings/retrieves_ip_address_subpools": {Method: http.MethodGet, Path: "/dna/intent/api/v1/ipam/siteIpAddressPools", Query: []string{"siteId", pageQuery, limitQuery}},

	"task/get_tasks_by_id":        {Method: http.MethodGet, Path: "/dna/intent/api/v1/tasks/{id}"},
	"task/get_task_details_by_id": {Method: http.MethodGet, Path: "/dna/intent/api/v1/tasks/{id}/detail"},
}

// Lookup returns the endpoint for family/function.
func Lookup(family, function string) (Endpoint, error) {
	if !Families[family] {
		return Endpoint{}, fmt.Errorf("unknown API family %q", family)
	}
	ep, ok := Catalogue[family+"/"+function]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown function %s/%s", family, function)
	}
	return ep, nil
}

// IsMutation reports whether the endpoint changes controller state and so
// returns a task id.
func (e Endpoint) IsMutation() bool {
	return e.Method != http.MethodGet
}
