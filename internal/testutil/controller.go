// Package testutil provides an in-memory controller and a controllable
// clock for package tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/util"
)

// Collections held by FakeController.
const (
	Sites           = "sites"
	FabricSites     = "fabricSites"
	FabricZones     = "fabricZones"
	Devices         = "devices"
	Provisioned     = "provisioned"
	Transits        = "transits"
	Pools           = "pools"
	FabricDevices   = "fabricDevices"
	Layer2Handoffs  = "layer2Handoffs"
	SDATransitL3    = "sdaTransitHandoffs"
	IPTransitL3     = "ipTransitHandoffs"
	taskCollection  = "tasks"
	defaultPageSize = 500
)

// Call is one recorded Exec.
type Call struct {
	Family   string
	Function string
	Params   catalyst.Params
	Items    int // number of payload items for list payloads
}

// Responder overrides the fake's handling of one function.
type Responder func(params catalyst.Params) (*catalyst.Response, error)

type listRoute struct {
	collection string
	filters    []string
}

var listRoutes = map[string]listRoute{
	"site_design/get_sites":                          {Sites, []string{"nameHierarchy", "name"}},
	"sda/get_fabric_sites":                           {FabricSites, []string{"id", "siteId"}},
	"sda/get_fabric_zones":                           {FabricZones, []string{"id", "siteId"}},
	"devices/get_device_list":                        {Devices, []string{"managementIpAddress", "id"}},
	"sda/get_provisioned_devices":                    {Provisioned, []string{"networkDeviceId", "siteId"}},
	"sda/get_transit_networks":                       {Transits, []string{"id", "name"}},
	"network_settings/retrieves_ip_address_subpools": {Pools, []string{"siteId"}},
	"sda/get_fabric_devices":                         {FabricDevices, []string{"fabricId", "networkDeviceId"}},
	"sda/get_fabric_devices_layer2_handoffs":         {Layer2Handoffs, []string{"fabricId", "networkDeviceId"}},
	"sda/get_fabric_devices_layer3_handoffs_with_sda_transit": {SDATransitL3, []string{"fabricId", "networkDeviceId"}},
	"sda/get_fabric_devices_layer3_handoffs_with_ip_transit":  {IPTransitL3, []string{"fabricId", "networkDeviceId"}},
}

// FakeController is an in-memory Catalyst Center. Records are stored as
// raw JSON and edited with sjson; every mutation returns a task that is
// already terminal unless a delay or failure was requested.
type FakeController struct {
	mu          sync.Mutex
	data        map[string][]string
	calls       []Call
	nextID      int
	tasks       map[string]*fakeTask
	failures    map[string]string
	responders  map[string]Responder
	pendingPoll int

	// OnCall, when set, runs before every Exec. Tests use it to advance
	// a FakeClock.
	OnCall func(c Call)
}

type fakeTask struct {
	polls   int
	pending int
	failure string
}

// NewFakeController returns an empty controller.
func NewFakeController() *FakeController {
	return &FakeController{
		data:       make(map[string][]string),
		tasks:      make(map[string]*fakeTask),
		failures:   make(map[string]string),
		responders: make(map[string]Responder),
	}
}

func (f *FakeController) newID(prefix string) string {
	f.nextID++
	return prefix + "-" + strconv.Itoa(f.nextID)
}

// Seed stores a record in collection. When raw has no "id" one is added.
// It returns the record's id.
func (f *FakeController) Seed(collection, raw string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(collection, raw)
}

func (f *FakeController) insert(collection, raw string) string {
	id := gjson.Get(raw, "id").String()
	if id == "" && collection != SDATransitL3 {
		id = f.newID(collection)
		raw, _ = sjson.Set(raw, "id", id)
	}
	f.data[collection] = append(f.data[collection], raw)
	return id
}

// AddSite seeds a site hierarchy node.
func (f *FakeController) AddSite(hierarchy string) string {
	return f.Seed(Sites, fmt.Sprintf(`{"nameHierarchy":%q,"type":"building"}`, hierarchy))
}

// AddFabricSite promotes siteID to a fabric site.
func (f *FakeController) AddFabricSite(siteID string) string {
	return f.Seed(FabricSites, fmt.Sprintf(`{"siteId":%q,"authenticationProfileName":"No Authentication"}`, siteID))
}

// AddFabricZone promotes siteID to a fabric zone.
func (f *FakeController) AddFabricZone(siteID string) string {
	return f.Seed(FabricZones, fmt.Sprintf(`{"siteId":%q}`, siteID))
}

// AddDevice seeds a managed network device.
func (f *FakeController) AddDevice(ip, family string) string {
	return f.Seed(Devices, fmt.Sprintf(`{"managementIpAddress":%q,"family":%q,"hostname":"dev-%s"}`, ip, family, ip))
}

// Provision marks deviceID provisioned to siteID.
func (f *FakeController) Provision(deviceID, siteID string) {
	f.Seed(Provisioned, fmt.Sprintf(`{"networkDeviceId":%q,"siteId":%q}`, deviceID, siteID))
}

// AddTransit seeds a transit network.
func (f *FakeController) AddTransit(name, transitType string) string {
	return f.Seed(Transits, fmt.Sprintf(`{"name":%q,"type":%q}`, name, transitType))
}

// AddPool reserves an IP pool in siteID.
func (f *FakeController) AddPool(siteID, name string) {
	f.Seed(Pools, fmt.Sprintf(`{"siteId":%q,"name":%q}`, siteID, name))
}

// Records returns the records of collection.
func (f *FakeController) Records(collection string) []gjson.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gjson.Result, 0, len(f.data[collection]))
	for _, raw := range f.data[collection] {
		out = append(out, gjson.Parse(raw))
	}
	return out
}

// Respond overrides the handling of function.
func (f *FakeController) Respond(function string, r Responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[function] = r
}

// FailNext makes the next mutation of function end in a FAILURE task whose
// detail carries reason. The mutation is not applied.
func (f *FakeController) FailNext(function, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[function] = reason
}

// DelayTasks keeps every new task IN_PROGRESS for n polls.
func (f *FakeController) DelayTasks(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingPoll = n
}

// Calls returns every recorded call.
func (f *FakeController) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of function.
func (f *FakeController) CallsTo(function string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Function == function {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns the recorded calls that change controller state, in
// order.
func (f *FakeController) Mutations() []Call {
	var out []Call
	for _, c := range f.Calls() {
		ep, err := catalyst.Lookup(c.Family, c.Function)
		if err == nil && ep.IsMutation() {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded calls.
func (f *FakeController) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Exec implements catalyst.Client.
func (f *FakeController) Exec(ctx context.Context, family, function string, params catalyst.Params) (*catalyst.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ep, err := catalyst.Lookup(family, function)
	if err != nil {
		return nil, err
	}

	items := payloadItems(params)
	call := Call{Family: family, Function: function, Params: params, Items: len(items)}
	if f.OnCall != nil {
		f.OnCall(call)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	r, override := f.responders[function]
	f.mu.Unlock()
	if override {
		return r(params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch function {
	case "get_tasks_by_id":
		return f.task(params)
	case "get_task_details_by_id":
		return f.taskDetail(params)
	}
	if route, ok := listRoutes[family+"/"+function]; ok {
		return f.list(route, params), nil
	}
	if !ep.IsMutation() {
		return envelope("[]"), nil
	}
	return f.mutate(function, params, items)
}

func payloadItems(params catalyst.Params) []gjson.Result {
	body, ok := params[catalyst.PayloadKey]
	if !ok || body == nil {
		return nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	r := gjson.ParseBytes(data)
	if r.IsArray() {
		return r.Array()
	}
	return []gjson.Result{r}
}

func envelope(payload string) *catalyst.Response {
	raw, _ := sjson.SetRaw(`{"version":"1.0"}`, "response", payload)
	return catalyst.NewResponse([]byte(raw))
}

func (f *FakeController) list(route listRoute, params catalyst.Params) *catalyst.Response {
	var matched []string
	for _, raw := range f.data[route.collection] {
		if matches(raw, params, route.filters) {
			matched = append(matched, raw)
		}
	}

	offset, limit := 1, 0
	if v, ok := params["offset"]; ok {
		offset, _ = strconv.Atoi(fmt.Sprint(v))
	}
	if v, ok := params["limit"]; ok {
		limit, _ = strconv.Atoi(fmt.Sprint(v))
	}
	if limit == 0 && offset > 1 {
		limit = defaultPageSize
	}
	start := offset - 1
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	list := "[]"
	for _, raw := range matched[start:end] {
		list, _ = sjson.SetRaw(list, "-1", raw)
	}
	return envelope(list)
}

func matches(raw string, params catalyst.Params, filters []string) bool {
	for _, key := range filters {
		want, ok := params[key]
		if !ok || want == nil {
			continue
		}
		if gjson.Get(raw, key).String() != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (f *FakeController) mutate(function string, params catalyst.Params, items []gjson.Result) (*catalyst.Response, error) {
	taskID := f.newID("task")
	task := &fakeTask{pending: f.pendingPoll}
	f.tasks[taskID] = task

	if reason, ok := f.failures[function]; ok {
		delete(f.failures, function)
		task.failure = reason
		return envelope(fmt.Sprintf(`{"taskId":%q,"url":"/api/v1/task/%s"}`, taskID, taskID)), nil
	}

	switch function {
	case "add_fabric_devices":
		f.addAll(FabricDevices, items)
	case "add_fabric_devices_layer2_handoffs":
		f.addAll(Layer2Handoffs, items)
	case "add_fabric_devices_layer3_handoffs_with_sda_transit":
		f.addAll(SDATransitL3, items)
	case "add_fabric_devices_layer3_handoffs_with_ip_transit":
		f.addAll(IPTransitL3, items)

	case "update_fabric_devices":
		f.updateAll(FabricDevices, items, "id")
	case "update_fabric_devices_layer3_handoffs_with_sda_transit":
		f.updateAll(SDATransitL3, items, "fabricId", "networkDeviceId")
	case "update_fabric_devices_layer3_handoffs_with_ip_transit":
		f.updateAll(IPTransitL3, items, "id")

	case "delete_fabric_device_by_id":
		f.remove(FabricDevices, catalyst.Params{"id": params["id"]}, "id")
	case "delete_fabric_device_layer2_handoff_by_id":
		f.remove(Layer2Handoffs, catalyst.Params{"id": params["id"]}, "id")
	case "delete_fabric_device_layer3_handoff_with_ip_transit_by_id":
		f.remove(IPTransitL3, catalyst.Params{"id": params["id"]}, "id")
	case "delete_fabric_device_layer3_handoffs_with_sda_transit":
		f.remove(SDATransitL3, params, "fabricId", "networkDeviceId")

	default:
		return nil, &util.RemoteError{Operation: function, Status: "HTTP 501", Payload: "not implemented by fake"}
	}
	return envelope(fmt.Sprintf(`{"taskId":%q,"url":"/api/v1/task/%s"}`, taskID, taskID)), nil
}

func (f *FakeController) addAll(collection string, items []gjson.Result) {
	for _, it := range items {
		f.insert(collection, it.Raw)
	}
}

func (f *FakeController) updateAll(collection string, items []gjson.Result, keys ...string) {
	for _, it := range items {
		for i, raw := range f.data[collection] {
			same := true
			for _, k := range keys {
				if gjson.Get(raw, k).String() != it.Get(k).String() {
					same = false
				}
			}
			if same {
				f.data[collection][i] = it.Raw
			}
		}
	}
}

func (f *FakeController) remove(collection string, params catalyst.Params, keys ...string) {
	kept := f.data[collection][:0]
	for _, raw := range f.data[collection] {
		if !matches(raw, params, keys) {
			kept = append(kept, raw)
		}
	}
	f.data[collection] = kept
}

func (f *FakeController) task(params catalyst.Params) (*catalyst.Response, error) {
	id := fmt.Sprint(params["id"])
	t, ok := f.tasks[id]
	if !ok {
		return nil, &util.RemoteError{Operation: "get_tasks_by_id", Status: "HTTP 404", Payload: `{"message":"task not found"}`}
	}
	t.polls++
	status := "SUCCESS"
	switch {
	case t.polls <= t.pending:
		status = "IN_PROGRESS"
	case t.failure != "":
		status = "FAILURE"
	}
	return envelope(fmt.Sprintf(`{"id":%q,"status":%q,"startTime":1}`, id, status)), nil
}

func (f *FakeController) taskDetail(params catalyst.Params) (*catalyst.Response, error) {
	id := fmt.Sprint(params["id"])
	t, ok := f.tasks[id]
	if !ok {
		return nil, &util.RemoteError{Operation: "get_task_details_by_id", Status: "HTTP 404"}
	}
	return envelope(fmt.Sprintf(`{"id":%q,"failureReason":%q}`, id, t.failure)), nil
}
