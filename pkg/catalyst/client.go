// Package catalyst is the client for the Catalyst Center REST API.
//
// Calls are addressed the way the controller's SDK names them: a family
// ("sda", "devices", "site_design", "network_settings", "task", "sites")
// plus a function name from the endpoint Catalogue. Responses keep the raw
// envelope; accessors read it with gjson.
package catalyst

import (
	"context"

	"github.com/tidwall/gjson"
)

// Client executes one catalogued controller function. Implementations must
// be safe for serialized use; the engine never issues concurrent calls.
type Client interface {
	Exec(ctx context.Context, family, function string, params Params) (*Response, error)
}

// Params carries path, query and body parameters for a call. Keys use the
// controller's own parameter names (e.g. "fabricId"). The request body, if
// any, goes under PayloadKey.
type Params map[string]any

// PayloadKey is the Params key holding the JSON request body.
const PayloadKey = "payload"

// Response is a controller reply. GETs carry {response, version}; mutations
// carry {response: {taskId, url}}.
type Response struct {
	Raw []byte
}

// NewResponse wraps a raw response body.
func NewResponse(raw []byte) *Response {
	return &Response{Raw: raw}
}

// Payload returns the "response" member of the envelope.
func (r *Response) Payload() gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Raw, "response")
}

// Records returns the payload as a list. A single object payload is
// returned as a one-element list; anything else yields nil.
func (r *Response) Records() []gjson.Result {
	p := r.Payload()
	switch {
	case p.IsArray():
		return p.Array()
	case p.IsObject():
		return []gjson.Result{p}
	}
	return nil
}

// TaskID returns the task handle of a mutation response.
func (r *Response) TaskID() string {
	return r.Payload().Get("taskId").String()
}

// Version returns the API version reported in the envelope.
func (r *Response) Version() string {
	if r == nil {
		return ""
	}
	return gjson.GetBytes(r.Raw, "version").String()
}
