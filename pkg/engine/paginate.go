package engine

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/util"
)

// PageSize is the offset step and page limit used by list endpoints.
const PageSize = 500

// Paginate walks a list function page by page, starting at offset 1, and
// returns the first record match accepts. The walk ends on an empty page
// or a match. Once the run's timeout has elapsed it fails with a
// TimeoutError rather than returning a partial answer.
func (rc *RunContext) Paginate(ctx context.Context, family, function string, params catalyst.Params,
	match func(gjson.Result) bool) (Option[gjson.Result], error) {
	found := None[gjson.Result]()
	err := rc.walk(ctx, family, function, params, func(r gjson.Result) bool {
		if match(r) {
			found = Some(r)
			return false
		}
		return true
	})
	return found, err
}

// Collect returns every record of a list function, under the same paging
// and timeout rules as Paginate.
func (rc *RunContext) Collect(ctx context.Context, family, function string, params catalyst.Params) ([]gjson.Result, error) {
	var out []gjson.Result
	err := rc.walk(ctx, family, function, params, func(r gjson.Result) bool {
		out = append(out, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// walk feeds each record to visit until visit returns false or a page
// comes back empty.
func (rc *RunContext) walk(ctx context.Context, family, function string, params catalyst.Params,
	visit func(gjson.Result) bool) error {
	start := rc.Clock.Now()
	for offset := 1; ; offset += PageSize {
		p := make(catalyst.Params, len(params)+2)
		for k, v := range params {
			p[k] = v
		}
		p["offset"] = offset
		p["limit"] = PageSize

		resp, err := rc.Client.Exec(ctx, family, function, p)
		if err != nil {
			return err
		}
		records := resp.Records()
		if len(records) == 0 {
			return nil
		}
		for _, r := range records {
			if !visit(r) {
				return nil
			}
		}
		if elapsed := rc.Clock.Now().Sub(start); elapsed >= rc.Timeout {
			return &util.TimeoutError{Operation: function, Elapsed: elapsed, Limit: rc.Timeout}
		}
	}
}
