package engine

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tidwall/gjson"
)

// FieldPair ties a controller field as observed to the same field in the
// desired payload. The two paths are kept separate even where they match
// so a controller-side rename touches only the table.
type FieldPair struct {
	Input     string // playbook name, used in messages
	Observed  string // gjson path in the observed record
	Desired   string // gjson path in the desired payload
	Default   any    // value that counts as unset
	Unordered bool   // compare lists as sets
}

// FieldMap is the comparator table of one resource family.
type FieldMap []FieldPair

// FieldDiff is one diverging pair.
type FieldDiff struct {
	Field string
	Path  string
	Have  any
	Want  any
}

// Diff returns every pair whose observed and desired values differ under
// canonical equality: a missing or null value equals the pair's Default,
// numbers compare by value, and empty lists equal missing lists.
func (m FieldMap) Diff(observed, desired gjson.Result) []FieldDiff {
	var diffs []FieldDiff
	for _, p := range m {
		have := p.canonical(observed.Get(p.Observed))
		want := p.canonical(desired.Get(p.Desired))
		if !p.equal(have, want) {
			diffs = append(diffs, FieldDiff{Field: p.Input, Path: p.Observed, Have: have, Want: want})
		}
	}
	return diffs
}

// RequiresUpdate reports whether any pair diverges.
func (m FieldMap) RequiresUpdate(observed, desired gjson.Result) bool {
	return len(m.Diff(observed, desired)) > 0
}

func (p FieldPair) canonical(r gjson.Result) any {
	if !r.Exists() || r.Type == gjson.Null {
		return normalize(p.Default)
	}
	return normalize(r.Value())
}

func (p FieldPair) equal(a, b any) bool {
	opts := []cmp.Option{cmpopts.EquateEmpty()}
	if p.Unordered {
		opts = append(opts, cmpopts.SortSlices(func(x, y any) bool {
			return fmt.Sprint(x) < fmt.Sprint(y)
		}))
	}
	return cmp.Equal(a, b, opts...)
}

func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case []any:
		if len(t) == 0 {
			return nil
		}
	case []string:
		if len(t) == 0 {
			return nil
		}
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return v
}

// JSON marshals v and returns it as a gjson document, for comparing typed
// payloads against raw controller records.
func JSON(v any) gjson.Result {
	data, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.ParseBytes(data)
}
