package engine

import (
	"errors"
	"fmt"

	"github.com/newtron-network/newtcc/pkg/util"
)

// Status is the outcome recorded for one resource.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusDeleted Status = "deleted"
	StatusNoOp    Status = "no_op"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Changes reports whether the status mutates the controller.
func (s Status) Changes() bool {
	return s == StatusCreated || s == StatusUpdated || s == StatusDeleted
}

// ResourceResult is the per-resource line of a run result.
type ResourceResult struct {
	Kind      string `json:"kind"`
	Resource  string `json:"resource"`
	Status    Status `json:"status"`
	Planned   bool   `json:"planned,omitempty"`
	Msg       string `json:"msg,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind Kind   `json:"error_kind,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// Fail marks the result failed and copies err's details. A RemoteError
// contributes its task id and the controller's verbatim payload.
func (r *ResourceResult) Fail(err error) {
	r.Status = StatusFailed
	r.Error = err.Error()
	r.ErrorKind = Classify(err)
	var re *util.RemoteError
	if errors.As(err, &re) {
		if re.TaskID != "" {
			r.TaskID = re.TaskID
		}
		r.Payload = re.Payload
	}
}

// BlockResult collects the resources of one config block.
type BlockResult struct {
	Index     int              `json:"index"`
	Key       string           `json:"key"`
	Site      string           `json:"site,omitempty"`
	Changed   bool             `json:"changed"`
	Failed    bool             `json:"failed"`
	Msg       string           `json:"msg,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorKind Kind             `json:"error_kind,omitempty"`
	Resources []ResourceResult `json:"resources"`
}

// Add appends a resource result and folds it into the block flags.
func (b *BlockResult) Add(r ResourceResult) {
	b.Resources = append(b.Resources, r)
	if r.Status.Changes() {
		b.Changed = true
	}
	if r.Status == StatusFailed {
		b.Failed = true
	}
}

// Fail marks the whole block failed.
func (b *BlockResult) Fail(err error) {
	b.Failed = true
	b.Error = err.Error()
	b.ErrorKind = Classify(err)
}

// summarize fills Msg from the resource counts.
func (b *BlockResult) summarize() {
	if b.Msg != "" {
		return
	}
	counts := map[Status]int{}
	for _, r := range b.Resources {
		counts[r.Status]++
	}
	b.Msg = fmt.Sprintf("%d created, %d updated, %d deleted, %d unchanged, %d failed",
		counts[StatusCreated], counts[StatusUpdated], counts[StatusDeleted],
		counts[StatusNoOp]+counts[StatusSkipped], counts[StatusFailed])
}

// RunResult is the single record a run produces.
type RunResult struct {
	RunID    string        `json:"run_id"`
	DryRun   bool          `json:"dry_run"`
	Changed  bool          `json:"changed"`
	Failed   bool          `json:"failed"`
	Msg      string        `json:"msg"`
	Response []BlockResult `json:"response"`
}

// Resources returns every resource result across blocks, in order.
func (r *RunResult) Resources() []ResourceResult {
	var out []ResourceResult
	for _, b := range r.Response {
		out = append(out, b.Resources...)
	}
	return out
}
