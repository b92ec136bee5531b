package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/newtcc/pkg/audit"
	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/util"
)

// Terminal task states.
const (
	TaskSuccess = "SUCCESS"
	TaskFailure = "FAILURE"
)

// Call is one controller mutation.
type Call struct {
	Family   string
	Function string
	Params   catalyst.Params
	Site     string
	Resource string
	Items    int
}

// Mutate executes call, waits for the returned task to finish and records
// an audit event. It returns the task id, which is set whenever the
// controller accepted the request.
func (rc *RunContext) Mutate(ctx context.Context, call Call) (string, error) {
	start := rc.Clock.Now()
	log := rc.Log().WithField("operation", call.Function).WithField("resource", call.Resource)
	log.Debug("submitting mutation")

	var taskID string
	rc.mutations++
	resp, err := rc.Client.Exec(ctx, call.Family, call.Function, call.Params)
	if err == nil {
		taskID = resp.TaskID()
		if taskID == "" {
			err = &util.RemoteError{Operation: call.Function, Status: "no task id in response", Payload: string(resp.Raw)}
		} else {
			err = rc.WaitTask(ctx, call.Function, taskID)
		}
	}

	event := audit.NewEvent(rc.User, call.Resource, call.Function).
		WithSite(call.Site).
		WithTask(taskID, call.Items).
		WithDuration(rc.Clock.Now().Sub(start))
	if err != nil {
		event.WithError(err)
		log.WithError(err).Warn("mutation failed")
	} else {
		event.WithSuccess()
		log.WithField("task", taskID).Info("mutation succeeded")
	}
	rc.record(event)
	return taskID, err
}

// WaitTask polls taskID until it reaches a terminal state or the run's
// timeout passes. A FAILURE yields a RemoteError carrying the task detail
// verbatim.
func (rc *RunContext) WaitTask(ctx context.Context, operation, taskID string) error {
	start := rc.Clock.Now()
	for {
		resp, err := rc.Client.Exec(ctx, "task", "get_tasks_by_id", catalyst.Params{"id": taskID})
		if err != nil {
			return fmt.Errorf("polling task %s: %w", taskID, err)
		}
		task := resp.Payload()
		status := strings.ToUpper(task.Get("status").String())
		switch {
		case status == TaskSuccess:
			return nil
		case status == TaskFailure, task.Get("isError").Bool():
			return rc.taskFailure(ctx, operation, taskID, task.Raw)
		}

		elapsed := rc.Clock.Now().Sub(start)
		if elapsed >= rc.Timeout {
			return &util.TimeoutError{Operation: fmt.Sprintf("%s (task %s)", operation, taskID), Elapsed: elapsed, Limit: rc.Timeout}
		}
		if err := rc.Clock.Sleep(ctx, rc.PollInterval); err != nil {
			return err
		}
	}
}

func (rc *RunContext) taskFailure(ctx context.Context, operation, taskID, raw string) error {
	payload := raw
	detail, err := rc.Client.Exec(ctx, "task", "get_task_details_by_id", catalyst.Params{"id": taskID})
	if err != nil {
		rc.Log().WithError(err).WithField("task", taskID).Debug("task detail unavailable")
	} else if p := detail.Payload(); p.Exists() {
		payload = p.Raw
	}
	return &util.RemoteError{Operation: operation, TaskID: taskID, Status: TaskFailure, Payload: payload}
}
