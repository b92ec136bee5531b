// Package audit records every controller mutation made by a run.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one audited action against the controller.
type Event struct {
	ID          string        `json:"id"`
	RunID       string        `json:"run_id"`
	Type        EventType     `json:"type"`
	Timestamp   time.Time     `json:"timestamp"`
	User        string        `json:"user"`
	Site        string        `json:"site,omitempty"`
	Resource    string        `json:"resource"`
	Operation   string        `json:"operation"`
	TaskID      string        `json:"task_id,omitempty"`
	Items       int           `json:"items,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	ExecuteMode bool          `json:"execute_mode"` // true if -x was used
	DryRun      bool          `json:"dry_run"`
	Duration    time.Duration `json:"duration"`
}

// EventType categorizes audit events
type EventType string

const (
	EventTypeLock    EventType = "lock"
	EventTypeUnlock  EventType = "unlock"
	EventTypeExecute EventType = "execute"
	EventTypeVerify  EventType = "verify"
)

// Filter defines criteria for querying audit events
type Filter struct {
	RunID       string
	User        string
	Site        string
	Resource    string
	Operation   string
	Type        EventType
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new execute event
func NewEvent(user, resource, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventTypeExecute,
		Timestamp: time.Now(),
		User:      user,
		Resource:  resource,
		Operation: operation,
	}
}

// WithRun sets the run id
func (e *Event) WithRun(runID string) *Event {
	e.RunID = runID
	return e
}

// WithType sets the event type
func (e *Event) WithType(t EventType) *Event {
	e.Type = t
	return e
}

// WithSite sets the fabric site
func (e *Event) WithSite(site string) *Event {
	e.Site = site
	return e
}

// WithTask sets the controller task id and the number of payload items
func (e *Event) WithTask(taskID string, items int) *Event {
	e.TaskID = taskID
	e.Items = items
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithExecuteMode marks if execute mode was used
func (e *Event) WithExecuteMode(execute bool) *Event {
	e.ExecuteMode = execute
	e.DryRun = !execute
	return e
}

// Matches reports whether the event satisfies every criterion of f.
// Limit and Offset are not considered.
func (f Filter) Matches(event *Event) bool {
	if f.RunID != "" && event.RunID != f.RunID {
		return false
	}
	if f.User != "" && event.User != f.User {
		return false
	}
	if f.Site != "" && event.Site != f.Site {
		return false
	}
	if f.Resource != "" && event.Resource != f.Resource {
		return false
	}
	if f.Operation != "" && event.Operation != f.Operation {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if !f.StartTime.IsZero() && event.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && event.Timestamp.After(f.EndTime) {
		return false
	}
	if f.SuccessOnly && !event.Success {
		return false
	}
	if f.FailureOnly && event.Success {
		return false
	}
	return true
}
