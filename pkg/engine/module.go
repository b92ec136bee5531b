package engine

import (
	"context"

	"github.com/newtron-network/newtcc/pkg/playbook"
)

// Module is one resource family reconciled by the engine. The same engine
// drives every family; a module supplies its schema, its field maps and
// the controller functions it calls.
type Module interface {
	// Name is a human-readable family name.
	Name() string
	// ConfigKey is the block key the module answers to in a playbook.
	ConfigKey() string
	// MinVersion is the oldest controller version the module supports.
	MinVersion() string
	// Schema validates the value of one block.
	Schema() playbook.Schema

	// Prepare observes the controller, builds the desired state and plans
	// the changes for block index. It must not mutate the controller. Run
	// calls it again before Apply once earlier blocks have mutated.
	// Errors that AbortsRun accepts stop the whole run; any other error
	// fails only this block.
	Prepare(ctx context.Context, rc *RunContext, index int, block map[string]any) (Plan, error)
	// Apply executes plan and reports every resource it touched.
	Apply(ctx context.Context, rc *RunContext, plan Plan) []ResourceResult
	// Verify re-observes the controller and compares it with plan's
	// desired state.
	Verify(ctx context.Context, rc *RunContext, plan Plan) error
}

// Plan is the output of Prepare.
type Plan interface {
	// Site names the fabric site the plan touches; it is the lock key.
	Site() string
	// Preview lists the outcome each resource would have if applied.
	Preview() []ResourceResult
}

// Schemas returns the block schemas of modules keyed by config key, as
// playbook.Parse expects.
func Schemas(modules []Module) map[string]playbook.Schema {
	out := make(map[string]playbook.Schema, len(modules))
	for _, m := range modules {
		out[m.ConfigKey()] = m.Schema()
	}
	return out
}
