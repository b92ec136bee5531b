package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newtron-network/newtcc/internal/testutil"
	"github.com/newtron-network/newtcc/pkg/audit"
	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/playbook"
	"github.com/newtron-network/newtcc/pkg/util"
)

type stubPlan struct {
	site    string
	preview []ResourceResult
}

func (p *stubPlan) Site() string              { return p.site }
func (p *stubPlan) Preview() []ResourceResult { return p.preview }

// stubModule creates one L2 handoff per block through the real task path.
type stubModule struct {
	prepareErr   map[int]error
	reprepareErr map[int]error
	verifyErr    error
	prepared   []int
	applied    []int
}

func (m *stubModule) Name() string            { return "stub" }
func (m *stubModule) ConfigKey() string       { return "stub" }
func (m *stubModule) MinVersion() string      { return "2.3.7.6" }
func (m *stubModule) Schema() playbook.Schema { return playbook.Schema{"site": {Type: playbook.TypeStr}} }

func (m *stubModule) Prepare(_ context.Context, rc *RunContext, index int, block map[string]any) (Plan, error) {
	for _, p := range m.prepared {
		if p == index && m.reprepareErr[index] != nil {
			m.prepared = append(m.prepared, index)
			return nil, m.reprepareErr[index]
		}
	}
	m.prepared = append(m.prepared, index)
	if err := m.prepareErr[index]; err != nil {
		return nil, err
	}
	site, _ := block["site"].(string)
	rc.Observed[index] = "observed"
	rc.Desired[index] = "desired"
	return &stubPlan{site: site, preview: []ResourceResult{{Kind: "stub", Resource: site, Status: StatusCreated}}}, nil
}

func (m *stubModule) Apply(ctx context.Context, rc *RunContext, plan Plan) []ResourceResult {
	m.applied = append(m.applied, len(m.applied))
	r := ResourceResult{Kind: "stub", Resource: plan.Site(), Status: StatusCreated}
	taskID, err := rc.Mutate(ctx, Call{
		Family: "sda", Function: "add_fabric_devices_layer2_handoffs",
		Params: catalyst.Params{catalyst.PayloadKey: []map[string]any{{"interfaceName": plan.Site()}}},
		Site:   plan.Site(), Resource: plan.Site(), Items: 1,
	})
	r.TaskID = taskID
	if err != nil {
		r.Fail(err)
	}
	return []ResourceResult{r}
}

func (m *stubModule) Verify(context.Context, *RunContext, Plan) error { return m.verifyErr }

type memLocker struct {
	held   map[string]string
	events []string
	fail   error
}

func (l *memLocker) Lock(_ context.Context, site, holder string) error {
	if l.fail != nil {
		return l.fail
	}
	l.held[site] = holder
	l.events = append(l.events, "lock "+site)
	return nil
}

func (l *memLocker) Unlock(_ context.Context, site, holder string) error {
	if l.held[site] != holder {
		return errors.New("not holder")
	}
	delete(l.held, site)
	l.events = append(l.events, "unlock "+site)
	return nil
}

func blocks(sites ...string) []playbook.Block {
	var out []playbook.Block
	for _, s := range sites {
		out = append(out, playbook.Block{Key: "stub", Value: map[string]any{"site": s}})
	}
	return out
}

func newAuditor(t *testing.T) *audit.FileLogger {
	t.Helper()
	l, err := audit.NewFileLogger(filepath.Join(t.TempDir(), "audit.log"), audit.RotationConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRunAppliesBlocksInOrder(t *testing.T) {
	fc := testutil.NewFakeController()
	auditor := newAuditor(t)
	locker := &memLocker{held: map[string]string{}}
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock(), User: "alice", Auditor: auditor, Locker: locker, ControllerVersion: "2.3.7.9"})
	m := &stubModule{}

	res, err := Run(context.Background(), rc, []Module{m}, blocks("A", "B"))
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.True(t, res.Changed)
	require.False(t, res.Failed)
	require.Equal(t, "changes applied", res.Msg)
	// Block 1 is prepared again once block 0 has changed the controller.
	require.Equal(t, []int{0, 1, 1}, m.prepared)
	require.Len(t, res.Response, 2)
	require.Equal(t, "A", res.Response[0].Site)
	require.NotEmpty(t, res.Response[0].Resources[0].TaskID)
	require.Equal(t, []any{"observed", "observed"}, rc.Observed)

	records := fc.Records(testutil.Layer2Handoffs)
	require.Len(t, records, 2)
	require.Equal(t, "A", records[0].Get("interfaceName").String())

	require.Equal(t, []string{"lock A", "unlock A", "lock B", "unlock B"}, locker.events)

	events, err := auditor.Query(audit.Filter{RunID: res.RunID, Type: audit.EventTypeExecute})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[0].Success)
	require.True(t, events[0].ExecuteMode)
	require.Equal(t, "alice", events[0].User)
}

func TestRunDryRunNeverMutates(t *testing.T) {
	fc := testutil.NewFakeController()
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock(), DryRun: true})
	m := &stubModule{}

	res, err := Run(context.Background(), rc, []Module{m}, blocks("A"))
	require.NoError(t, err)
	require.True(t, res.DryRun)
	require.True(t, res.Changed)
	require.True(t, res.Response[0].Resources[0].Planned)
	require.Empty(t, m.applied)
	require.Empty(t, fc.Mutations())
	require.Contains(t, res.Msg, "--execute")
}

func TestRunDryRunPreparesEachBlockOnce(t *testing.T) {
	rc := NewRunContext(testutil.NewFakeController(), Options{Clock: testutil.NewFakeClock(), DryRun: true})
	m := &stubModule{}

	_, err := Run(context.Background(), rc, []Module{m}, blocks("A", "B", "C"))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, m.prepared)
}

func TestRunFirstBlockIsNotPreparedTwice(t *testing.T) {
	fc := testutil.NewFakeController()
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock()})
	m := &stubModule{}

	_, err := Run(context.Background(), rc, []Module{m}, blocks("A"))
	require.NoError(t, err)
	require.Equal(t, []int{0}, m.prepared)
	require.Len(t, fc.Mutations(), 1)
}

func TestRunRepreparedBlockFailureKeepsEarlierChanges(t *testing.T) {
	fc := testutil.NewFakeController()
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock()})
	m := &stubModule{reprepareErr: map[int]error{
		1: util.NewPreconditionError("observe", "B", "device is no longer in the fabric", ""),
	}}

	res, err := Run(context.Background(), rc, []Module{m}, blocks("A", "B", "C"))
	require.NoError(t, err)
	require.True(t, res.Failed)
	require.True(t, res.Changed)
	require.False(t, res.Response[0].Failed)
	require.True(t, res.Response[1].Failed)
	require.Equal(t, KindPrecondition, res.Response[1].ErrorKind)
	require.False(t, res.Response[2].Failed)
	require.Equal(t, []int{0, 1, 2, 1, 2}, m.prepared)
	require.Len(t, fc.Mutations(), 2)
	require.Equal(t, "1 of 3 block(s) failed", res.Msg)
}

func TestRunPreconditionAbortsBeforeAnyMutation(t *testing.T) {
	fc := testutil.NewFakeController()
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock()})
	m := &stubModule{prepareErr: map[int]error{
		1: util.NewPreconditionError("observe", "Global/X", "site must be a fabric site or zone", ""),
	}}

	res, err := Run(context.Background(), rc, []Module{m}, blocks("A", "Global/X", "C"))
	require.ErrorIs(t, err, util.ErrPreconditionFailed)
	require.True(t, res.Failed)
	require.Contains(t, res.Msg, "config[1].stub")
	require.Empty(t, m.applied)
	require.Empty(t, fc.Mutations())
}

func TestRunBlockFailureDoesNotStopOthers(t *testing.T) {
	fc := testutil.NewFakeController()
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock()})
	m := &stubModule{prepareErr: map[int]error{
		0: &util.RemoteError{Operation: "get_sites", Status: "HTTP 500"},
	}}

	res, err := Run(context.Background(), rc, []Module{m}, blocks("A", "B"))
	require.NoError(t, err)
	require.True(t, res.Failed)
	require.True(t, res.Changed)
	require.Equal(t, KindRemoteFailure, res.Response[0].ErrorKind)
	require.False(t, res.Response[1].Failed)
	require.Len(t, fc.Mutations(), 1)
	require.Equal(t, "1 of 2 block(s) failed", res.Msg)
}

func TestRunTaskFailureRecordedPerResource(t *testing.T) {
	fc := testutil.NewFakeController()
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock()})
	fc.FailNext("add_fabric_devices_layer2_handoffs", "interface in use")

	res, err := Run(context.Background(), rc, []Module{&stubModule{}}, blocks("A", "B"))
	require.NoError(t, err)
	first := res.Response[0].Resources[0]
	require.Equal(t, StatusFailed, first.Status)
	require.Equal(t, KindRemoteFailure, first.ErrorKind)
	require.NotEmpty(t, first.TaskID)
	require.Contains(t, first.Payload, "interface in use")
	require.Equal(t, StatusCreated, res.Response[1].Resources[0].Status)
	require.True(t, res.Failed)
}

func TestRunVersionGate(t *testing.T) {
	rc := NewRunContext(testutil.NewFakeController(), Options{ControllerVersion: "2.3.5.3"})
	res, err := Run(context.Background(), rc, []Module{&stubModule{}}, blocks("A"))
	require.ErrorIs(t, err, util.ErrVersionMismatch)
	require.True(t, res.Failed)
}

func TestRunUnknownBlockKey(t *testing.T) {
	rc := NewRunContext(testutil.NewFakeController(), Options{})
	_, err := Run(context.Background(), rc, []Module{&stubModule{}},
		[]playbook.Block{{Key: "wireless_profiles"}})
	require.ErrorIs(t, err, util.ErrValidationFailed)
}

func TestRunVerifyFailure(t *testing.T) {
	fc := testutil.NewFakeController()
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock(), ConfigVerify: true})
	m := &stubModule{verifyErr: &util.VerificationError{Resource: "A", Path: "borderTypes"}}

	res, err := Run(context.Background(), rc, []Module{m}, blocks("A"))
	require.NoError(t, err)
	require.True(t, res.Response[0].Failed)
	require.Equal(t, KindVerification, res.Response[0].ErrorKind)
}

func TestRunLockContention(t *testing.T) {
	fc := testutil.NewFakeController()
	locker := &memLocker{held: map[string]string{}, fail: util.ErrLocked}
	rc := NewRunContext(fc, Options{Clock: testutil.NewFakeClock(), Locker: locker})

	res, err := Run(context.Background(), rc, []Module{&stubModule{}}, blocks("A"))
	require.NoError(t, err)
	require.Equal(t, KindLocked, res.Response[0].ErrorKind)
	require.Empty(t, fc.Mutations())
}

func TestSchemas(t *testing.T) {
	s := Schemas([]Module{&stubModule{}})
	require.Contains(t, s, "stub")
}
