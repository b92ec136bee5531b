package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/newtron-network/newtcc/pkg/engine"
)

func sampleRun() *engine.RunResult {
	return &engine.RunResult{
		RunID:   "run-1",
		Changed: true,
		Failed:  true,
		Msg:     "1 of 1 block(s) failed",
		Response: []engine.BlockResult{{
			Index:   0,
			Key:     "fabric_devices",
			Site:    "Global/USA/SAN-JOSE",
			Changed: true,
			Failed:  true,
			Msg:     "1 created, 0 updated, 0 deleted, 0 unchanged, 1 failed",
			Resources: []engine.ResourceResult{
				{Kind: "fabric_device", Resource: "10.0.0.1", Status: engine.StatusCreated, TaskID: "task-7"},
				{Kind: "fabric_device", Resource: "10.0.0.2", Status: engine.StatusFailed,
					Error: "10.0.0.2: device_roles cannot be changed after creation", ErrorKind: engine.KindImmutableField},
			},
		}},
	}
}

func TestRenderRun(t *testing.T) {
	withColor(t, false)
	var buf bytes.Buffer
	RenderRun(&buf, sampleRun())
	out := buf.String()

	for _, want := range []string{
		"config[0] fabric_devices  Global/USA/SAN-JOSE",
		"KIND",
		"task-7",
		"[immutable_field_changed] 10.0.0.2: device_roles",
		"1 created, 0 updated",
		"1 of 1 block(s) failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "DRY-RUN") {
		t.Errorf("executed run should not carry the dry-run notice:\n%s", out)
	}
}

func TestRenderRunDryRunNotice(t *testing.T) {
	withColor(t, false)
	res := &engine.RunResult{DryRun: true, Changed: true, Msg: "changes planned; re-run with --execute to apply"}
	var buf bytes.Buffer
	RenderRun(&buf, res)
	if !strings.Contains(buf.String(), "DRY-RUN: No changes applied") {
		t.Errorf("missing dry-run notice:\n%s", buf.String())
	}
}

func TestRenderRunBlockError(t *testing.T) {
	withColor(t, false)
	res := &engine.RunResult{Failed: true, Msg: "1 of 1 block(s) failed", Response: []engine.BlockResult{{
		Key: "fabric_devices", Failed: true, Error: "verification failed", ErrorKind: engine.KindVerification,
	}}}
	var buf bytes.Buffer
	RenderRun(&buf, res)
	if !strings.Contains(buf.String(), "error: [verification_failed] verification failed") {
		t.Errorf("block error not rendered:\n%s", buf.String())
	}
}

func TestStatusCellWidthIsConstant(t *testing.T) {
	withColor(t, true)
	want := len(statusCell(engine.StatusCreated))
	for _, s := range []engine.Status{engine.StatusUpdated, engine.StatusDeleted, engine.StatusNoOp,
		engine.StatusFailed, engine.StatusSkipped} {
		if got := len(statusCell(s)); got != want {
			t.Errorf("statusCell(%s) is %d bytes, want %d", s, got, want)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, sampleRun()); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if back["run_id"] != "run-1" || back["failed"] != true {
		t.Errorf("unexpected JSON: %s", buf.String())
	}
	res := back["response"].([]any)[0].(map[string]any)["resources"].([]any)
	if res[1].(map[string]any)["error_kind"] != "immutable_field_changed" {
		t.Errorf("error kind missing: %s", buf.String())
	}
}
