package playbook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newtron-network/newtcc/pkg/util"
)

var testBlocks = map[string]Schema{
	"fabric_devices": {
		"fabric_name": {Type: TypeStr, Required: true},
	},
}

func TestParseEnvelopeDefaults(t *testing.T) {
	doc, err := Parse([]byte(`
host: 10.1.1.1
username: admin
config:
  - fabric_devices:
      fabric_name: Global/USA/SAN-JOSE
`), testBlocks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	env := doc.Envelope
	if env.Port != 443 || env.Version != "2.3.7.6" || !env.Verify {
		t.Errorf("connection defaults not applied: %+v", env)
	}
	if env.APITaskTimeout != 1200 || env.TaskPollInterval != 2 {
		t.Errorf("timing defaults not applied: %+v", env)
	}
	if env.State != StatePresent || env.ConfigVerify {
		t.Errorf("state defaults not applied: %+v", env)
	}
	if env.LogrusLevel() != "warning" {
		t.Errorf("LogrusLevel = %q", env.LogrusLevel())
	}
	if len(doc.Blocks) != 1 || doc.Blocks[0].Key != "fabric_devices" || doc.Blocks[0].Line != 5 {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	if doc.Blocks[0].Value["fabric_name"] != "Global/USA/SAN-JOSE" {
		t.Errorf("block value = %v", doc.Blocks[0].Value)
	}
}

func TestParseEnvelopeAliasesAndOverrides(t *testing.T) {
	doc, err := Parse([]byte(`
dnac_host: dnac.example.com
dnac_port: "8443"
dnac_log_level: debug
state: absent
config_verify: true
config: []
`), testBlocks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	env := doc.Envelope
	if env.Host != "dnac.example.com" || env.Port != 8443 {
		t.Errorf("aliases not resolved: %+v", env)
	}
	if env.LogrusLevel() != "debug" || env.State != StateAbsent || !env.ConfigVerify {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestParseRejectsBadBlocks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no config", "host: a\n", "config: missing required parameter"},
		{"config not list", "config: {a: 1}\n", "config: expected a list"},
		{"two keys", "config:\n  - fabric_devices: {fabric_name: a}\n    fabric_sites: {}\n", "exactly one of: fabric_devices"},
		{"unknown key", "config:\n  - wireless_profiles: {}\n", "unknown resource"},
		{"bad state", "state: deleted\nconfig: []\n", `state: value "deleted" is not one of`},
		{"block schema", "config:\n  - fabric_devices: {}\n", "config[0].fabric_devices.fabric_name: missing required parameter"},
		{"not a mapping", "- a\n- b\n", "must be a mapping"},
		{"bad yaml", "config: [\n", "parsing playbook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), testBlocks)
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseReportsEnvelopeAndBlockErrorsTogether(t *testing.T) {
	_, err := Parse([]byte("port: x\nconfig:\n  - fabric_devices: {}\n"), testBlocks)
	var ve *util.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *util.ValidationError, got %v", err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("errors = %v, want envelope and block errors", ve.Errors)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "play.yaml")
	if err := os.WriteFile(path, []byte("config:\n  - fabric_devices: {fabric_name: x}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	doc, err := Load(path, testBlocks)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Blocks) != 1 {
		t.Errorf("blocks = %v", doc.Blocks)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), testBlocks); err == nil {
		t.Error("missing file should fail")
	}
}

func TestDecode(t *testing.T) {
	type target struct {
		Name  string `yaml:"name"`
		Count *int   `yaml:"count"`
		Tags  []string
	}
	var got target
	if err := Decode(map[string]any{"name": "a", "count": 0}, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "a" || got.Count == nil || *got.Count != 0 {
		t.Errorf("got %+v", got)
	}
}
