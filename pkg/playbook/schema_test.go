package playbook

import (
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcc/pkg/util"
)

var testSchema = Schema{
	"name":    {Type: TypeStr, Required: true, Aliases: []string{"ip_address"}},
	"count":   {Type: TypeInt, Default: 10},
	"enabled": {Type: TypeBool, Default: true},
	"roles":   {Type: TypeList, Elements: TypeStr, Upper: true, Choices: []string{"EDGE_NODE", "BORDER_NODE"}},
	"nested": {Type: TypeDict, Options: Schema{
		"vlan": {Type: TypeInt, Required: true},
	}},
	"items": {Type: TypeList, Elements: TypeDict, Options: Schema{
		"interface": {Type: TypeStr, Required: true},
	}},
}

func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(src), &n); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return &n
}

func TestValidateCoercesAndDefaults(t *testing.T) {
	out, err := Validate(parseNode(t, `
name: dev1
count: "7"
enabled: "no"
roles: [edge_node, Border_Node]
nested: {vlan: 100}
items:
  - interface: Gi1/0/1
`), testSchema)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out["count"] != 7 {
		t.Errorf("count = %#v, want 7", out["count"])
	}
	if out["enabled"] != false {
		t.Errorf("enabled = %#v, want false", out["enabled"])
	}
	roles := out["roles"].([]any)
	if len(roles) != 2 || roles[0] != "EDGE_NODE" || roles[1] != "BORDER_NODE" {
		t.Errorf("roles = %v", roles)
	}
	if out["nested"].(map[string]any)["vlan"] != 100 {
		t.Errorf("nested.vlan = %v", out["nested"])
	}
	items := out["items"].([]any)
	if items[0].(map[string]any)["interface"] != "Gi1/0/1" {
		t.Errorf("items = %v", items)
	}
}

func TestValidateDefaultsApplyWhenAbsentOrNull(t *testing.T) {
	out, err := Validate(parseNode(t, "name: a\ncount: ~\n"), testSchema)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out["count"] != 10 || out["enabled"] != true {
		t.Errorf("defaults not applied: %v", out)
	}
	if _, ok := out["nested"]; ok {
		t.Errorf("absent dict without default should stay absent")
	}
}

func TestValidateAlias(t *testing.T) {
	out, err := Validate(parseNode(t, "ip_address: 10.0.0.1\n"), testSchema)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out["name"] != "10.0.0.1" {
		t.Errorf("alias not resolved: %v", out)
	}

	_, err = Validate(parseNode(t, "name: a\nip_address: b\n"), testSchema)
	if err == nil || !strings.Contains(err.Error(), "duplicates name") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestValidateErrorsCarryLines(t *testing.T) {
	_, err := Validate(parseNode(t, `name: a
bogus: 1
count: many
roles: [SPINE]
nested: {}
`), testSchema)
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var ve *util.ValidationError
	errors.As(err, &ve)

	want := []string{
		"line 2: bogus: unsupported parameter",
		`line 3: count: expected int, got "many"`,
		`line 4: roles[0]: value "SPINE" is not one of`,
		"line 5: nested.vlan: missing required parameter",
	}
	if len(ve.Errors) != len(want) {
		t.Fatalf("got %d errors, want %d: %v", len(ve.Errors), len(want), ve.Errors)
	}
	for _, w := range want {
		found := false
		for _, e := range ve.Errors {
			if strings.HasPrefix(e, w) {
				found = true
			}
		}
		if !found {
			t.Errorf("missing error %q in %v", w, ve.Errors)
		}
	}
}

func TestValidateMissingRequired(t *testing.T) {
	_, err := Validate(parseNode(t, "count: 1\n"), testSchema)
	if err == nil || !strings.Contains(err.Error(), "name: missing required parameter") {
		t.Errorf("expected missing name, got %v", err)
	}

	_, err = Validate(parseNode(t, "name: ~\n"), testSchema)
	if err == nil || !strings.Contains(err.Error(), "name: missing required parameter") {
		t.Errorf("null required value should count as missing, got %v", err)
	}
}

func TestValidateWrongShapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"list for dict", "name: a\nnested: [1]\n", "nested: expected a mapping"},
		{"scalar for list", "name: a\nitems: x\n", "items: expected a list"},
		{"mapping for scalar", "name: {a: 1}\n", "name: expected str"},
		{"bad bool", "name: a\nenabled: maybe\n", `enabled: expected bool, got "maybe"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(parseNode(t, tt.src), testSchema)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestValidateResolvesYAMLAliases(t *testing.T) {
	out, err := Validate(parseNode(t, `
name: a
nested: &n {vlan: 5}
items:
  - &i {interface: Gi1}
  - *i
`), testSchema)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(out["items"].([]any)) != 2 {
		t.Errorf("alias element not expanded: %v", out["items"])
	}
}
