package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "KIND", "RESOURCE")
	tbl.Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table wrote %q", buf.String())
	}
	if tbl.Rows() != 0 {
		t.Errorf("Rows() = %d, want 0", tbl.Rows())
	}
}

func TestTable_HeadersDividerAndAlignment(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "KIND", "RESOURCE").WithPrefix("  ")
	tbl.Row("fabric_device", "10.0.0.1")
	tbl.Row("layer2_handoff", "10.0.0.1 Gi1/0/1 vlan 100")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "  KIND") || !strings.HasPrefix(lines[1], "  ----") {
		t.Errorf("header or divider missing prefix:\n%s", buf.String())
	}
	// The second column starts at the same offset on every line.
	col := strings.Index(lines[0], "RESOURCE")
	for _, l := range lines[2:] {
		if strings.Index(l, "10.0.0.1") != col {
			t.Errorf("misaligned row %q, want column at %d", l, col)
		}
	}
	if tbl.Rows() != 2 {
		t.Errorf("Rows() = %d, want 2", tbl.Rows())
	}
}

func TestTable_Truncate(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "A", "DETAIL").Truncate(1, 10)
	tbl.Row("x", "short")
	tbl.Row("y", "a much longer detail message")
	tbl.Flush()

	out := buf.String()
	if !strings.Contains(out, "short") {
		t.Errorf("short cell should be kept:\n%s", out)
	}
	if !strings.Contains(out, "a much ...") || strings.Contains(out, "longer") {
		t.Errorf("long cell should be cut to 10 runes:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abcdef", 0, "abcdef"},
		{"abcdef", 3, "abcdef"},
		{"abcdef", 6, "abcdef"},
		{"abcdefg", 6, "abc..."},
		{"ééééééé", 5, "éé..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
