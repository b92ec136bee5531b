package cli

import (
	"strings"
	"testing"
)

func TestDotPad(t *testing.T) {
	tests := []struct {
		name  string
		width int
		want  string
	}{
		{"config[0] fabric_devices", 30, "config[0] fabric_devices " + strings.Repeat(".", 5)},
		{"config[0]", 11, "config[0] ."},
		{"config[0]", 10, "config[0]"},
		{"config[12] fabric_devices", 10, "config[12] fabric_devices"},
		{"", 3, " .."},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := DotPad(tt.name, tt.width); got != tt.want {
			t.Errorf("DotPad(%q, %d) = %q, want %q", tt.name, tt.width, got, tt.want)
		}
		if len(tt.name) < tt.width-1 && len(DotPad(tt.name, tt.width)) != tt.width {
			t.Errorf("DotPad(%q, %d) should fill the width", tt.name, tt.width)
		}
	}
}

func withColor(t *testing.T, enabled bool) {
	t.Helper()
	prev := colorEnabled
	SetColor(enabled)
	t.Cleanup(func() { SetColor(prev) })
}

func TestColorFunctions(t *testing.T) {
	withColor(t, true)
	tests := []struct {
		name   string
		fn     func(string) string
		prefix string
	}{
		{"Green", Green, "\033[32m"},
		{"Yellow", Yellow, "\033[33m"},
		{"Red", Red, "\033[31m"},
		{"Bold", Bold, "\033[1m"},
		{"Dim", Dim, "\033[2m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("hello")
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("%s should start with %q", tt.name, tt.prefix)
			}
			if !strings.Contains(got, "hello") {
				t.Errorf("%s should contain the input string", tt.name)
			}
			if !strings.HasSuffix(got, "\033[0m") {
				t.Errorf("%s should end with reset code", tt.name)
			}
		})

		t.Run(tt.name+"_empty", func(t *testing.T) {
			got := tt.fn("")
			if !strings.HasSuffix(got, "\033[0m") {
				t.Errorf("%s(\"\") should end with reset code", tt.name)
			}
		})
	}
}

func TestColorDisabled(t *testing.T) {
	withColor(t, false)
	for _, fn := range []func(string) string{Green, Yellow, Red, Bold, Dim} {
		if got := fn("plain"); got != "plain" {
			t.Errorf("colour off should return the input unchanged, got %q", got)
		}
	}
}
