// Package cli provides terminal formatting for the newtcc CLI: colours,
// tables and run result reports.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// SetColor turns ANSI colouring on or off, e.g. for --no-color or when
// stdout is not a terminal.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// Green wraps s in ANSI green. Returns s unchanged when colour is off.
func Green(s string) string { return paint("\033[32m", s) }

// Yellow wraps s in ANSI yellow. Returns s unchanged when colour is off.
func Yellow(s string) string { return paint("\033[33m", s) }

// Red wraps s in ANSI red. Returns s unchanged when colour is off.
func Red(s string) string { return paint("\033[31m", s) }

// Bold wraps s in ANSI bold. Returns s unchanged when colour is off.
func Bold(s string) string { return paint("\033[1m", s) }

// Dim wraps s in ANSI dim. Returns s unchanged when colour is off.
func Dim(s string) string { return paint("\033[2m", s) }

// DotPad pads name with dots to the given width.
// Example: DotPad("config[0]", 16) → "config[0] ......"
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}
