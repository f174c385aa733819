// Package cli provides terminal formatting helpers for the fabricplan CLI.
package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// colorEnabled is true only when stdout is a terminal and NO_COLOR is unset
// (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))

// SetColor forces colour output on or off.
func SetColor(on bool) { colorEnabled = on }

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green wraps s in ANSI green.
func Green(s string) string { return paint("32", s) }

// Yellow wraps s in ANSI yellow.
func Yellow(s string) string { return paint("33", s) }

// Red wraps s in ANSI red.
func Red(s string) string { return paint("31", s) }

// Bold wraps s in ANSI bold.
func Bold(s string) string { return paint("1", s) }

// Verdict renders a validity flag as a coloured VALID/INVALID.
func Verdict(ok bool) string {
	if ok {
		return Green("VALID")
	}
	return Red("INVALID")
}

// DotPad pads name with dots to the given width.
// Example: DotPad("spines", 12) → "spines ....."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	return name + " " + strings.Repeat(".", width-len(name)-1)
}

// Ratio formats an oversubscription ratio as "3.25:1".
func Ratio(r float64) string {
	return fmt.Sprintf("%.2f:1", r)
}
