// Package ui colors machine states in CLI listings. Color is plain ANSI256
// escapes gated by the usual environment conventions.
package ui

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ANSI256 color codes for CLI listings.
const (
	colorStarted = 40  // green
	colorStopped = 160 // red
	colorMuted   = 245 // medium gray
)

var noColor bool

// RenderState colors a machine state: green for started, red for
// stopped/failed, gray otherwise.
func RenderState(state string) string {
	if noColor {
		return state
	}
	switch state {
	case "started":
		return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorStarted, state)
	case "stopped", "failed":
		return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorStopped, state)
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, state)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// ShouldUseColor reports whether listing output should be colored:
// NO_COLOR always wins, then CLICOLOR_FORCE/CLICOLOR, then whether stdout
// is a terminal.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch {
	case os.Getenv("CLICOLOR_FORCE") == "1":
		return true
	case os.Getenv("CLICOLOR") == "0":
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
