package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
)

// Spinner wraps briandowns/spinner with TTY awareness
type Spinner struct {
	s       *spinner.Spinner
	enabled bool
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewSpinner creates a spinner on w that only displays when w is a TTY.
func NewSpinner(w io.Writer, message string) *Spinner {
	if !IsTerminal(w) {
		return &Spinner{enabled: false}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	return &Spinner{s: s, enabled: true}
}

// Start begins the spinner animation
func (sp *Spinner) Start() {
	if sp.enabled && sp.s != nil {
		sp.s.Start()
	}
}

// Stop ends the spinner animation
func (sp *Spinner) Stop() {
	if sp.enabled && sp.s != nil {
		sp.s.Stop()
	}
}

// UpdateMessage changes the spinner message
func (sp *Spinner) UpdateMessage(message string) {
	if sp.enabled && sp.s != nil {
		sp.s.Suffix = " " + message
	}
}
