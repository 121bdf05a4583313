package ui

import (
	"github.com/fatih/color"
	"github.com/samzong/gpush/internal/staging"
)

var statusColors = map[staging.Status]*color.Color{
	staging.StatusIdle:       color.New(color.FgCyan),
	staging.StatusGenerating: color.New(color.FgMagenta),
	staging.StatusCommitting: color.New(color.FgYellow),
	staging.StatusCommitted:  color.New(color.FgGreen),
	staging.StatusError:      color.New(color.FgRed),
}

// StatusLabel returns the status text coloured for terminals.
func StatusLabel(s staging.Status) string {
	c, ok := statusColors[s]
	if !ok {
		return string(s)
	}
	return c.Sprint(string(s))
}
