package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/samzong/gpush/internal/staging"
	"github.com/stretchr/testify/assert"
)

func TestNewSpinner_DisabledOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinner(&buf, "working")
	assert.False(t, sp.enabled)

	sp.Start()
	sp.UpdateMessage("still working")
	sp.Stop()
	assert.Empty(t, buf.String())
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestStatusLabel(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	assert.Equal(t, "idle", StatusLabel(staging.StatusIdle))
	assert.Equal(t, "error", StatusLabel(staging.StatusError))
	assert.Equal(t, "weird", StatusLabel(staging.Status("weird")))
}
