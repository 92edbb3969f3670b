package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, debug bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(debug)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())
	SetVerbose(true)
	assert.True(t, IsVerbose())
}

func TestDebug(t *testing.T) {
	t.Run("debug mode", func(t *testing.T) {
		buf := capture(t, true)
		Debug("retrieved %d chunks", 3)
		Section("QUERY")
		assert.Contains(t, buf.String(), "retrieved 3 chunks")
		assert.Contains(t, buf.String(), "=== QUERY ===")
	})

	t.Run("quiet", func(t *testing.T) {
		buf := capture(t, false)
		Debug("hidden")
		Section("hidden")
		assert.Empty(t, buf.String())
	})
}

func TestInfoWarnAlwaysPrint(t *testing.T) {
	buf := capture(t, false)
	Info("loaded %s", "proj")
	Warn("persist failed: %v", "disk full")
	assert.Contains(t, buf.String(), "loaded proj\n")
	assert.Contains(t, buf.String(), "persist failed: disk full\n")
}
