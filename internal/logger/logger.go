// Package logger writes leveled diagnostics to stderr. Stdout belongs to the
// MCP stdio transport and is never written here.
//
// Debug and Section are only printed in debug mode (RAG_DEBUG or --debug).
// Info and Warn are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr

	debugColor   = color.New(color.FgCyan)
	infoColor    = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow, color.Bold)
	sectionColor = color.New(color.FgMagenta, color.Bold)
)

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether debug output is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects all log output. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message in debug mode.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, debugColor.Sprint("[DEBUG]")+" "+format+"\n", args...)
	}
}

// Section prints a header in debug mode.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n%s\n", sectionColor.Sprintf("=== %s ===", name))
	}
}

// Info prints an informational message.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, infoColor.Sprint("[INFO]")+" "+format+"\n", args...)
}

// Warn prints a warning.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, warnColor.Sprint("[WARN]")+" "+format+"\n", args...)
}
