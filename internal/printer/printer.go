package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes CLI output. Out carries regular output and Err carries
// diagnostics, so piped output stays clean.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// std is the printer used by the package-level helpers.
var std = &Printer{Out: os.Stdout, Err: os.Stderr}

// New returns a printer writing to out and errOut.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

// Success prints a success message in green with a checkmark prefix
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(p.Out, msg)
}

// Info prints an informational message in the default color
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a warning to Err in yellow
func (p *Printer) Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(p.Err, msg)
}

// Step prints a step message with emphasis (used in multi-step operations)
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Fields prints aligned key/value pairs in key order.
func (p *Printer) Fields(fields map[string]string) {
	keys := sortedKeys(fields)
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}
	for _, k := range keys {
		faint.Fprintf(p.Out, "  %-*s", width+1, k+":")
		fmt.Fprintf(p.Out, " %s\n", fields[k])
	}
}

// Error prints a formatted error with title, explanation, context and
// suggestions to Err, and returns a simple error carrying only the title for
// Cobra (which runs with SilenceErrors).
func (p *Printer) Error(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		fmt.Fprintf(p.Err, "\n")
		for _, key := range sortedKeys(context) {
			fmt.Fprintf(p.Err, "  %s: %s\n", key, context[key])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(p.Err, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(p.Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(p.Err, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(p.Err, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	return fmt.Errorf("%s", title)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Success prints a success message to stdout
func Success(format string, a ...any) { std.Success(format, a...) }

// Info prints an informational message to stdout
func Info(format string, a ...any) { std.Info(format, a...) }

// Warning prints a warning to stderr
func Warning(format string, a ...any) { std.Warning(format, a...) }

// Step prints a step message to stdout
func Step(format string, a ...any) { std.Step(format, a...) }

// Fields prints aligned key/value pairs to stdout
func Fields(fields map[string]string) { std.Fields(fields) }

// Error prints a formatted error to stderr and returns an error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return std.Error(title, explanation, nil, suggestions)
}

// ErrorWithContext prints a formatted error with context details to stderr
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	return std.Error(title, explanation, context, suggestions)
}
