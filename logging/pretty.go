package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/rdebug/tui/theme"
)

// PrettyLogger writes human-facing status lines. Structured diagnostics go
// through NewLogger instead.
type PrettyLogger struct {
	writer io.Writer
	theme  *theme.Theme
}

// NewPrettyLogger creates a pretty logger writing to stderr.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer: os.Stderr,
		theme:  theme.DefaultTheme,
	}
}

// WithWriter sets a custom writer for pretty output
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	return p
}

// Writer returns the destination of pretty output.
func (p *PrettyLogger) Writer() io.Writer {
	return p.writer
}

// Success logs a success message with a checkmark
func (p *PrettyLogger) Success(message string) {
	fmt.Fprintf(p.writer, "%s %s\n", p.theme.Success.Render("✓"), p.theme.Success.Render(message))
}

// InfoPretty logs an info message with pretty formatting
func (p *PrettyLogger) InfoPretty(message string) {
	fmt.Fprintf(p.writer, "%s\n", p.theme.Info.Render(message))
}

// WarnPretty logs a warning with pretty formatting
func (p *PrettyLogger) WarnPretty(message string) {
	fmt.Fprintf(p.writer, "%s %s\n", p.theme.Warning.Render("⚠"), p.theme.Warning.Render(message))
}

// ErrorPretty logs an error with pretty formatting
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	fmt.Fprintf(p.writer, "%s %s", p.theme.Error.Render("✗"), p.theme.Error.Render(message))
	if err != nil {
		fmt.Fprintf(p.writer, ": %s", p.theme.Error.Render(err.Error()))
	}
	fmt.Fprintln(p.writer)
}

// Field logs a key-value pair with pretty formatting
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.theme.Muted.Render(key), p.theme.Bold.Render(fmt.Sprint(value)))
}

// Code prints a command the user should copy, one line per row.
func (p *PrettyLogger) Code(content string) {
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.writer, "  %s\n", p.theme.Command.Render(line))
	}
}

// Blank prints a blank line
func (p *PrettyLogger) Blank() {
	fmt.Fprintln(p.writer)
}
