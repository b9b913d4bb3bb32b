package cli

import (
	"fmt"
	"io"
	"os"

	stderrors "errors"

	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/tui/theme"
)

// ExitError carries a specific process exit status, such as the one of a
// wrapped program, without being reported as a failure message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a friendly message for err and returns the exit code.
func (h *ErrorHandler) Handle(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	t := theme.DefaultTheme
	fail := func(format string, args ...interface{}) {
		fmt.Fprintf(h.Out, "%s %s\n", t.Error.Render("Error:"), fmt.Sprintf(format, args...))
	}
	hint := func(format string, args ...interface{}) {
		fmt.Fprintln(h.Out, t.Muted.Render(fmt.Sprintf(format, args...)))
	}

	rdErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if rdErr == nil {
			return nil
		}
		return rdErr.Detail(key)
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fail("configuration file %v not found", detail("path"))

	case errors.ErrCodeConfigInvalid:
		fail("%v", err)
		hint("Run 'rdebug config' to inspect the effective settings.")

	case errors.ErrCodeCommandNotFound:
		fail("required command %q not found", detail("command"))
		hint("Slurm commands are only available on cluster nodes; run rdebug attach from a login node.")

	case errors.ErrCodeDebuggerNotFound:
		fail("debugger %q not found", detail("command"))
		hint("Install Delve with 'go install github.com/go-delve/delve/cmd/dlv@latest' or set debug.dlv_path.")

	case errors.ErrCodeCommandTimeout:
		fail("%q did not finish within %v", detail("command"), detail("timeout"))

	case errors.ErrCodeCommandFailed:
		fail("%v", err)
		if stderr, ok := detail("stderr").(string); ok && stderr != "" {
			fmt.Fprintln(h.Out, stderr)
		}

	case errors.ErrCodeInvalidInput:
		fail("%v", err)
		hint("Run 'rdebug --help' for usage.")

	case errors.ErrCodePortUnavailable, errors.ErrCodeListenFailed:
		fail("%v", err)
		hint("Another debugger may hold the port; set debug.preferred_port to pick a different one.")

	default:
		fail("%v", err)
	}

	if h.Verbose && rdErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", rdErr.ToJSON())
	}
	return 1
}
