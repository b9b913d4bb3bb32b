package errors

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// NotStarted is returned when a session is paused before it was started.
func NotStarted() *Error {
	return New(ErrCodeNotStarted, "debugger not started; call Start first")
}

// PortUnavailable creates an error for a port that could not be bound at all.
func PortUnavailable(port int, err error) *Error {
	return Wrap(err, ErrCodePortUnavailable, fmt.Sprintf("no bindable port (preferred %d)", port)).
		WithDetail("port", port)
}

// ListenFailed creates an error for a debug adapter that failed to start listening.
func ListenFailed(addr string, err error) *Error {
	return Wrap(err, ErrCodeListenFailed, fmt.Sprintf("debug adapter failed to listen on %s", addr)).
		WithDetail("address", addr)
}

// DebuggerNotFound creates an error for a missing debugger executable.
func DebuggerNotFound(path string) *Error {
	return New(ErrCodeDebuggerNotFound, fmt.Sprintf("debugger executable %q not found in PATH", path)).
		WithDetail("command", path)
}

// ResolveFailed creates a hostname resolution error.
func ResolveFailed(host string, err error) *Error {
	return Wrap(err, ErrCodeResolveFailed, fmt.Sprintf("could not resolve full name of %s", host)).
		WithDetail("host", host)
}

// CoreNotFound creates an error for a crashed program without a usable core dump.
func CoreNotFound(program, reason string) *Error {
	return New(ErrCodeCoreNotFound, fmt.Sprintf("no core dump for %s: %s", program, reason)).
		WithDetail("program", program)
}

// LaunchCorrupt creates an error for an unreadable launch configuration document.
func LaunchCorrupt(path string, err error) *Error {
	return Wrap(err, ErrCodeLaunchCorrupt, fmt.Sprintf("launch configuration %s is malformed", path)).
		WithDetail("path", path)
}

// InvalidInput creates a usage error.
func InvalidInput(message string) *Error {
	return New(ErrCodeInvalidInput, message)
}

// CommandNotFound creates an error for an external command missing from PATH.
func CommandNotFound(cmd string) *Error {
	return New(ErrCodeCommandNotFound, fmt.Sprintf("command %q not found; is this a cluster node?", cmd)).
		WithDetail("command", cmd)
}

// CommandTimeout creates an error for an external command that did not finish in time.
func CommandTimeout(cmd string, timeout time.Duration) *Error {
	return New(ErrCodeCommandTimeout, fmt.Sprintf("command %q timed out after %s", cmd, timeout)).
		WithDetail("command", cmd).
		WithDetail("timeout", timeout.String())
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *Error {
	rdErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		rdErr = rdErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return rdErr
}

// CommandFailedWithOutput is CommandFailed carrying the command's captured stderr.
func CommandFailedWithOutput(cmd string, err error, stderr string) *Error {
	rdErr := CommandFailed(cmd, err)
	if out := strings.TrimSpace(stderr); out != "" {
		rdErr = rdErr.WithDetail("stderr", out)
	}
	return rdErr
}
