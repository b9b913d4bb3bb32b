package runner

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/grovetools/rdebug/debugger/delve"
	"github.com/grovetools/rdebug/errors"
	"golang.org/x/sys/unix"
)

// ShimCommand is the hidden subcommand that prepares a wrapped program.
const ShimCommand = "shim"

// ShimArgs returns the arguments that make the rdebug binary re-exec
// itself as program. coreDump asks for an unlimited core size.
func ShimArgs(program string, args []string, coreDump bool) []string {
	out := []string{ShimCommand}
	if coreDump {
		out = append(out, "--core-dump")
	}
	out = append(out, "--", program)
	return append(out, args...)
}

// Shim lets any process of the user trace the current one, optionally
// raises RLIMIT_CORE, and replaces the process image with program. The
// pid stays the same, so the parent's view of its child is the program.
// Shim only returns on error.
func Shim(program string, args []string, coreDump bool) error {
	if err := delve.AllowPtrace(); err != nil {
		return errors.Wrap(err, errors.ErrCodePermissionDenied, "failed to allow ptrace")
	}

	if coreDump {
		var lim unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_CORE, &lim); err == nil {
			lim.Cur = lim.Max
			// Best effort: a hard limit of zero still leaves the crash reported.
			_ = unix.Setrlimit(unix.RLIMIT_CORE, &lim)
		}
	}

	path, err := exec.LookPath(program)
	if err != nil {
		return errors.New(errors.ErrCodeCommandNotFound, fmt.Sprintf("program %q not found", program)).
			WithDetail("program", program)
	}

	argv := append([]string{program}, args...)
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return errors.Wrap(err, errors.ErrCodeCommandFailed, "failed to exec "+program)
	}
	return nil
}
