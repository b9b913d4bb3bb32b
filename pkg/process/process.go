package process

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsProcessAlive checks if a process with the given PID is still running.
// It uses a signal-sending method that works on Unix-like systems (macOS, Linux).
func IsProcessAlive(pid int) bool {
	// PID 0 or less is invalid.
	if pid <= 0 {
		return false
	}

	// Find the process. This doesn't fail on Unix if the process doesn't exist.
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks for existence without delivering anything.
	// EPERM still means the process exists.
	err = process.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// ParseSignal resolves "USR1", "SIGUSR1" or "sigusr1" to a signal.
func ParseSignal(name string) (syscall.Signal, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if normalized == "" {
		return 0, fmt.Errorf("signal name cannot be empty")
	}
	if !strings.HasPrefix(normalized, "SIG") {
		normalized = "SIG" + normalized
	}
	sig := unix.SignalNum(normalized)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}

// ShortName returns the signal name without the SIG prefix, as accepted by
// kill -s. Unknown signals are rendered as their number.
func ShortName(sig syscall.Signal) string {
	name := unix.SignalName(sig)
	if name == "" {
		return fmt.Sprintf("%d", int(sig))
	}
	return strings.TrimPrefix(name, "SIG")
}
