package delve

import (
	"fmt"
	"os"
	"strconv"

	"github.com/grovetools/rdebug/errors"
)

// Kind selects the dlv sub-command used for a target.
type Kind int

const (
	// Self attaches to the calling process and keeps it running.
	Self Kind = iota
	// Attach attaches to another process, which halts until a client continues it.
	Attach
	// Exec launches a program under the debugger, halted at entry.
	Exec
	// Core opens a core dump for post-mortem inspection.
	Core
)

func (k Kind) String() string {
	switch k {
	case Self:
		return "self"
	case Attach:
		return "attach"
	case Exec:
		return "exec"
	case Core:
		return "core"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Target is what dlv should debug.
type Target struct {
	Kind     Kind
	PID      int
	Program  string
	Args     []string
	CoreFile string
}

// TargetFunc resolves the target when the adapter starts listening, which
// may be long after the adapter was created.
type TargetFunc func() (Target, error)

// SelfTarget debugs the calling process.
func SelfTarget() Target {
	return Target{Kind: Self, PID: os.Getpid()}
}

// AttachTarget debugs a running process.
func AttachTarget(pid int) Target {
	return Target{Kind: Attach, PID: pid}
}

// ExecTarget launches program with args under the debugger.
func ExecTarget(program string, args ...string) Target {
	return Target{Kind: Exec, Program: program, Args: args}
}

// CoreTarget opens core, produced by program.
func CoreTarget(program, core string) Target {
	return Target{Kind: Core, Program: program, CoreFile: core}
}

// Static returns a TargetFunc that always yields t.
func Static(t Target) TargetFunc {
	return func() (Target, error) { return t, nil }
}

// Args builds the dlv command line serving t on addr.
func Args(t Target, addr string) ([]string, error) {
	common := []string{"--headless", "--accept-multiclient", "--api-version=2", "--listen=" + addr}

	switch t.Kind {
	case Self:
		// The caller keeps running until a client asks it to stop.
		args := append([]string{"attach", strconv.Itoa(t.PID)}, common...)
		return append(args, "--continue"), nil
	case Attach:
		if t.PID <= 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("attach target needs a pid, got %d", t.PID))
		}
		return append([]string{"attach", strconv.Itoa(t.PID)}, common...), nil
	case Exec:
		if t.Program == "" {
			return nil, errors.InvalidInput("exec target needs a program")
		}
		args := append([]string{"exec", t.Program}, common...)
		if len(t.Args) > 0 {
			args = append(append(args, "--"), t.Args...)
		}
		return args, nil
	case Core:
		if t.Program == "" || t.CoreFile == "" {
			return nil, errors.InvalidInput("core target needs a program and a core file")
		}
		return append([]string{"core", t.Program, t.CoreFile}, common...), nil
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedTarget, fmt.Sprintf("unsupported target %s", t.Kind))
	}
}
