// Package commandtest provides a scripted command.Executor for tests.
package commandtest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Response describes how a faked command behaves.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Delay    time.Duration
	// Missing makes the command behave as if it were absent from PATH.
	Missing bool
}

// Invocation records one command created through the executor.
type Invocation struct {
	Name string
	Args []string
}

// Line joins name and args with spaces.
func (i Invocation) Line() string {
	return strings.TrimSpace(i.Name + " " + strings.Join(i.Args, " "))
}

// Executor runs every command through /bin/sh, replaying the Response
// registered for the command name. Unknown commands exit 127.
type Executor struct {
	mu          sync.Mutex
	responses   map[string]Response
	invocations []Invocation
}

// NewExecutor returns an empty scripted executor.
func NewExecutor() *Executor {
	return &Executor{responses: make(map[string]Response)}
}

// On registers the response for a command name.
func (e *Executor) On(name string, resp Response) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[name] = resp
	return e
}

// Invocations returns the commands created so far.
func (e *Executor) Invocations() []Invocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Invocation, len(e.invocations))
	copy(out, e.invocations)
	return out
}

// Command implements command.Executor.
func (e *Executor) Command(name string, args ...string) *exec.Cmd {
	return e.CommandContext(context.Background(), name, args...)
}

// CommandContext implements command.Executor.
func (e *Executor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	e.mu.Lock()
	e.invocations = append(e.invocations, Invocation{Name: name, Args: append([]string(nil), args...)})
	resp, ok := e.responses[name]
	e.mu.Unlock()

	if ok && resp.Missing {
		cmd := exec.CommandContext(ctx, name)
		cmd.Err = &exec.Error{Name: name, Err: exec.ErrNotFound}
		return cmd
	}
	if !ok {
		resp = Response{Stderr: fmt.Sprintf("%s: command not scripted", name), ExitCode: 127}
	}

	script := `printf '%s' "$FAKE_STDOUT"; printf '%s' "$FAKE_STDERR" >&2`
	if resp.Delay > 0 {
		script += fmt.Sprintf("; sleep %.3f", resp.Delay.Seconds())
	}
	script += fmt.Sprintf("; exit %d", resp.ExitCode)

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", script)
	cmd.Env = []string{
		"PATH=/usr/bin:/bin",
		"FAKE_STDOUT=" + resp.Stdout,
		"FAKE_STDERR=" + resp.Stderr,
	}
	// sleep keeps the output pipes open after a context kill of sh.
	cmd.WaitDelay = 200 * time.Millisecond
	return cmd
}

// LookPath implements command.Executor.
func (e *Executor) LookPath(file string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if resp, ok := e.responses[file]; ok && !resp.Missing {
		return "/fake/bin/" + file, nil
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}
