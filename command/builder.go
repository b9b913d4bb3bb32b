package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/rdebug/errors"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 30 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

var (
	jobIDPattern    = regexp.MustCompile(`^[0-9]+(_[0-9]+)?(\.[0-9]+)?$`)
	nodeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-\[\],]*$`)
	signalPattern   = regexp.MustCompile(`^(SIG)?[A-Z][A-Z0-9]*$`)
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

// SetDefaultTimeout changes the timeout applied by Build. Values above
// MaxTimeout are capped; zero or negative values restore DefaultTimeout.
func (sb *SafeBuilder) SetDefaultTimeout(timeout time.Duration) {
	switch {
	case timeout <= 0:
		timeout = DefaultTimeout
	case timeout > MaxTimeout:
		timeout = MaxTimeout
	}
	sb.defaultTimeout = timeout
}

// makeDefaultValidators returns the default set of validators
func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"jobID":    validateJobID,
		"pid":      validatePID,
		"nodeName": validateNodeName,
		"signal":   validateSignal,
	}
}

// validateJobID accepts plain, array (123_4) and step (123.0) Slurm job ids.
func validateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	if !jobIDPattern.MatchString(id) {
		return fmt.Errorf("invalid job id: %s", id)
	}
	return nil
}

// validatePID ensures the value is a positive integer
func validatePID(value string) error {
	if value == "" {
		return fmt.Errorf("process id cannot be empty")
	}
	pid, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("process id must be numeric: %s", value)
	}
	if pid <= 0 {
		return fmt.Errorf("process id must be positive: %d", pid)
	}
	return nil
}

// validateNodeName ensures node names and Slurm hostlists are safe
func validateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if !nodeNamePattern.MatchString(name) {
		return fmt.Errorf("invalid node name: %s", name)
	}
	return nil
}

// validateSignal ensures signal names are plain identifiers like USR1 or SIGUSR1
func validateSignal(name string) error {
	if name == "" {
		return fmt.Errorf("signal name cannot be empty")
	}
	if !signalPattern.MatchString(name) {
		return fmt.Errorf("invalid signal name: %s", name)
	}
	return nil
}

// Command represents a safe command configuration
type Command struct {
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	// Validate command name
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}

	// Apply timeout to context; Run releases it.
	timeoutCtx, cancel := context.WithTimeout(ctx, sb.defaultTimeout)

	return &Command{
		parent:   ctx,
		ctx:      timeoutCtx,
		cancel:   cancel,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithTimeout(c.parent, timeout)

	c.ctx = ctx
	c.cancel = cancel
	c.timeout = timeout
	return c
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// Exec creates and returns an exec.Cmd
func (c *Command) Exec() *exec.Cmd {
	return c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
}

// String renders the command line for messages.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Output runs the command and returns its stdout. Failures are mapped to
// COMMAND_NOT_FOUND, COMMAND_TIMEOUT or COMMAND_FAILED; the latter carries the
// captured stderr verbatim.
func (c *Command) Output() (string, error) {
	if c.cancel != nil {
		defer c.cancel()
	}

	cmd := c.Exec()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		return "", errors.CommandNotFound(c.name)
	}
	if stderrors.Is(c.ctx.Err(), context.DeadlineExceeded) {
		return "", errors.CommandTimeout(c.String(), c.timeout)
	}
	return "", errors.CommandFailedWithOutput(c.String(), err, stderr.String())
}
