// Package runner drives a wrapped program under rdebug: straight under the
// debugger, armed for lite-mode activation, or guarded for post-mortem
// debugging of a crash.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/grovetools/rdebug/command"
	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/debugger"
	"github.com/grovetools/rdebug/debugger/delve"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/lite"
	"github.com/grovetools/rdebug/logging"
	"github.com/grovetools/rdebug/pkg/process"
	"github.com/grovetools/rdebug/postmortem"
	"github.com/sirupsen/logrus"
)

// InterruptedExitCode is returned when ctx ends before the program does.
const InterruptedExitCode = 130

// Adapter is a debug server running as its own process.
type Adapter interface {
	debugger.Adapter
	debugger.Closer
	Done() <-chan struct{}
	Err() error
}

// AdapterFactory builds the adapter serving target.
type AdapterFactory func(target delve.TargetFunc) Adapter

// Runner wraps one program.
type Runner struct {
	program    string
	args       []string
	lite       bool
	postMortem bool

	cfg         *config.Config
	executor    command.Executor
	self        string
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	procRoot    string
	coreTimeout time.Duration
	coreSettle  time.Duration
	logger      *logrus.Entry

	newAdapter  AdapterFactory
	sessionOpts []debugger.Option
	liteOpts    []lite.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithLite arms lite mode.
func WithLite(enabled bool) Option {
	return func(r *Runner) { r.lite = enabled }
}

// WithPostMortem opens a debugger on the core dump when the program crashes.
func WithPostMortem(enabled bool) Option {
	return func(r *Runner) { r.postMortem = enabled }
}

// WithConfig sets the effective configuration.
func WithConfig(cfg *config.Config) Option {
	return func(r *Runner) { r.cfg = cfg }
}

// WithExecutor replaces the executor used to start the wrapped program.
func WithExecutor(e command.Executor) Option {
	return func(r *Runner) { r.executor = e }
}

// WithSelf sets the rdebug executable used for the shim.
func WithSelf(path string) Option {
	return func(r *Runner) { r.self = path }
}

// WithIO sets the wrapped program's standard streams. rdebug's own
// messages go to stdout.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithProcRoot sets the procfs mount used to locate core dumps.
func WithProcRoot(root string) Option {
	return func(r *Runner) { r.procRoot = root }
}

// WithCoreWait bounds how long to wait for a core dump and how long it must
// be quiet before it is considered complete.
func WithCoreWait(timeout, settle time.Duration) Option {
	return func(r *Runner) {
		r.coreTimeout = timeout
		r.coreSettle = settle
	}
}

// WithAdapterFactory replaces the Delve adapter.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(r *Runner) { r.newAdapter = f }
}

// WithSessionOptions are passed to every debugger.Session the runner creates.
func WithSessionOptions(opts ...debugger.Option) Option {
	return func(r *Runner) { r.sessionOpts = append(r.sessionOpts, opts...) }
}

// WithLiteOptions are passed to lite.Arm.
func WithLiteOptions(opts ...lite.Option) Option {
	return func(r *Runner) { r.liteOpts = append(r.liteOpts, opts...) }
}

// WithLogger sets the structured logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a Runner for program and args.
func New(program string, args []string, opts ...Option) *Runner {
	r := &Runner{
		program:     program,
		args:        args,
		cfg:         config.Default(),
		executor:    &command.RealExecutor{},
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		procRoot:    "/proc",
		coreTimeout: 30 * time.Second,
		coreSettle:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewLogger("runner")
	}
	if r.self == "" {
		if exe, err := os.Executable(); err == nil {
			r.self = exe
		} else {
			r.self = "rdebug"
		}
	}
	if r.newAdapter == nil {
		dlv := r.cfg.Debug.DlvPath
		r.newAdapter = func(target delve.TargetFunc) Adapter {
			return delve.New(dlv, target)
		}
	}
	return r
}

// Run executes the program and returns the exit code rdebug should exit
// with. Errors are returned only when the program could not be run.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if !r.lite && !r.postMortem {
		return r.runUnderDebugger(ctx)
	}
	return r.runWrapped(ctx)
}

func (r *Runner) session(adapter Adapter) *debugger.Session {
	opts := append([]debugger.Option{
		debugger.WithConfig(r.cfg),
		debugger.WithOutput(r.stdout),
	}, r.sessionOpts...)
	return debugger.NewSession(adapter, opts...)
}

// runUnderDebugger starts the program halted inside dlv and waits for a
// client before it runs.
func (r *Runner) runUnderDebugger(ctx context.Context) (int, error) {
	adapter := r.newAdapter(delve.Static(delve.ExecTarget(r.program, r.args...)))
	session := r.session(adapter)
	defer session.Close()

	if _, err := session.Start(ctx, true); err != nil {
		if ctx.Err() != nil {
			return InterruptedExitCode, nil
		}
		return 1, err
	}

	select {
	case <-adapter.Done():
		return exitCode(adapter.Err())
	case <-ctx.Done():
		return InterruptedExitCode, nil
	}
}

// runWrapped runs the program as a child through the shim and keeps the
// debugger off until a signal or a crash asks for it.
func (r *Runner) runWrapped(ctx context.Context) (int, error) {
	var watcher *postmortem.CoreWatcher
	if r.postMortem {
		watcher = r.watchCores()
		if watcher != nil {
			defer watcher.Close()
		}
	}

	cmd := r.executor.Command(r.self, ShimArgs(r.program, r.args, r.postMortem)...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	if r.postMortem {
		cmd.Env = append(cmd.Env, "GOTRACEBACK=crash")
	}

	if err := cmd.Start(); err != nil {
		return 1, errors.Wrap(err, errors.ErrCodeCommandFailed, "failed to start "+r.program).
			WithDetail("program", r.program)
	}
	pid := cmd.Process.Pid
	r.logger.WithFields(logrus.Fields{
		"program": r.program,
		"pid":     pid,
	}).Debug("Started wrapped program")

	live := r.session(r.newAdapter(delve.Static(delve.AttachTarget(pid))))
	defer live.Close()

	// An activation blocked on a client ends with the program.
	liteCtx, cancelLite := context.WithCancel(ctx)
	var trigger *lite.Trigger
	disarm := func() {
		cancelLite()
		if trigger != nil {
			trigger.Stop()
		}
	}
	defer disarm()

	if r.lite {
		sig, err := process.ParseSignal(r.cfg.Debug.Signal)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return 1, errors.InvalidInput(err.Error())
		}
		opts := append([]lite.Option{
			lite.WithSignal(sig),
			lite.WithOutput(r.stdout),
		}, r.liteOpts...)
		trigger, err = lite.Arm(liteCtx, live, opts...)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return 1, err
		}
	}

	waitErr := r.wait(ctx, cmd)
	disarm()
	code, err := exitCode(waitErr)
	if err != nil {
		return code, err
	}
	if ctx.Err() != nil {
		return InterruptedExitCode, nil
	}

	status, ok := waitStatus(waitErr)
	if !r.postMortem || !ok || !status.Signaled() {
		return code, nil
	}

	live.Close()

	if !status.CoreDump() {
		r.logger.WithField("signal", status.Signal().String()).
			Warn("Program was killed without a core dump; nothing to debug")
		return code, nil
	}
	if watcher == nil {
		return code, nil
	}
	return r.debugCore(ctx, watcher, pid, code)
}

// wait forwards ctx cancellation to the child as SIGTERM.
func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		return <-done
	}
}

func (r *Runner) watchCores() *postmortem.CoreWatcher {
	cwd, err := os.Getwd()
	if err != nil {
		r.logger.WithError(err).Warn("Cannot determine working directory; post-mortem disabled")
		return nil
	}
	loc, err := postmortem.ReadCoreLocation(r.procRoot, cwd)
	if err != nil {
		r.logger.WithError(err).Warn("Post-mortem debugging of the program is unavailable")
		return nil
	}
	watcher, err := postmortem.NewCoreWatcher(loc)
	if err != nil {
		r.logger.WithError(err).Warn("Post-mortem debugging of the program is unavailable")
		return nil
	}
	return watcher
}

// debugCore serves the crashed program's core dump until ctx ends or the
// idle limit passes.
func (r *Runner) debugCore(ctx context.Context, watcher *postmortem.CoreWatcher, pid, code int) (int, error) {
	fmt.Fprintln(r.stdout, "[DEBUGGER] Uncaught failure. Starting post-mortem debugger...")

	waitCtx, cancel := context.WithTimeout(ctx, r.coreTimeout)
	core, err := watcher.Wait(waitCtx, pid, r.coreSettle)
	cancel()
	if err != nil {
		r.logger.WithError(err).Warn("No core dump found for post-mortem debugging")
		return code, nil
	}
	r.logger.WithField("core", core).Debug("Core dump located")

	session := r.session(r.newAdapter(delve.Static(delve.CoreTarget(r.program, core))))
	defer session.Close()

	if _, err := session.Start(ctx, false); err != nil {
		return code, err
	}

	fmt.Fprintf(r.stdout, "[DEBUGGER] Core dump %s kept open for post-mortem debugging. Press Ctrl-C to exit.\n", core)
	if err := postmortem.Idle(ctx, r.cfg.IdleInterval(), r.cfg.MaxIdle()); err != nil {
		r.logger.WithError(err).Debug("Post-mortem idle interrupted")
	}
	return code, nil
}

// exitCode maps a wait error to a shell-style exit code. Only errors that
// are not exit statuses are returned.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if status, ok := waitStatus(err); ok {
		if status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return status.ExitStatus(), nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 1, errors.Wrap(err, errors.ErrCodeCommandFailed, "program did not run")
}

func waitStatus(err error) (syscall.WaitStatus, bool) {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return 0, false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	return status, ok
}
