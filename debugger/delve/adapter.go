// Package delve serves debug sessions with a headless dlv process. dlv
// speaks DAP and its JSON-RPC API on the same listen address.
package delve

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/grovetools/rdebug/command"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/logging"
	"github.com/sirupsen/logrus"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultReadyTimeout = 30 * time.Second
)

// Adapter implements debugger.Adapter over a dlv child process.
type Adapter struct {
	dlvPath  string
	target   TargetFunc
	executor command.Executor
	logger   *logrus.Entry
	output   io.Writer
	procfs   string

	pollInterval time.Duration
	readyTimeout time.Duration

	mu      sync.Mutex
	kind    Kind
	port    int
	process *os.Process
	exited  chan struct{}
	waitErr error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithExecutor replaces the process executor.
func WithExecutor(e command.Executor) Option {
	return func(a *Adapter) { a.executor = e }
}

// WithOutput receives dlv's own stdout and stderr. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(a *Adapter) { a.output = w }
}

// WithProcFS sets the procfs mount point used to watch sockets.
func WithProcFS(mountPoint string) Option {
	return func(a *Adapter) { a.procfs = mountPoint }
}

// WithPollInterval sets how often sockets are checked.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pollInterval = d }
}

// WithReadyTimeout bounds how long dlv may take to start listening.
func WithReadyTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.readyTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(a *Adapter) { a.logger = logger }
}

// New creates an adapter that runs dlvPath against the target returned by
// target at Listen time.
func New(dlvPath string, target TargetFunc, opts ...Option) *Adapter {
	a := &Adapter{
		dlvPath:      dlvPath,
		target:       target,
		executor:     &command.RealExecutor{},
		output:       os.Stderr,
		procfs:       "/proc",
		pollInterval: defaultPollInterval,
		readyTimeout: defaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewLogger("delve")
	}
	return a
}

// Listen starts dlv headless on addr and returns once the port accepts
// connections.
func (a *Adapter) Listen(ctx context.Context, addr string) error {
	a.mu.Lock()
	if a.process != nil {
		a.mu.Unlock()
		return errors.ListenFailed(addr, fmt.Errorf("dlv already running"))
	}
	a.mu.Unlock()

	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid listen address %q", addr))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid listen port %q", portStr))
	}

	target, err := a.target()
	if err != nil {
		return err
	}
	args, err := Args(target, addr)
	if err != nil {
		return err
	}

	if _, err := a.executor.LookPath(a.dlvPath); err != nil {
		return errors.DebuggerNotFound(a.dlvPath)
	}

	if target.Kind == Self {
		if err := AllowPtrace(); err != nil {
			a.logger.WithError(err).Warn("Could not relax ptrace restrictions; attach may fail")
		}
	}

	socks, err := newSockets(a.procfs)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to open procfs")
	}

	cmd := a.executor.Command(a.dlvPath, args...)
	cmd.Stdout = a.output
	cmd.Stderr = a.output

	a.logger.WithFields(logrus.Fields{
		"target": target.Kind.String(),
		"args":   args,
	}).Debug("Launching dlv")

	if err := cmd.Start(); err != nil {
		return errors.ListenFailed(addr, err)
	}

	exited := make(chan struct{})
	a.mu.Lock()
	a.kind = target.Kind
	a.port = port
	a.process = cmd.Process
	a.exited = exited
	a.mu.Unlock()

	go func() {
		err := cmd.Wait()
		a.mu.Lock()
		a.waitErr = err
		a.mu.Unlock()
		close(exited)
	}()

	readyCtx, cancel := context.WithTimeout(ctx, a.readyTimeout)
	defer cancel()

	err = a.poll(readyCtx, func() (bool, error) { return socks.listening(port) })
	if err != nil {
		a.Close()
		a.mu.Lock()
		a.process = nil
		a.mu.Unlock()
		return errors.ListenFailed(addr, err)
	}

	a.logger.WithField("port", port).Debug("dlv is listening")
	return nil
}

// WaitForClient blocks until a client holds a connection to the dlv port.
func (a *Adapter) WaitForClient(ctx context.Context) error {
	a.mu.Lock()
	port := a.port
	running := a.process != nil
	a.mu.Unlock()
	if !running {
		return errors.NotStarted()
	}

	socks, err := newSockets(a.procfs)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to open procfs")
	}
	return a.poll(ctx, func() (bool, error) { return socks.connected(port) })
}

// Breakpoint stops the calling goroutine in the debugger when dlv is
// attached to this process. For other targets the debuggee halts on its own.
func (a *Adapter) Breakpoint() {
	a.mu.Lock()
	self := a.process != nil && a.kind == Self
	exited := a.exited
	a.mu.Unlock()
	if !self {
		return
	}

	select {
	case <-exited:
		// Without a tracer the trap would kill the process.
		return
	default:
		runtime.Breakpoint()
	}
}

// Done is closed when the dlv process exits. It is nil before Listen.
func (a *Adapter) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exited
}

// Err returns dlv's exit error once Done is closed.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.waitErr
}

// Close kills dlv if it is still running and waits for it to exit.
func (a *Adapter) Close() error {
	a.mu.Lock()
	proc := a.process
	exited := a.exited
	a.mu.Unlock()
	if proc == nil {
		return nil
	}

	select {
	case <-exited:
		return nil
	default:
	}

	if err := proc.Kill(); err != nil {
		return err
	}
	<-exited
	return nil
}

// poll runs check until it reports true, dlv exits or ctx ends.
func (a *Adapter) poll(ctx context.Context, check func() (bool, error)) error {
	a.mu.Lock()
	exited := a.exited
	a.mu.Unlock()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			if err := a.Err(); err != nil {
				return fmt.Errorf("dlv exited: %w", err)
			}
			return fmt.Errorf("dlv exited")
		case <-ticker.C:
		}
	}
}
