// Package lite defers debugger activation until the process receives a
// signal, so long jobs do not hold a debug listener for their whole run.
package lite

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/grovetools/rdebug/debugger"
	"github.com/grovetools/rdebug/logging"
	"github.com/grovetools/rdebug/pkg/process"
	"github.com/sirupsen/logrus"
)

// NotInJob is printed as the job id outside a scheduler allocation.
const NotInJob = "<not in a job>"

// Starter is the part of debugger.Session a trigger drives.
type Starter interface {
	Start(ctx context.Context, wait bool) (debugger.Descriptor, error)
}

// Trigger is an armed lite-mode handler.
type Trigger struct {
	signal      os.Signal
	source      chan os.Signal
	notify      bool
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
	activations atomic.Int64
}

type options struct {
	signal  os.Signal
	out     io.Writer
	getenv  func(string) string
	pid     int
	command string
	source  chan os.Signal
	onError func(error)
	logger  *logrus.Entry
}

// Option configures Arm.
type Option func(*options)

// WithSignal sets the activation signal. Defaults to SIGUSR1.
func WithSignal(sig os.Signal) Option {
	return func(o *options) { o.signal = sig }
}

// WithOutput sets where the arming notice is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithGetenv replaces os.Getenv for reading the job id.
func WithGetenv(getenv func(string) string) Option {
	return func(o *options) { o.getenv = getenv }
}

// WithPID sets the process id printed for the attach command. Defaults to
// the current process; a wrapper reports its own pid here too, since the
// wrapper is what receives the signal.
func WithPID(pid int) Option {
	return func(o *options) { o.pid = pid }
}

// WithCommandName sets the binary name used in the printed attach command.
func WithCommandName(name string) Option {
	return func(o *options) { o.command = name }
}

// WithSource delivers activations from ch instead of the OS.
func WithSource(ch chan os.Signal) Option {
	return func(o *options) { o.source = ch }
}

// WithErrorHandler receives errors from activations. Defaults to logging them.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithLogger sets the structured logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) { o.logger = logger }
}

// Arm prints how to activate the debugger and starts the goroutine that
// turns each delivered signal into session.Start(ctx, true). The OS side
// only queues the signal; all debugger work happens on that goroutine.
func Arm(ctx context.Context, session Starter, opts ...Option) (*Trigger, error) {
	o := options{
		signal:  syscall.SIGUSR1,
		out:     os.Stdout,
		getenv:  os.Getenv,
		pid:     os.Getpid(),
		command: "rdebug",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("lite")
	}
	if o.onError == nil {
		o.onError = func(err error) {
			o.logger.WithError(err).Error("Debugger activation failed")
		}
	}

	t := &Trigger{
		signal: o.signal,
		source: o.source,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if t.source == nil {
		t.source = make(chan os.Signal, 1)
		t.notify = true
		signal.Notify(t.source, o.signal)
	}

	jobID := JobID(o.getenv)
	fmt.Fprintf(o.out, "[DEBUGGER] Lite mode armed. Job ID: %s  PID: %d\n", jobID, o.pid)
	if jobID == NotInJob {
		fmt.Fprintf(o.out, "[DEBUGGER] To activate the debugger, run:\n  kill -s %s %d\n", shortName(o.signal), o.pid)
	} else {
		fmt.Fprintf(o.out, "[DEBUGGER] To activate the debugger, run on a login node:\n  %s\n",
			AttachCommand(o.command, jobID, o.pid, shortName(o.signal)))
	}

	o.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"pid":    o.pid,
		"signal": shortName(o.signal),
	}).Debug("Lite mode armed")

	go t.run(ctx, session, o.onError)
	return t, nil
}

func (t *Trigger) run(ctx context.Context, session Starter, onError func(error)) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-t.source:
			t.activations.Add(1)
			if _, err := session.Start(ctx, true); err != nil {
				onError(err)
			}
		}
	}
}

// Stop unregisters the signal and ends the activation goroutine. An
// activation already in progress runs to completion first.
func (t *Trigger) Stop() {
	t.stopOnce.Do(func() {
		if t.notify {
			signal.Stop(t.source)
		}
		close(t.stop)
	})
	<-t.done
}

// Activations counts signals that reached the session.
func (t *Trigger) Activations() int {
	return int(t.activations.Load())
}

// JobID returns SLURM_JOB_ID, or NotInJob.
func JobID(getenv func(string) string) string {
	if id := getenv("SLURM_JOB_ID"); id != "" {
		return id
	}
	return NotInJob
}

// AttachCommand is the command a user runs to activate a lite session.
// sig is the short signal name; the default USR1 is omitted.
func AttachCommand(binary, jobID string, pid int, sig string) string {
	cmd := fmt.Sprintf("%s attach %s %d", binary, jobID, pid)
	if sig != "" && sig != "USR1" {
		cmd += " --signal " + sig
	}
	return cmd
}

func shortName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		return process.ShortName(s)
	}
	return sig.String()
}
