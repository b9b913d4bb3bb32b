// Package postmortem keeps a crashed program inspectable: it opens a
// debugger at the failure site and keeps the process alive for attachment.
package postmortem

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/debugger"
	"github.com/grovetools/rdebug/logging"
	"github.com/sirupsen/logrus"
)

// ExitCode is used when a guarded function panicked, matching the Go
// runtime's own exit status for an unrecovered panic.
const ExitCode = 2

// Session is the part of debugger.Session a Guard drives.
type Session interface {
	Start(ctx context.Context, wait bool) (debugger.Descriptor, error)
	Breakpoint()
}

// PanicError describes a recovered panic.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Guard runs code under post-mortem protection.
type Guard struct {
	session  Session
	out      io.Writer
	interval time.Duration
	maxIdle  time.Duration
	exit     func(int)
	logger   *logrus.Entry
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithOutput sets where the failure trace is printed. Defaults to stderr.
func WithOutput(w io.Writer) GuardOption {
	return func(g *Guard) { g.out = w }
}

// WithIdle sets the idle tick and the optional idle limit (zero is unbounded).
func WithIdle(interval, maxIdle time.Duration) GuardOption {
	return func(g *Guard) {
		g.interval = interval
		g.maxIdle = maxIdle
	}
}

// WithConfig applies the post_mortem config section.
func WithConfig(cfg *config.Config) GuardOption {
	return func(g *Guard) {
		if cfg != nil {
			g.interval = cfg.IdleInterval()
			g.maxIdle = cfg.MaxIdle()
		}
	}
}

// WithExit replaces os.Exit.
func WithExit(exit func(int)) GuardOption {
	return func(g *Guard) { g.exit = exit }
}

// NewGuard creates a Guard for session.
func NewGuard(session Session, opts ...GuardOption) *Guard {
	g := &Guard{
		session:  session,
		out:      os.Stderr,
		interval: time.Hour,
		exit:     os.Exit,
		logger:   logging.NewLogger("postmortem"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run calls fn. If fn panics, Run prints the panic and its stack, starts
// the debugger without waiting, stops at a breakpoint in the recovering
// frame, idles until ctx ends or the idle limit passes, then exits with
// ExitCode. Errors returned by fn are passed through untouched.
//
// Run only returns after a panic when the exit function returns, which
// happens in tests; the result is then a *PanicError.
func (g *Guard) Run(ctx context.Context, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		perr := &PanicError{Value: r, Stack: debug.Stack()}
		fmt.Fprintf(g.out, "panic: %v\n\n%s\n", r, perr.Stack)

		fmt.Fprintln(g.out, "[DEBUGGER] Uncaught failure. Starting post-mortem debugger...")
		if _, startErr := g.session.Start(ctx, false); startErr != nil {
			g.logger.WithError(startErr).Error("Post-mortem debugger failed to start")
			g.exit(ExitCode)
			err = perr
			return
		}

		// Execution halts here for an attached client; the panicking frames
		// are still on this goroutine's stack.
		g.session.Breakpoint()

		fmt.Fprintln(g.out, "[DEBUGGER] Process kept alive for post-mortem debugging. Press Ctrl-C to exit.")
		if idleErr := Idle(ctx, g.interval, g.maxIdle); idleErr != nil {
			g.logger.WithError(idleErr).Debug("Post-mortem idle interrupted")
		}
		g.exit(ExitCode)
		err = perr
	}()

	return fn()
}

// Idle keeps the process alive, waking every interval. It returns
// ctx.Err() when ctx ends, or nil once maxIdle has elapsed (maxIdle <= 0
// waits for ctx alone).
func Idle(ctx context.Context, interval, maxIdle time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var limit <-chan time.Time
	if maxIdle > 0 {
		timer := time.NewTimer(maxIdle)
		defer timer.Stop()
		limit = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-limit:
			return nil
		case <-ticker.C:
		}
	}
}
