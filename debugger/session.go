package debugger

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/logging"
	"github.com/grovetools/rdebug/pkg/netaddr"
	"github.com/grovetools/rdebug/pkg/tunnel"
	"github.com/sirupsen/logrus"
)

// Session is the state of one remote debug session. The zero value is not
// usable; construct it with NewSession and share the pointer.
//
// A Session moves from UNARMED to LISTENING once and never back.
type Session struct {
	adapter Adapter

	mu         sync.Mutex
	started    bool
	descriptor Descriptor

	out           io.Writer
	logger        *logrus.Entry
	preferredPort int
	localPort     int
	bindAddress   string

	findPort func(int) (int, error)
	hostname func() (string, error)
	workdir  func() (string, error)
	identity func(context.Context) (tunnel.Identity, error)
}

// NewSession creates an UNARMED session backed by adapter.
func NewSession(adapter Adapter, opts ...Option) *Session {
	s := &Session{
		adapter:       adapter,
		out:           os.Stdout,
		preferredPort: config.DefaultPreferredPort,
		localPort:     config.DefaultLocalPort,
		bindAddress:   config.DefaultBindAddress,
		findPort:      netaddr.FindFreePort,
		hostname:      netaddr.LocalHostname,
		workdir:       os.Getwd,
		identity:      defaultIdentity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("debugger")
	}
	return s
}

// Start makes the session listenable and returns how to reach it. Only the
// first successful call binds; later calls report the existing descriptor.
// With wait set, Start then blocks in Pause until a client attaches.
func (s *Session) Start(ctx context.Context, wait bool) (Descriptor, error) {
	desc, err := s.arm(ctx)
	if err != nil {
		return Descriptor{}, err
	}
	if wait {
		if err := s.Pause(ctx); err != nil {
			return desc, err
		}
	}
	return desc, nil
}

func (s *Session) arm(ctx context.Context) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		fmt.Fprintf(s.out, "[DEBUGGER] Already started on %s:%d\n", s.descriptor.Hostname, s.descriptor.Port)
		return s.descriptor, nil
	}

	port, err := s.findPort(s.preferredPort)
	if err != nil {
		return Descriptor{}, err
	}
	host, err := s.hostname()
	if err != nil {
		return Descriptor{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to determine hostname")
	}
	cwd, err := s.workdir()
	if err != nil {
		return Descriptor{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to determine working directory")
	}

	addr := net.JoinHostPort(s.bindAddress, strconv.Itoa(port))
	s.logger.WithField("address", addr).Debug("Starting debug adapter")
	if err := s.adapter.Listen(ctx, addr); err != nil {
		if _, ok := errors.As(err); ok {
			return Descriptor{}, err
		}
		return Descriptor{}, errors.ListenFailed(addr, err)
	}

	s.started = true
	s.descriptor = Descriptor{Hostname: host, Port: port, RemotePath: cwd}

	id, err := s.identity(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Could not resolve login host; using short name")
	}
	announce(s.out, s.descriptor, addr, id.SSHCommand(host, port, s.localPort), s.localPort)

	return s.descriptor, nil
}

// Pause blocks until a client attaches, then yields to it at the caller's
// frame. It fails with NOT_STARTED, without blocking, if Start never
// succeeded.
func (s *Session) Pause(ctx context.Context) error {
	if !s.Started() {
		return errors.NotStarted()
	}

	fmt.Fprintln(s.out, "[DEBUGGER] Pausing execution. Attach your debugger now!")
	if err := s.adapter.WaitForClient(ctx); err != nil {
		return err
	}
	s.adapter.Breakpoint()
	fmt.Fprintln(s.out, "[DEBUGGER] Debugger attached! Resuming execution.")
	return nil
}

// Breakpoint yields to an attached client without waiting for one.
func (s *Session) Breakpoint() {
	if s.Started() {
		s.adapter.Breakpoint()
	}
}

// Started reports whether the session is LISTENING.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Descriptor returns the connection details once the session is LISTENING.
func (s *Session) Descriptor() (Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor, s.started
}

// Close releases adapter resources. The session stays LISTENING; Close is
// meant for process teardown.
func (s *Session) Close() error {
	if c, ok := s.adapter.(Closer); ok {
		return c.Close()
	}
	return nil
}
