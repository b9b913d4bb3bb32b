package debugger_test

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/rdebug/debugger"
	"github.com/grovetools/rdebug/debugger/debuggertest"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/pkg/tunnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer for tests that start sessions concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newSession(adapter debugger.Adapter, out *syncBuffer, opts ...debugger.Option) *debugger.Session {
	base := []debugger.Option{
		debugger.WithOutput(out),
		debugger.WithHostname("node42"),
		debugger.WithRemotePath("/scratch/alice/project"),
		debugger.WithIdentity(tunnel.Identity{User: "alice", LoginHost: "login1.cluster.org"}),
		debugger.WithPortFinder(func(int) (int, error) { return 6000, nil }),
		debugger.WithLocalPort(5678),
	}
	return debugger.NewSession(adapter, append(base, opts...)...)
}

func TestStartAnnouncesConnection(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	out := &syncBuffer{}
	s := newSession(adapter, out)

	desc, err := s.Start(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, debugger.Descriptor{Hostname: "node42", Port: 6000, RemotePath: "/scratch/alice/project"}, desc)
	assert.Equal(t, []string{"0.0.0.0:6000"}, adapter.Listens())

	text := out.String()
	assert.Contains(t, text, "node42")
	assert.Contains(t, text, "/scratch/alice/project")
	assert.Contains(t, text, "[DEBUGGER] Listening on 0.0.0.0:6000")
	assert.Contains(t, text, "ssh -N -L 5678:node42:6000 alice@login1.cluster.org")
	assert.Contains(t, text, "Then, attach the debugger to localhost:5678.")
}

func TestStartIsIdempotent(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	out := &syncBuffer{}
	s := newSession(adapter, out)
	ctx := context.Background()

	first, err := s.Start(ctx, false)
	require.NoError(t, err)
	second, err := s.Start(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, adapter.Listens(), 1)
	assert.Equal(t, 1, strings.Count(out.String(), "Listening on"))
	assert.Contains(t, out.String(), "[DEBUGGER] Already started on node42:6000")
}

// socketAdapter binds a real TCP listener so port ownership can be checked
// from outside the session.
type socketAdapter struct {
	*debuggertest.Adapter

	mu        sync.Mutex
	listeners []net.Listener
}

func (a *socketAdapter) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, ln)
	a.mu.Unlock()
	return a.Adapter.Listen(ctx, addr)
}

func (a *socketAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ln := range a.listeners {
		ln.Close()
	}
	a.listeners = nil
	return a.Adapter.Close()
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestStartHoldsPortAgainstOtherBinds(t *testing.T) {
	port := freePort(t)
	adapter := &socketAdapter{Adapter: debuggertest.NewAdapter()}
	s := newSession(adapter, &syncBuffer{}, debugger.WithPortFinder(func(int) (int, error) { return port, nil }))
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, err := s.Start(ctx, false)
	require.NoError(t, err)
	_, err = s.Start(ctx, false)
	require.NoError(t, err)

	desc, ok := s.Descriptor()
	require.True(t, ok)
	assert.Equal(t, port, desc.Port)
	assert.Len(t, adapter.Listens(), 1)

	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", desc.Port))
	if err == nil {
		ln.Close()
		t.Fatalf("port %d accepted a second bind while the session owns it", desc.Port)
	}
	assert.Contains(t, err.Error(), "address already in use")
}

func TestConcurrentStartBindsOnce(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	out := &syncBuffer{}
	s := newSession(adapter, out)

	var wg sync.WaitGroup
	descs := make([]debugger.Descriptor, 8)
	for i := range descs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := s.Start(context.Background(), false)
			assert.NoError(t, err)
			descs[i] = d
		}(i)
	}
	wg.Wait()

	assert.Len(t, adapter.Listens(), 1)
	for _, d := range descs {
		assert.Equal(t, descs[0], d)
	}
	assert.Equal(t, 1, strings.Count(out.String(), "Listening on"))
}

func TestPauseBeforeStart(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	s := newSession(adapter, &syncBuffer{})

	done := make(chan error, 1)
	go func() { done <- s.Pause(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCodeNotStarted))
	case <-time.After(time.Second):
		t.Fatal("Pause blocked on an unstarted session")
	}
	assert.Zero(t, adapter.Breakpoints())
}

func TestStartWaitBlocksUntilAttach(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	out := &syncBuffer{}
	s := newSession(adapter, out)

	done := make(chan error, 1)
	go func() {
		_, err := s.Start(context.Background(), true)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Start(wait=true) returned before a client attached")
	case <-time.After(50 * time.Millisecond):
	}

	adapter.Attach()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after attach")
	}

	assert.Equal(t, 1, adapter.Breakpoints())
	assert.Contains(t, out.String(), "[DEBUGGER] Debugger attached! Resuming execution.")
}

func TestPauseHonoursContext(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	s := newSession(adapter, &syncBuffer{})
	_, err := s.Start(context.Background(), false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Pause(ctx), context.DeadlineExceeded)
	assert.Zero(t, adapter.Breakpoints())
}

func TestFailedListenStaysUnarmed(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	adapter.ListenErr = fmt.Errorf("dlv exited")
	s := newSession(adapter, &syncBuffer{})

	_, err := s.Start(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeListenFailed))
	assert.False(t, s.Started())

	_, ok := s.Descriptor()
	assert.False(t, ok)

	adapter.ListenErr = nil
	_, err = s.Start(context.Background(), false)
	require.NoError(t, err, "a later Start retries")
	assert.True(t, s.Started())
}

func TestPortFinderError(t *testing.T) {
	s := newSession(debuggertest.NewAdapter(), &syncBuffer{},
		debugger.WithPortFinder(func(int) (int, error) {
			return 0, errors.PortUnavailable(5679, fmt.Errorf("no sockets"))
		}))

	_, err := s.Start(context.Background(), false)
	assert.True(t, errors.Is(err, errors.ErrCodePortUnavailable))
	assert.False(t, s.Started())
}

func TestBreakpointAndClose(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	s := newSession(adapter, &syncBuffer{})

	s.Breakpoint()
	assert.Zero(t, adapter.Breakpoints(), "no breakpoint before Start")

	_, err := s.Start(context.Background(), false)
	require.NoError(t, err)
	s.Breakpoint()
	assert.Equal(t, 1, adapter.Breakpoints())

	require.NoError(t, s.Close())
	assert.True(t, adapter.Closed())
}

func TestPlaceholderWhenIdentityUnknown(t *testing.T) {
	out := &syncBuffer{}
	s := newSession(debuggertest.NewAdapter(), out, debugger.WithIdentity(tunnel.Identity{}))

	_, err := s.Start(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ssh -N -L 5678:node42:6000 <user@login.hostname>")
}
