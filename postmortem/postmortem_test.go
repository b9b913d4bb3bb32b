package postmortem

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/rdebug/debugger"
	"github.com/grovetools/rdebug/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu          sync.Mutex
	starts      []bool
	breakpoints int
	startErr    error
}

func (f *fakeSession) Start(_ context.Context, wait bool) (debugger.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, wait)
	return debugger.Descriptor{Hostname: "node42", Port: 6000}, f.startErr
}

func (f *fakeSession) Breakpoint() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breakpoints++
}

func TestGuardPassesThrough(t *testing.T) {
	session := &fakeSession{}
	exited := -1
	g := NewGuard(session, WithOutput(&bytes.Buffer{}), WithExit(func(code int) { exited = code }))

	assert.NoError(t, g.Run(context.Background(), func() error { return nil }))

	sentinel := fmt.Errorf("ordinary failure")
	assert.Equal(t, sentinel, g.Run(context.Background(), func() error { return sentinel }))

	assert.Empty(t, session.starts)
	assert.Equal(t, -1, exited)
}

func TestGuardPanic(t *testing.T) {
	session := &fakeSession{}
	var out bytes.Buffer
	exited := -1

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // idle returns immediately

	g := NewGuard(session,
		WithOutput(&out),
		WithIdle(time.Millisecond, 0),
		WithExit(func(code int) { exited = code }),
	)

	err := g.Run(ctx, func() error { panic("index out of range") })

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "index out of range", perr.Value)
	assert.Contains(t, string(perr.Stack), "postmortem")

	assert.Equal(t, []bool{false}, session.starts, "started without waiting")
	assert.Equal(t, 1, session.breakpoints)
	assert.Equal(t, ExitCode, exited)
	assert.Contains(t, out.String(), "panic: index out of range")
	assert.Contains(t, out.String(), "goroutine")
}

func TestGuardStartFailure(t *testing.T) {
	session := &fakeSession{startErr: fmt.Errorf("no port")}
	exited := -1
	g := NewGuard(session, WithOutput(&bytes.Buffer{}), WithExit(func(code int) { exited = code }))

	err := g.Run(context.Background(), func() error { panic("boom") })
	assert.Error(t, err)
	assert.Zero(t, session.breakpoints)
	assert.Equal(t, ExitCode, exited)
}

func TestIdle(t *testing.T) {
	t.Run("max idle elapses", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Idle(context.Background(), 5*time.Millisecond, 30*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("context cancel", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, Idle(ctx, time.Hour, 0), context.DeadlineExceeded)
	})
}

func TestParseCorePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		usesPID bool
		want    CoreLocation
	}{
		{"default", "core", false, CoreLocation{Dir: "/work", Prefix: "core", Literal: true}},
		{"core_uses_pid", "core", true, CoreLocation{Dir: "/work", Prefix: "core", ByPID: true, Literal: true}},
		{"absolute with pid", "/var/crash/core.%e.%p", false, CoreLocation{Dir: "/var/crash", Prefix: "core.", ByPID: true}},
		{"relative dir", "cores/core-%e", false, CoreLocation{Dir: "/work/cores", Prefix: "core-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCorePattern(tt.pattern, "/work", tt.usesPID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCorePattern("|/usr/lib/systemd/systemd-coredump %P %u", "/work", false)
	assert.True(t, errors.Is(err, errors.ErrCodeUnsupportedTarget))
	assert.Contains(t, err.Error(), "systemd-coredump")

	for _, pattern := range []string{"|", "| "} {
		_, err := ParseCorePattern(pattern, "/work", false)
		require.Error(t, err, pattern)
		assert.True(t, errors.Is(err, errors.ErrCodeUnsupportedTarget), pattern)
		assert.Contains(t, err.Error(), "<none>", pattern)
	}
}

func TestReadCoreLocation(t *testing.T) {
	root := t.TempDir()
	kernel := filepath.Join(root, "sys", "kernel")
	require.NoError(t, os.MkdirAll(kernel, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(kernel, "core_pattern"), []byte("core\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(kernel, "core_uses_pid"), []byte("1\n"), 0o644))

	loc, err := ReadCoreLocation(root, "/work")
	require.NoError(t, err)
	assert.Equal(t, CoreLocation{Dir: "/work", Prefix: "core", ByPID: true, Literal: true}, loc)
}

func TestCoreLocationMatches(t *testing.T) {
	loc := CoreLocation{Prefix: "core.", ByPID: true}
	assert.True(t, loc.Matches("core.solver.4242", 4242))
	assert.False(t, loc.Matches("core.solver.4243", 4242))
	assert.False(t, loc.Matches("notes.txt", 4242))

	loose := CoreLocation{Prefix: "core"}
	assert.True(t, loose.Matches("core", 4242))

	literal, err := ParseCorePattern("core", "/work", false)
	require.NoError(t, err)
	assert.True(t, literal.Matches("core", 4242))
	assert.True(t, literal.Matches("core.4242", 4242))
	assert.True(t, literal.Matches("core.4242", 0))
	assert.False(t, literal.Matches("core.4243", 4242))
	assert.False(t, literal.Matches("core_metrics.csv", 4242))
	assert.False(t, literal.Matches("core_metrics.csv", 0))
	assert.False(t, literal.Matches("core.", 0))
}

func TestCoreWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCoreWatcher(CoreLocation{Dir: dir, Prefix: "core.", ByPID: true})
	require.NoError(t, err)
	defer w.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "unrelated.log"), []byte("x"), 0o644)
		_ = os.WriteFile(filepath.Join(dir, "core.solver.4242"), []byte("ELF"), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path, err := w.Wait(ctx, 4242, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "core.solver.4242"), path)
}

func TestCoreWatcherTimeout(t *testing.T) {
	w, err := NewCoreWatcher(CoreLocation{Dir: t.TempDir(), Prefix: "core"})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = w.Wait(ctx, 1, 10*time.Millisecond)
	assert.True(t, errors.Is(err, errors.ErrCodeCoreNotFound))
}
