package lite

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/grovetools/rdebug/debugger"
	"github.com/grovetools/rdebug/debugger/debuggertest"
	"github.com/grovetools/rdebug/pkg/tunnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func newSession(adapter *debuggertest.Adapter, out *syncBuffer) *debugger.Session {
	return debugger.NewSession(adapter,
		debugger.WithOutput(out),
		debugger.WithHostname("node42"),
		debugger.WithRemotePath("/work"),
		debugger.WithIdentity(tunnel.Identity{}),
		debugger.WithPortFinder(func(int) (int, error) { return 6000, nil }),
	)
}

func TestArmPrintsAttachCommand(t *testing.T) {
	out := &syncBuffer{}
	adapter := debuggertest.NewAdapter()

	trigger, err := Arm(context.Background(), newSession(adapter, out),
		WithOutput(out),
		WithSource(make(chan os.Signal, 1)),
		WithGetenv(env(map[string]string{"SLURM_JOB_ID": "12345"})),
		WithPID(4242),
	)
	require.NoError(t, err)
	defer trigger.Stop()

	text := out.String()
	assert.Contains(t, text, "[DEBUGGER] Lite mode armed. Job ID: 12345  PID: 4242")
	assert.Contains(t, text, "rdebug attach 12345 4242")
	assert.Empty(t, adapter.Listens(), "arming does not listen")
}

func TestArmOutsideJob(t *testing.T) {
	out := &syncBuffer{}
	trigger, err := Arm(context.Background(), newSession(debuggertest.NewAdapter(), out),
		WithOutput(out),
		WithSource(make(chan os.Signal, 1)),
		WithGetenv(env(nil)),
		WithPID(4242),
		WithSignal(syscall.SIGUSR2),
	)
	require.NoError(t, err)
	defer trigger.Stop()

	assert.Contains(t, out.String(), "Job ID: <not in a job>")
	assert.Contains(t, out.String(), "kill -s USR2 4242")
}

func TestDoubleDeliveryBindsOnce(t *testing.T) {
	out := &syncBuffer{}
	adapter := debuggertest.NewAdapter()
	adapter.Attach()
	source := make(chan os.Signal, 2)

	trigger, err := Arm(context.Background(), newSession(adapter, out),
		WithOutput(out),
		WithSource(source),
		WithGetenv(env(nil)),
	)
	require.NoError(t, err)
	defer trigger.Stop()

	source <- syscall.SIGUSR1
	source <- syscall.SIGUSR1

	require.Eventually(t, func() bool { return trigger.Activations() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return adapter.Breakpoints() == 2 }, 2*time.Second, 5*time.Millisecond)

	assert.Len(t, adapter.Listens(), 1)
	assert.Equal(t, 1, strings.Count(out.String(), "Listening on"))
}

func TestOSSignalActivates(t *testing.T) {
	out := &syncBuffer{}
	adapter := debuggertest.NewAdapter()
	adapter.Attach()

	trigger, err := Arm(context.Background(), newSession(adapter, out),
		WithOutput(out),
		WithGetenv(env(nil)),
		WithSignal(syscall.SIGUSR1),
	)
	require.NoError(t, err)
	defer trigger.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool { return len(adapter.Listens()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return trigger.Activations() >= 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, adapter.Listens(), 1)
	assert.Equal(t, 1, strings.Count(out.String(), "Listening on"))
}

func TestActivationErrorsAreReported(t *testing.T) {
	adapter := debuggertest.NewAdapter()
	adapter.ListenErr = fmt.Errorf("boom")
	source := make(chan os.Signal, 1)
	errs := make(chan error, 1)

	trigger, err := Arm(context.Background(), newSession(adapter, &syncBuffer{}),
		WithOutput(&syncBuffer{}),
		WithSource(source),
		WithGetenv(env(nil)),
		WithErrorHandler(func(err error) { errs <- err }),
	)
	require.NoError(t, err)
	defer trigger.Stop()

	source <- syscall.SIGUSR1
	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("activation error not reported")
	}
}

func TestStopAndCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	trigger, err := Arm(ctx, newSession(debuggertest.NewAdapter(), &syncBuffer{}),
		WithOutput(&syncBuffer{}),
		WithSource(make(chan os.Signal, 1)),
		WithGetenv(env(nil)),
	)
	require.NoError(t, err)

	cancel()
	done := make(chan struct{})
	go func() {
		trigger.Stop()
		trigger.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Zero(t, trigger.Activations())
}

func TestAttachCommand(t *testing.T) {
	assert.Equal(t, "rdebug attach 12345 77", AttachCommand("rdebug", "12345", 77, "USR1"))
	assert.Equal(t, "rdebug attach 12345 77 --signal USR2", AttachCommand("rdebug", "12345", 77, "USR2"))
	assert.Equal(t, NotInJob, JobID(env(nil)))
}
