// Package debuggertest provides an in-memory debugger.Adapter for tests.
package debuggertest

import (
	"context"
	"sync"
)

// Adapter records calls instead of serving a debug protocol. WaitForClient
// blocks until Attach is called or the context ends.
type Adapter struct {
	// ListenErr, when set, is returned by every Listen call.
	ListenErr error

	mu          sync.Mutex
	listens     []string
	breakpoints int
	attached    chan struct{}
	attachOnce  sync.Once
	closed      bool
	done        chan struct{}
	exitOnce    sync.Once
	exitErr     error
}

// NewAdapter returns an adapter with no client attached.
func NewAdapter() *Adapter {
	return &Adapter{attached: make(chan struct{}), done: make(chan struct{})}
}

func (a *Adapter) Listen(_ context.Context, addr string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ListenErr != nil {
		return a.ListenErr
	}
	a.listens = append(a.listens, addr)
	return nil
}

func (a *Adapter) WaitForClient(ctx context.Context) error {
	select {
	case <-a.attached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) Breakpoint() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.breakpoints++
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.Exit(nil)
	return nil
}

// Done is closed once Exit or Close is called.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// Err returns the error passed to Exit.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitErr
}

// Exit simulates the debug server process ending with err.
func (a *Adapter) Exit(err error) {
	a.exitOnce.Do(func() {
		a.mu.Lock()
		a.exitErr = err
		a.mu.Unlock()
		close(a.done)
	})
}

// Attach simulates a client connecting.
func (a *Adapter) Attach() {
	a.attachOnce.Do(func() { close(a.attached) })
}

// Listens returns every address Listen succeeded on.
func (a *Adapter) Listens() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.listens...)
}

// Breakpoints counts Breakpoint calls.
func (a *Adapter) Breakpoints() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.breakpoints
}

// Closed reports whether Close was called.
func (a *Adapter) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
