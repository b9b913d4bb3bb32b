package scheduler

import (
	"context"
	"sync"
	"syscall"

	"github.com/grovetools/rdebug/errors"
)

// Delivery records one Fake.Signal call.
type Delivery struct {
	Handle Handle
	Signal syscall.Signal
}

// Fake is an in-memory scheduler for tests.
type Fake struct {
	Jobs    []Job
	Outputs map[string]string

	// ListErr and SignalErr are returned by the corresponding calls when set.
	ListErr   error
	SignalErr error

	mu         sync.Mutex
	deliveries []Delivery
	users      []string
}

func (f *Fake) ListJobs(_ context.Context, user string) ([]Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, user)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]Job(nil), f.Jobs...), nil
}

func (f *Fake) Signal(_ context.Context, h Handle, sig syscall.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignalErr != nil {
		return f.SignalErr
	}
	f.deliveries = append(f.deliveries, Delivery{Handle: h, Signal: sig})
	return nil
}

func (f *Fake) JobOutputPath(_ context.Context, jobID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path, ok := f.Outputs[jobID]; ok {
		return path, nil
	}
	return "", errors.New(errors.ErrCodeCommandFailed, "job "+jobID+" has no StdOut path")
}

// Deliveries returns the signals sent so far.
func (f *Fake) Deliveries() []Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Delivery(nil), f.deliveries...)
}

// Users returns the users ListJobs was called for.
func (f *Fake) Users() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}
