// Package profiling times the phases of an rdebug command (scheduler
// round-trips, debugger startup) and writes optional pprof profiles.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stopper ends a timed phase.
type Stopper interface {
	Stop()
}

type phase struct {
	name     string
	start    time.Time
	duration time.Duration
	done     bool
}

// Timer records named phases. The zero value is disabled.
type Timer struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	phases  []*phase
	now     func() time.Time
}

var defaultTimer = &Timer{}

// NewTimer returns an enabled timer.
func NewTimer() *Timer {
	t := &Timer{}
	t.Enable()
	return t
}

// Enable turns on the process-wide timer.
func Enable() {
	defaultTimer.Enable()
}

// Start begins a phase on the process-wide timer.
func Start(name string) Stopper {
	return defaultTimer.Start(name)
}

// Summarize writes the process-wide timer's phases to w.
func Summarize(w io.Writer) {
	defaultTimer.Summarize(w)
}

// Enable starts recording.
func (t *Timer) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		return
	}
	if t.now == nil {
		t.now = time.Now
	}
	t.enabled = true
	t.started = t.now()
}

// Start begins a phase. Stop it, typically with defer.
func (t *Timer) Start(name string) Stopper {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return noopStopper{}
	}
	p := &phase{name: name, start: t.now()}
	t.phases = append(t.phases, p)
	return &stopper{timer: t, phase: p}
}

// Summarize writes every phase in start order with its share of the total.
// Phases still running are reported up to now.
func (t *Timer) Summarize(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || len(t.phases) == 0 {
		return
	}

	now := t.now()
	total := now.Sub(t.started)
	phases := append([]*phase(nil), t.phases...)
	sort.SliceStable(phases, func(i, j int) bool { return phases[i].start.Before(phases[j].start) })

	fmt.Fprintln(w, "\n--- Timing ---")
	for _, p := range phases {
		d := p.duration
		suffix := ""
		if !p.done {
			d = now.Sub(p.start)
			suffix = " (running)"
		}
		share := 0.0
		if total > 0 {
			share = float64(d) / float64(total) * 100
		}
		fmt.Fprintf(w, "- %s: %v, %.1f%%%s\n", p.name, d.Round(100*time.Microsecond), share, suffix)
	}
	fmt.Fprintf(w, "total: %v\n", total.Round(100*time.Microsecond))
}

type stopper struct {
	timer *Timer
	phase *phase
	once  sync.Once
}

func (s *stopper) Stop() {
	s.once.Do(func() {
		s.timer.mu.Lock()
		defer s.timer.mu.Unlock()
		s.phase.duration = s.timer.now().Sub(s.phase.start)
		s.phase.done = true
	})
}

type noopStopper struct{}

func (noopStopper) Stop() {}
