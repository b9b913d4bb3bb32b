package postmortem

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/logging"
	"github.com/sirupsen/logrus"
)

// CoreLocation is where the kernel will write a core dump.
type CoreLocation struct {
	Dir    string
	Prefix string
	// ByPID is set when file names include the crashing pid.
	ByPID bool
	// Literal is set when the pattern has no % specifiers, so the kernel
	// writes exactly Prefix or Prefix.<pid>.
	Literal bool
}

// ReadCoreLocation derives the core dump location from procRoot
// (normally "/proc"). Relative patterns resolve against cwd, the crashing
// process's working directory.
func ReadCoreLocation(procRoot, cwd string) (CoreLocation, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, "sys", "kernel", "core_pattern"))
	if err != nil {
		return CoreLocation{}, errors.Wrap(err, errors.ErrCodeCoreNotFound, "cannot read core_pattern")
	}
	usesPID := false
	if b, err := os.ReadFile(filepath.Join(procRoot, "sys", "kernel", "core_uses_pid")); err == nil {
		usesPID = strings.TrimSpace(string(b)) == "1"
	}
	return ParseCorePattern(strings.TrimSpace(string(data)), cwd, usesPID)
}

// ParseCorePattern interprets a kernel core_pattern. Piped patterns hand
// the dump to a helper such as systemd-coredump and are not supported.
func ParseCorePattern(pattern, cwd string, usesPID bool) (CoreLocation, error) {
	if pattern == "" {
		pattern = "core"
	}
	if strings.HasPrefix(pattern, "|") {
		helper := "<none>"
		if fields := strings.Fields(strings.TrimPrefix(pattern, "|")); len(fields) > 0 {
			helper = fields[0]
		}
		return CoreLocation{}, errors.New(errors.ErrCodeUnsupportedTarget,
			"core dumps are piped to "+helper+"; set a file core_pattern for post-mortem debugging").
			WithDetail("core_pattern", pattern)
	}

	dir := filepath.Dir(pattern)
	if !filepath.IsAbs(pattern) {
		dir = filepath.Join(cwd, dir)
	}
	base := filepath.Base(pattern)

	prefix := base
	literal := true
	if i := strings.IndexByte(base, '%'); i >= 0 {
		prefix = base[:i]
		literal = false
	}

	byPID := strings.Contains(base, "%p") || strings.Contains(base, "%P")
	if literal && usesPID {
		byPID = true
	}

	return CoreLocation{Dir: dir, Prefix: prefix, ByPID: byPID, Literal: literal}, nil
}

// Matches reports whether name could be the core of pid.
func (l CoreLocation) Matches(name string, pid int) bool {
	if l.Literal {
		return name == l.Prefix || l.matchesPIDSuffix(name, pid)
	}
	if !strings.HasPrefix(name, l.Prefix) {
		return false
	}
	if l.ByPID && pid > 0 {
		return strings.Contains(strings.TrimPrefix(name, l.Prefix), strconv.Itoa(pid))
	}
	return true
}

func (l CoreLocation) matchesPIDSuffix(name string, pid int) bool {
	suffix, ok := strings.CutPrefix(name, l.Prefix+".")
	if !ok || suffix == "" {
		return false
	}
	if pid > 0 {
		return suffix == strconv.Itoa(pid)
	}
	_, err := strconv.Atoi(suffix)
	return err == nil
}

// CoreWatcher watches a core directory from before a child starts until
// after it crashed.
type CoreWatcher struct {
	loc     CoreLocation
	watcher *fsnotify.Watcher
	logger  *logrus.Entry

	mu      sync.Mutex
	touched map[string]time.Time
	changed chan struct{}
	done    chan struct{}
	err     error
}

// NewCoreWatcher starts watching loc.Dir.
func NewCoreWatcher(loc CoreLocation) (*CoreWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create core watcher")
	}
	if err := watcher.Add(loc.Dir); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, errors.ErrCodeCoreNotFound, "cannot watch core directory").
			WithDetail("dir", loc.Dir)
	}

	w := &CoreWatcher{
		loc:     loc,
		watcher: watcher,
		logger:  logging.NewLogger("postmortem"),
		touched: make(map[string]time.Time),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

func (w *CoreWatcher) watch() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.mu.Lock()
			w.touched[event.Name] = time.Now()
			w.mu.Unlock()
			select {
			case w.changed <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Core watcher error")
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
		}
	}
}

// Wait returns the core file of pid once it has been quiet for settle. It
// gives up when ctx ends.
func (w *CoreWatcher) Wait(ctx context.Context, pid int, settle time.Duration) (string, error) {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	for {
		if path, ok := w.settled(pid, settle); ok {
			return path, nil
		}
		select {
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), errors.ErrCodeCoreNotFound, "no core dump appeared").
				WithDetail("dir", w.loc.Dir)
		case <-w.done:
			return "", errors.New(errors.ErrCodeCoreNotFound, "core watcher closed")
		case <-w.changed:
		case <-ticker.C:
		}
	}
}

// settled returns the newest matching file with no writes for settle.
func (w *CoreWatcher) settled(pid int, settle time.Duration) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var best string
	var bestAt time.Time
	for path, at := range w.touched {
		if !w.loc.Matches(filepath.Base(path), pid) {
			continue
		}
		if at.After(bestAt) {
			best, bestAt = path, at
		}
	}
	if best == "" || time.Since(bestAt) < settle {
		return "", false
	}
	return best, true
}

// Close stops watching.
func (w *CoreWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
