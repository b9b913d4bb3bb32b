// Package scheduler queries the cluster queue and delivers signals to
// processes inside running jobs.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"syscall"

	"github.com/grovetools/rdebug/pkg/process"
	"github.com/moby/patternmatcher"
)

// Job is one row of the user's queue.
type Job struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	State   string `json:"state" yaml:"state"`
	Elapsed string `json:"elapsed" yaml:"elapsed"`
	Node    string `json:"node" yaml:"node"`
}

// Running reports whether the job has an allocation to signal into.
func (j Job) Running() bool {
	return strings.EqualFold(j.State, "RUNNING")
}

// Handle addresses one process inside a job. Node is optional and narrows
// delivery to a single node of a multi-node allocation.
type Handle struct {
	JobID string
	PID   int
	Node  string
}

// JobQueryer lists jobs.
type JobQueryer interface {
	ListJobs(ctx context.Context, user string) ([]Job, error)
}

// JobSignaler delivers a signal to a process inside a job.
type JobSignaler interface {
	Signal(ctx context.Context, h Handle, sig syscall.Signal) error
}

// OutputLocator finds the file a job writes its stdout to.
type OutputLocator interface {
	JobOutputPath(ctx context.Context, jobID string) (string, error)
}

// ParseJobs parses "id|name|state|elapsed|node" lines. Blank lines and lines
// with fewer than five fields are skipped; fields are trimmed. Extra
// separators belong to the name.
func ParseJobs(output string) []Job {
	var jobs []Job
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 5 {
			continue
		}
		n := len(fields)
		// Job names may themselves contain "|".
		job := Job{
			ID:      strings.TrimSpace(fields[0]),
			Name:    strings.TrimSpace(strings.Join(fields[1:n-3], "|")),
			State:   strings.TrimSpace(fields[n-3]),
			Elapsed: strings.TrimSpace(fields[n-2]),
			Node:    strings.TrimSpace(fields[n-1]),
		}
		if job.ID == "" {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// FilterJobs keeps jobs whose name matches any of patterns. Patterns use
// glob syntax; a leading "!" excludes. No patterns keeps everything.
func FilterJobs(jobs []Job, patterns []string) ([]Job, error) {
	if len(patterns) == 0 {
		return jobs, nil
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid job name pattern: %w", err)
	}

	var out []Job
	for _, job := range jobs {
		ok, err := pm.MatchesOrParentMatches(job.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, job)
		}
	}
	return out, nil
}

// KillFragment is the shell snippet run inside the allocation.
func KillFragment(sig syscall.Signal, pid int) string {
	return fmt.Sprintf("kill -s %s %d", process.ShortName(sig), pid)
}
