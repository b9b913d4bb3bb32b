package scheduler

import (
	"context"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/grovetools/rdebug/command"
	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/logging"
	"github.com/sirupsen/logrus"
)

// squeueFormat matches ParseJobs.
const squeueFormat = "%i|%j|%T|%M|%N"

// Slurm implements the scheduler interfaces with squeue, srun and scontrol.
type Slurm struct {
	builder  *command.SafeBuilder
	executor command.Executor
	timeout  time.Duration
	squeue   string
	srun     string
	scontrol string
	logger   *logrus.Entry
}

// SlurmOption configures Slurm.
type SlurmOption func(*Slurm)

// WithExecutor runs commands through e.
func WithExecutor(e command.Executor) SlurmOption {
	return func(s *Slurm) { s.executor = e }
}

// WithTimeout bounds every scheduler command.
func WithTimeout(d time.Duration) SlurmOption {
	return func(s *Slurm) { s.timeout = d }
}

// NewSlurm creates a Slurm client from the scheduler config section.
func NewSlurm(cfg config.SchedulerConfig, opts ...SlurmOption) *Slurm {
	s := &Slurm{
		executor: &command.RealExecutor{},
		timeout:  command.DefaultTimeout,
		squeue:   orDefault(cfg.Squeue, "squeue"),
		srun:     orDefault(cfg.Srun, "srun"),
		scontrol: orDefault(cfg.Scontrol, "scontrol"),
		logger:   logging.NewLogger("scheduler"),
	}
	if d, err := time.ParseDuration(cfg.Timeout); err == nil {
		s.timeout = d
	}
	for _, opt := range opts {
		opt(s)
	}
	s.builder = command.NewSafeBuilderWithExecutor(s.executor)
	s.builder.SetDefaultTimeout(s.timeout)
	return s
}

// ListJobs returns the jobs of user.
func (s *Slurm) ListJobs(ctx context.Context, user string) ([]Job, error) {
	args := []string{"-h", "-o", squeueFormat}
	if user != "" {
		args = append([]string{"-u", user}, args...)
	}
	cmd, err := s.builder.Build(ctx, s.squeue, args...)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("command", cmd.String()).Debug("Listing jobs")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return ParseJobs(out), nil
}

// Signal runs "kill -s SIG PID" inside the job's allocation with srun.
// --overlap lets the step share resources with the running job.
func (s *Slurm) Signal(ctx context.Context, h Handle, sig syscall.Signal) error {
	if err := s.builder.Validate("jobID", h.JobID); err != nil {
		return errors.InvalidInput(err.Error())
	}
	if err := s.builder.Validate("pid", strconv.Itoa(h.PID)); err != nil {
		return errors.InvalidInput(err.Error())
	}

	args := []string{"--jobid=" + h.JobID, "--overlap", "--ntasks=1"}
	if h.Node != "" {
		if err := s.builder.Validate("nodeName", h.Node); err != nil {
			return errors.InvalidInput(err.Error())
		}
		args = append(args, "--nodelist="+h.Node)
	} else {
		args = append(args, "--nodes=1")
	}
	args = append(args, "sh", "-c", KillFragment(sig, h.PID))

	cmd, err := s.builder.Build(ctx, s.srun, args...)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id": h.JobID,
		"pid":    h.PID,
		"node":   h.Node,
	}).Debug("Signalling process")
	_, err = cmd.Output()
	return err
}

// JobOutputPath reads StdOut from "scontrol show job -o".
func (s *Slurm) JobOutputPath(ctx context.Context, jobID string) (string, error) {
	if err := s.builder.Validate("jobID", jobID); err != nil {
		return "", errors.InvalidInput(err.Error())
	}
	cmd, err := s.builder.Build(ctx, s.scontrol, "show", "job", "-o", jobID)
	if err != nil {
		return "", err
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}

	path := ParseStdOut(out)
	if path == "" {
		return "", errors.New(errors.ErrCodeCommandFailed, "job "+jobID+" has no StdOut path").
			WithDetail("job_id", jobID)
	}
	return path, nil
}

// ParseStdOut extracts the StdOut= value from scontrol's one-line output.
func ParseStdOut(out string) string {
	for _, field := range strings.Fields(out) {
		if v, ok := strings.CutPrefix(field, "StdOut="); ok {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
