package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/grovetools/rdebug/cli"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/logging"
	"github.com/grovetools/rdebug/pkg/profiling"
	"github.com/grovetools/rdebug/pkg/process"
	"github.com/grovetools/rdebug/scheduler"
	"github.com/grovetools/rdebug/tui"
	"github.com/grovetools/rdebug/tui/keymap"
	"github.com/grovetools/rdebug/tui/picker"
	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Scheduler is everything attach needs from the cluster.
type Scheduler interface {
	scheduler.JobQueryer
	scheduler.JobSignaler
	scheduler.OutputLocator
}

// attacher resolves a job and PID, then asks the armed program to start its
// debugger.
type attacher struct {
	sched       Scheduler
	out         io.Writer
	logger      *logrus.Entry
	interactive bool
	user        string
	names       []string
	node        string
	signal      syscall.Signal
	follow      bool

	pickJob   func([]scheduler.Job) (scheduler.Job, error)
	promptPID func(jobID string) (int, error)
}

func NewAttachCmd() *cobra.Command {
	var (
		names  []string
		node   string
		sig    string
		user   string
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "attach [job-id] [pid]",
		Short: "Activate the debugger of a lite-mode program in a running job",
		Long: `Send the activation signal to a program started with 'rdebug debug --lite'.

The signal is delivered with srun inside the job's allocation. When the job
ID or PID is omitted and rdebug runs in a terminal, you are asked to pick a
running job and enter the PID printed by the program.

Examples:
  # Pick a job interactively
  rdebug attach

  # Activate PID 4242 in job 1234 and wait for the ssh command
  rdebug attach 1234 4242 --follow

  # Only consider jobs whose name matches
  rdebug attach --name 'train-*'`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if sig == "" {
				sig = cfg.Debug.Signal
			}
			signum, err := process.ParseSignal(sig)
			if err != nil {
				return errors.InvalidInput(err.Error())
			}
			if user == "" {
				user = os.Getenv("USER")
			}

			keys := keymap.Load(cfg)
			a := &attacher{
				sched:       scheduler.NewSlurm(cfg.Scheduler, scheduler.WithTimeout(cfg.SchedulerTimeout())),
				out:         cmd.OutOrStdout(),
				logger:      cli.GetLogger(cmd, "attach"),
				interactive: tui.Interactive(),
				user:        user,
				names:       names,
				node:        node,
				signal:      signum,
				follow:      follow,
				pickJob: func(jobs []scheduler.Job) (scheduler.Job, error) {
					tui.InitializeTUI()
					return picker.PickJob(jobs, keys)
				},
				promptPID: func(jobID string) (int, error) {
					tui.InitializeTUI()
					return picker.PromptPID(jobID)
				},
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, args)
		},
	}

	cmd.Flags().StringSliceVar(&names, "name", nil, "Only consider jobs whose name matches this glob (repeatable)")
	cmd.Flags().StringVar(&node, "node", "", "Deliver the signal on this node of a multi-node job")
	cmd.Flags().StringVar(&sig, "signal", "", "Signal to send (default: debug.signal)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "List jobs of this user (default: $USER)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the job output until the ssh command appears")

	return cmd
}

func (a *attacher) run(ctx context.Context, args []string) error {
	var jobID string
	var pid int

	if len(args) > 0 {
		jobID = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return errors.InvalidInput(fmt.Sprintf("PID must be a positive number, got %q", args[1]))
		}
		pid = n
	}

	if jobID == "" {
		job, err := a.chooseJob(ctx)
		if err != nil {
			return err
		}
		jobID = job.ID
	}

	if pid == 0 {
		if !a.interactive {
			return errors.InvalidInput("a PID is required when rdebug is not attached to a terminal")
		}
		n, err := a.promptPID(jobID)
		if err != nil {
			return err
		}
		pid = n
	}

	var outputPath string
	var offset int64
	if a.follow {
		path, err := a.sched.JobOutputPath(ctx, jobID)
		if err != nil {
			return err
		}
		outputPath = path
		if info, err := os.Stat(path); err == nil {
			offset = info.Size()
		}
	}

	h := scheduler.Handle{JobID: jobID, PID: pid, Node: a.node}
	span := profiling.Start("signal")
	err := a.sched.Signal(ctx, h, a.signal)
	span.Stop()
	if err != nil {
		return err
	}
	pretty := logging.NewPrettyLogger().WithWriter(a.out)
	pretty.Success(fmt.Sprintf("Sent %s to PID %d in job %s.", process.ShortName(a.signal), pid, jobID))

	if !a.follow {
		pretty.InfoPretty("The job output will show the ssh command to connect.")
		return nil
	}

	pretty.InfoPretty(fmt.Sprintf("Waiting for the debugger in %s...", outputPath))
	defer profiling.Start("follow").Stop()
	return followOutput(ctx, outputPath, offset, a.out)
}

// chooseJob lists the user's running jobs and narrows them to one.
func (a *attacher) chooseJob(ctx context.Context) (scheduler.Job, error) {
	span := profiling.Start("list jobs")
	jobs, err := a.sched.ListJobs(ctx, a.user)
	span.Stop()
	if err != nil {
		return scheduler.Job{}, err
	}

	var running []scheduler.Job
	for _, j := range jobs {
		if j.Running() {
			running = append(running, j)
		}
	}
	if len(a.names) > 0 {
		running, err = scheduler.FilterJobs(running, a.names)
		if err != nil {
			return scheduler.Job{}, errors.InvalidInput(err.Error())
		}
	}

	a.logger.WithFields(logrus.Fields{
		"user":    a.user,
		"total":   len(jobs),
		"running": len(running),
	}).Debug("Listed jobs")

	switch {
	case len(running) == 0:
		return scheduler.Job{}, errors.InvalidInput("no running jobs found")
	case a.interactive:
		return a.pickJob(running)
	case len(running) == 1:
		logging.NewPrettyLogger().WithWriter(a.out).
			InfoPretty(fmt.Sprintf("Using job %s (%s) on %s.", running[0].ID, running[0].Name, running[0].Node))
		return running[0], nil
	default:
		return scheduler.Job{}, errors.InvalidInput(
			fmt.Sprintf("%d running jobs match; pass a job ID", len(running)))
	}
}

// followOutput relays debugger lines written to path after offset and
// returns once the ssh command has been printed.
func followOutput(ctx context.Context, path string, offset int64, out io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		// Job output usually lives on a shared filesystem without inotify.
		Poll:   true,
		Logger: stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to follow "+path)
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			text := strings.TrimSpace(line.Text)
			switch {
			case strings.HasPrefix(text, "[DEBUGGER]"):
				fmt.Fprintln(out, text)
			case strings.HasPrefix(text, "ssh -N -L"):
				pretty := logging.NewPrettyLogger().WithWriter(out)
				pretty.InfoPretty("Run this on your local machine:")
				pretty.Code(text)
				return nil
			}
		}
	}
}
