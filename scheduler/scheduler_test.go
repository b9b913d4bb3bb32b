package scheduler

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/grovetools/rdebug/command/commandtest"
	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobs(t *testing.T) {
	out := "12345|train|RUNNING|1:02:03|node042\n" +
		"\n" +
		"garbage line\n" +
		" 12346 | eval | PENDING | 0:00 | (Resources) \n" +
		"too|few|fields\n" +
		"|noid|RUNNING|0:01|node1\n"

	jobs := ParseJobs(out)
	require.Len(t, jobs, 2)
	assert.Equal(t, Job{ID: "12345", Name: "train", State: "RUNNING", Elapsed: "1:02:03", Node: "node042"}, jobs[0])
	assert.Equal(t, Job{ID: "12346", Name: "eval", State: "PENDING", Elapsed: "0:00", Node: "(Resources)"}, jobs[1])
	assert.True(t, jobs[0].Running())
	assert.False(t, jobs[1].Running())
}

func TestParseJobsNameWithSeparator(t *testing.T) {
	jobs := ParseJobs("777|sweep|lr=0.1|RUNNING|5:00|node7\n778|a||b|PENDING|0:00|(Priority)\n")
	require.Len(t, jobs, 2)
	assert.Equal(t, Job{ID: "777", Name: "sweep|lr=0.1", State: "RUNNING", Elapsed: "5:00", Node: "node7"}, jobs[0])
	assert.Equal(t, "a||b", jobs[1].Name)
	assert.Equal(t, "PENDING", jobs[1].State)
}

func TestFilterJobs(t *testing.T) {
	jobs := []Job{{ID: "1", Name: "train-a"}, {ID: "2", Name: "train-b"}, {ID: "3", Name: "eval"}}

	got, err := FilterJobs(jobs, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = FilterJobs(jobs, []string{"train-*"})
	require.NoError(t, err)
	assert.Equal(t, []Job{jobs[0], jobs[1]}, got)

	got, err = FilterJobs(jobs, []string{"train-*", "!train-b"})
	require.NoError(t, err)
	assert.Equal(t, []Job{jobs[0]}, got)

	_, err = FilterJobs(jobs, []string{"[unclosed"})
	assert.Error(t, err)
}

func TestKillFragment(t *testing.T) {
	assert.Equal(t, "kill -s USR1 4242", KillFragment(syscall.SIGUSR1, 4242))
}

func newSlurm(exec *commandtest.Executor, timeout time.Duration) *Slurm {
	return NewSlurm(config.SchedulerConfig{}, WithExecutor(exec), WithTimeout(timeout))
}

func TestSlurmListJobs(t *testing.T) {
	exec := commandtest.NewExecutor().On("squeue", commandtest.Response{
		Stdout: "12345|train|RUNNING|10:00|node042\n",
	})

	jobs, err := newSlurm(exec, time.Second).ListJobs(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "node042", jobs[0].Node)

	inv := exec.Invocations()
	require.Len(t, inv, 1)
	assert.Equal(t, []string{"-u", "alice", "-h", "-o", "%i|%j|%T|%M|%N"}, inv[0].Args)
}

func TestSlurmSignal(t *testing.T) {
	exec := commandtest.NewExecutor().On("srun", commandtest.Response{})
	s := newSlurm(exec, time.Second)

	require.NoError(t, s.Signal(context.Background(), Handle{JobID: "12345", PID: 4242}, syscall.SIGUSR1))
	require.NoError(t, s.Signal(context.Background(), Handle{JobID: "12345", PID: 4242, Node: "node042"}, syscall.SIGUSR2))

	inv := exec.Invocations()
	require.Len(t, inv, 2)
	assert.Equal(t, []string{"--jobid=12345", "--overlap", "--ntasks=1", "--nodes=1", "sh", "-c", "kill -s USR1 4242"}, inv[0].Args)
	assert.Equal(t, []string{"--jobid=12345", "--overlap", "--ntasks=1", "--nodelist=node042", "sh", "-c", "kill -s USR2 4242"}, inv[1].Args)
}

func TestSlurmSignalValidation(t *testing.T) {
	exec := commandtest.NewExecutor().On("srun", commandtest.Response{})
	s := newSlurm(exec, time.Second)
	ctx := context.Background()

	err := s.Signal(ctx, Handle{JobID: "12345; rm -rf /", PID: 1}, syscall.SIGUSR1)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	err = s.Signal(ctx, Handle{JobID: "12345", PID: 0}, syscall.SIGUSR1)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	err = s.Signal(ctx, Handle{JobID: "12345", PID: 1, Node: "node$(id)"}, syscall.SIGUSR1)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	assert.Empty(t, exec.Invocations())
}

func TestSlurmFailureModes(t *testing.T) {
	ctx := context.Background()
	handle := Handle{JobID: "12345", PID: 4242}

	t.Run("missing srun", func(t *testing.T) {
		exec := commandtest.NewExecutor().On("srun", commandtest.Response{Missing: true})
		err := newSlurm(exec, time.Second).Signal(ctx, handle, syscall.SIGUSR1)
		assert.True(t, errors.Is(err, errors.ErrCodeCommandNotFound))
	})

	t.Run("timeout", func(t *testing.T) {
		exec := commandtest.NewExecutor().On("srun", commandtest.Response{Delay: 5 * time.Second})
		err := newSlurm(exec, 50*time.Millisecond).Signal(ctx, handle, syscall.SIGUSR1)
		assert.True(t, errors.Is(err, errors.ErrCodeCommandTimeout))
	})

	t.Run("non-zero exit relays stderr", func(t *testing.T) {
		exec := commandtest.NewExecutor().On("srun", commandtest.Response{
			Stderr:   "srun: error: Invalid job id specified",
			ExitCode: 1,
		})
		err := newSlurm(exec, time.Second).Signal(ctx, handle, syscall.SIGUSR1)
		require.True(t, errors.Is(err, errors.ErrCodeCommandFailed))

		rdErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, "srun: error: Invalid job id specified", rdErr.Detail("stderr"))
	})
}

func TestSlurmJobOutputPath(t *testing.T) {
	exec := commandtest.NewExecutor().On("scontrol", commandtest.Response{
		Stdout: "JobId=12345 JobName=train UserId=alice(1000) StdErr=/home/alice/slurm-12345.err StdOut=/home/alice/slurm-12345.out Power=\n",
	})

	path, err := newSlurm(exec, time.Second).JobOutputPath(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/slurm-12345.out", path)
	assert.Equal(t, []string{"show", "job", "-o", "12345"}, exec.Invocations()[0].Args)
}

func TestSlurmConfigPaths(t *testing.T) {
	exec := commandtest.NewExecutor().On("/opt/slurm/bin/squeue", commandtest.Response{})
	s := NewSlurm(config.SchedulerConfig{Squeue: "/opt/slurm/bin/squeue", Timeout: "5s"}, WithExecutor(exec))

	_, err := s.ListJobs(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "/opt/slurm/bin/squeue", exec.Invocations()[0].Name)
	assert.Equal(t, 5*time.Second, s.timeout)
}

func TestFake(t *testing.T) {
	f := &Fake{Jobs: []Job{{ID: "1"}}, Outputs: map[string]string{"1": "/tmp/out"}}
	ctx := context.Background()

	jobs, err := f.ListJobs(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, []string{"alice"}, f.Users())

	require.NoError(t, f.Signal(ctx, Handle{JobID: "1", PID: 2}, syscall.SIGUSR1))
	assert.Equal(t, []Delivery{{Handle: Handle{JobID: "1", PID: 2}, Signal: syscall.SIGUSR1}}, f.Deliveries())

	path, err := f.JobOutputPath(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", path)
}

var (
	_ JobQueryer    = (*Slurm)(nil)
	_ JobSignaler   = (*Slurm)(nil)
	_ OutputLocator = (*Slurm)(nil)
	_ JobQueryer    = (*Fake)(nil)
	_ JobSignaler   = (*Fake)(nil)
	_ OutputLocator = (*Fake)(nil)
)
