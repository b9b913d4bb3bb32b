package main

import (
	"fmt"
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// AttachScenario signals a process through fake Slurm commands on PATH.
func AttachScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "rdebug-attach",
		Description: "Sends USR1 with srun and picks the only running job from squeue.",
		Tags:        []string{"rdebug", "attach", "slurm"},
		Steps: []harness.Step{
			harness.NewStep("Install fake squeue and srun", func(ctx *harness.Context) error {
				binDir := ctx.NewDir("fake-slurm")
				ctx.Set("fake_bin", binDir)
				ctx.Set("rdebug_home", ctx.NewDir("attach-home"))
				return writeFakeSlurm(binDir, 0)
			}),
			harness.NewStep("Attach with explicit job and PID", func(ctx *harness.Context) error {
				binDir := ctx.GetString("fake_bin")
				argv, err := rdebugArgs(ctx.GetString("rdebug_home"), []string{pathWith(binDir)}, "attach", "12345", "4242")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "rdebug attach should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "Sent USR1 to PID 4242 in job 12345.", "attach should confirm the signal"); err != nil {
					return err
				}

				calls, err := fs.ReadString(filepath.Join(binDir, "srun.log"))
				if err != nil {
					return fmt.Errorf("srun was not called: %w", err)
				}
				if err := assert.Contains(calls, "--jobid=12345", "srun should target the job"); err != nil {
					return err
				}
				return assert.Contains(calls, "kill -s USR1 4242", "srun should run kill inside the job")
			}),
			harness.NewStep("Attach without a job picks the only running one", func(ctx *harness.Context) error {
				argv, err := rdebugArgs(ctx.GetString("rdebug_home"), []string{pathWith(ctx.GetString("fake_bin"))}, "attach")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Contains(result.Stdout, "Using job 12345 (train) on node042.", "the single job should be chosen"); err != nil {
					return err
				}
				if err := assert.Equal(1, result.ExitCode, "no terminal means no PID prompt"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "a PID is required", "the missing PID should be reported")
			}),
		},
	}
}

// AttachSrunFailureScenario checks that a failing srun fails rdebug and its
// stderr reaches the user unchanged.
func AttachSrunFailureScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "rdebug-attach-srun-failure",
		Description: "Exits 1 and relays srun's stderr verbatim when the signal cannot be sent.",
		Tags:        []string{"rdebug", "attach", "slurm"},
		Steps: []harness.Step{
			harness.NewStep("Attach with a failing srun", func(ctx *harness.Context) error {
				binDir := ctx.NewDir("failing-slurm")
				if err := writeFakeSlurm(binDir, 1); err != nil {
					return err
				}

				argv, err := rdebugArgs(ctx.NewDir("srun-fail-home"), []string{pathWith(binDir)}, "attach", "99999", "4242")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(1, result.ExitCode, "a failed srun should exit 1"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stderr, "\nsrun: error: Invalid job id specified\n", "srun's stderr should be relayed on its own line"); err != nil {
					return err
				}
				return assert.NotContains(result.Stdout, "Sent USR1", "no success message after a failure")
			}),
		},
	}
}
