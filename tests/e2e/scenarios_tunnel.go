package main

import (
	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/harness"
)

// TunnelScenario checks the ssh command printed with and without a Slurm
// job identity in the environment.
func TunnelScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "rdebug-tunnel",
		Description: "Prints the port-forward command, falling back to a placeholder login target.",
		Tags:        []string{"rdebug", "tunnel"},
		Steps: []harness.Step{
			harness.NewStep("Tunnel without a job identity", func(ctx *harness.Context) error {
				argv, err := rdebugArgs(ctx.NewDir("tunnel-home"), nil, "tunnel", "node42", "6000")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "rdebug tunnel should exit successfully"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "ssh -N -L 5678:node42:6000 <user@login.hostname>",
					"missing SLURM_SUBMIT_HOST should print the placeholder target")
			}),
			harness.NewStep("Tunnel inside a job", func(ctx *harness.Context) error {
				env := []string{"SLURM_JOB_USER=alice", "SLURM_SUBMIT_HOST=login1"}
				argv, err := rdebugArgs(ctx.NewDir("tunnel-job-home"), env, "tunnel", "node42", "6000", "--local-port", "7000")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "rdebug tunnel should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "ssh -N -L 7000:node42:6000 alice@login1",
					"the job identity should replace the placeholder"); err != nil {
					return err
				}
				return assert.NotContains(result.Stdout, "<user@login.hostname>", "placeholder should not be printed")
			}),
			harness.NewStep("Tunnel rejects a bad port", func(ctx *harness.Context) error {
				argv, err := rdebugArgs(ctx.NewDir("tunnel-bad-home"), nil, "tunnel", "node42", "http")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(1, result.ExitCode, "a non-numeric port should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, `invalid remote port "http"`, "the bad port should be reported")
			}),
		},
	}
}
