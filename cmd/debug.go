package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/rdebug/cli"
	"github.com/grovetools/rdebug/pkg/profiling"
	"github.com/grovetools/rdebug/runner"
	"github.com/spf13/cobra"
)

func NewDebugCmd() *cobra.Command {
	var liteMode, postMortem bool

	cmd := &cobra.Command{
		Use:   "debug [--lite] [--post-mortem] -- program [args...]",
		Short: "Run a program under a remote debugger",
		Long: `Run a program so an editor on your laptop can debug it through an ssh tunnel.

Without flags the program starts halted under Delve and runs once a
debugger client attaches. With --lite it runs normally until
'rdebug attach' sends the activation signal. With --post-mortem a crash
keeps the core dump open in Delve for inspection.

Examples:
  # Stop at startup and wait for the editor
  rdebug debug -- ./solver -n 4

  # Run at full speed, attach later from the login node
  rdebug debug --lite -- ./solver -n 4

  # Inspect a crash after the fact
  rdebug debug --post-mortem -- ./solver -n 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := runner.New(args[0], args[1:],
				runner.WithLite(liteMode),
				runner.WithPostMortem(postMortem),
				runner.WithConfig(cfg),
				runner.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
				runner.WithLogger(cli.GetLogger(cmd, "runner")),
			)
			span := profiling.Start("run " + args[0])
			code, err := r.Run(ctx)
			span.Stop()
			if err != nil {
				return err
			}
			if code != 0 {
				return &cli.ExitError{Code: code}
			}
			return nil
		},
	}

	// Flags after the program name belong to the program.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&liteMode, "lite", false, "Run normally and start the debugger on the activation signal")
	cmd.Flags().BoolVar(&postMortem, "post-mortem", false, "Open the core dump in the debugger when the program crashes")

	return cmd
}
