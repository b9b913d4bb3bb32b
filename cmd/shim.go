package cmd

import (
	"github.com/grovetools/rdebug/runner"
	"github.com/spf13/cobra"
)

// NewShimCmd is the re-exec entry point used by 'rdebug debug' to start a
// wrapped program that a debugger may later attach to.
func NewShimCmd() *cobra.Command {
	var coreDump bool

	cmd := &cobra.Command{
		Use:    runner.ShimCommand + " [--core-dump] -- program [args...]",
		Short:  "Replace this process with program",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Shim(args[0], args[1:], coreDump)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&coreDump, "core-dump", false, "Raise the core size limit before exec")
	return cmd
}
