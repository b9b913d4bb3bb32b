package cmd

import (
	"github.com/grovetools/rdebug/cli"
	"github.com/grovetools/rdebug/pkg/profiling"
	"github.com/grovetools/rdebug/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the rdebug command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"rdebug",
		"Remote debugging for Go programs running in HPC batch jobs",
	)
	root.Long = `Start a Delve debug server next to a program running on a compute node and
print the ssh tunnel command that lets a local editor connect to it.`

	cli.SetVersionTemplate(root, version.GetInfo())

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(root)
	root.PersistentPreRunE = profiler.PreRun
	root.PersistentPostRun = profiler.PostRun

	root.AddCommand(
		NewDebugCmd(),
		NewAttachCmd(),
		NewInitCmd(),
		NewTunnelCmd(),
		NewConfigCmd(),
		cli.NewVersionCommand("rdebug"),
		NewShimCmd(),
	)

	cli.ApplyStyledHelpRecursive(root)
	return root
}
