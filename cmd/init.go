package cmd

import (
	"fmt"
	"strings"

	"github.com/grovetools/rdebug/cli"
	"github.com/grovetools/rdebug/launch"
	"github.com/grovetools/rdebug/logging"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	var path string
	var localPort int

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Add the remote attach configuration to .vscode/launch.json",
		Long: `Add a Go remote attach configuration and its remote path prompt to the
editor launch file. Existing configurations, inputs and comments are kept;
running init again changes nothing. A file that cannot be parsed is moved
aside to launch.json.bak.

Examples:
  rdebug init
  rdebug init --local-port 6000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Launch.Path
			}
			if localPort == 0 {
				localPort = cfg.Debug.LocalPort
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Initializing debug configuration...")
			result, err := launch.MergeFile(path, launch.DefaultConfigurations(localPort), launch.DefaultInputs())
			if err != nil {
				return err
			}
			printInitResult(cmd, path, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Launch file to update (default: launch.path)")
	cmd.Flags().IntVar(&localPort, "local-port", 0, "Laptop port the tunnel forwards (default: debug.local_port)")

	return cmd
}

func printInitResult(cmd *cobra.Command, path string, result launch.Result) {
	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())

	if result.BackupPath != "" {
		pretty.WarnPretty(fmt.Sprintf("%s could not be parsed and was moved to %s", path, result.BackupPath))
	}

	switch {
	case result.Created:
		pretty.Success("Created " + path)
	case result.Changed():
		pretty.Success("Updated " + path)
	default:
		pretty.InfoPretty(path + " already has the rdebug configuration.")
		return
	}

	if len(result.AddedConfigurations) > 0 {
		pretty.Field("configurations", strings.Join(result.AddedConfigurations, ", "))
	}
	if len(result.AddedInputs) > 0 {
		pretty.Field("inputs", strings.Join(result.AddedInputs, ", "))
	}
	pretty.Blank()
	pretty.InfoPretty("Setting up SSH tunnel: run the ssh command printed by 'rdebug debug', then start \"" + launch.DefaultConfigName + "\".")
}
