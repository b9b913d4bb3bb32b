package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/grovetools/rdebug/cli"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/pkg/netaddr"
	"github.com/grovetools/rdebug/pkg/tunnel"
	"github.com/spf13/cobra"
)

func NewTunnelCmd() *cobra.Command {
	var localPort int

	cmd := &cobra.Command{
		Use:   "tunnel <node> <remote-port>",
		Short: "Print the ssh command that forwards a debugger port to your machine",
		Long: `Print the ssh port-forward command for a debugger listening on a compute
node. The login identity comes from SLURM_JOB_USER and SLURM_SUBMIT_HOST,
falling back to USER and a placeholder host.

Examples:
  rdebug tunnel node042 5679
  rdebug tunnel node042 5679 --local-port 6000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remotePort, err := strconv.Atoi(args[1])
			if err != nil || remotePort <= 0 || remotePort > 65535 {
				return errors.InvalidInput(fmt.Sprintf("invalid remote port %q", args[1]))
			}

			if localPort == 0 {
				cfg, err := cli.LoadConfig(cmd)
				if err != nil {
					return err
				}
				localPort = cfg.Debug.LocalPort
			}

			id, err := tunnel.IdentityFromEnv(cmd.Context(), os.Getenv, netaddr.NewResolver(nil))
			if err != nil {
				cli.GetLogger(cmd, "tunnel").WithError(err).Warn("Using the short login host name")
			}

			fmt.Fprintln(cmd.OutOrStdout(), id.SSHCommand(args[0], remotePort, localPort))
			return nil
		},
	}

	cmd.Flags().IntVar(&localPort, "local-port", 0, "Port on your machine (default: debug.local_port)")
	return cmd
}
