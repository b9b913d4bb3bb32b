package cmd

import (
	"fmt"
	"os"

	"github.com/grovetools/rdebug/cli"
	"github.com/grovetools/rdebug/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd() *cobra.Command {
	var schema bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the effective configuration",
		Long: `Shows the configuration rdebug uses after merging, in order:
1. Built-in defaults
2. Global config ($RDEBUG_HOME/config/config.yml or $XDG_CONFIG_HOME/rdebug/config.yml)
3. Project config (.rdebug.yml found from the working directory upward)
4. RDEBUG_* environment variables
This is useful for debugging configuration issues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if schema {
				data, err := config.GenerateSchema()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			source := cli.GetOptions(cmd).ConfigFile
			if source == "" {
				if cwd, err := os.Getwd(); err == nil {
					source, _ = config.FindConfigFile(cwd)
				}
			}
			if source != "" {
				fmt.Fprintf(out, "# Source: %s\n", source)
			} else {
				fmt.Fprintln(out, "# Source: defaults and environment")
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(out, string(data))

			for name, ext := range cfg.Extensions {
				data, err := yaml.Marshal(map[string]interface{}{name: ext})
				if err != nil {
					return fmt.Errorf("failed to marshal %s: %w", name, err)
				}
				fmt.Fprint(out, string(data))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&schema, "schema", false, "Print the JSON Schema of the config file instead")
	return cmd
}
