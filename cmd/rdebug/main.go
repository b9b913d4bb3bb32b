package main

import (
	"os"

	"github.com/grovetools/rdebug/cli"
	"github.com/grovetools/rdebug/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		os.Exit(cli.NewErrorHandler(verbose).Handle(err))
	}
}
