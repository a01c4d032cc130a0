package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	version = "0.5.0"
	license = "BSD-3-Clause"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "neurobench %s (%s)\n", version, license)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
