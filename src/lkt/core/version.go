package core

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), VersionInfo.Map())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "lkt %s\n", VersionInfo.Full())
		return nil
	},
}
