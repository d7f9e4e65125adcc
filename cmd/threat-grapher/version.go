package main

import (
	"github.com/spf13/cobra"

	"github.com/ShehabAgain/threat-grapher/cmd/threat-grapher/internal"
	"github.com/ShehabAgain/threat-grapher/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.GetOutputFormat() == internal.FormatJSON {
			return internal.NewFormatter(internal.FormatJSON, cmd.OutOrStdout()).PrintJSON(version.Info())
		}
		cmd.Println(version.String())
		return nil
	},
}
