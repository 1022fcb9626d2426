package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the runway CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "runway version %s\n", version)
		fmt.Fprintln(out, "A portfolio survival simulator for retirement withdrawals")
		fmt.Fprintln(out, "https://github.com/rustyeddy/runway")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
