package cli

import (
	"github.com/spf13/cobra"

	"radionode/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		info := buildinfo.Read()
		field(w, "version", info.Version)
		field(w, "commit", info.Commit)
		field(w, "built", info.Date)
		if info.Modified {
			yellow.Fprintln(w, "built from a modified work tree")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
