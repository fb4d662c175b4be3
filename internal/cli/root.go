// Package cli is the host command line of the node.
package cli

import (
	"github.com/spf13/cobra"

	"radionode/internal/buildinfo"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "radionode",
	Short: "LoRaWAN radio node runtime",
	Long: `radionode runs the node firmware on the host: a simulated SX127x radio,
a simulated network and the counter application, with the same scheduler and
driver code the device build uses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Errors are printed by Execute's caller.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.Version = buildinfo.Short()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with NODE_* overrides")
}
