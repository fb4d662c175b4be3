package cli

import (
	"encoding/hex"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"radionode/internal/config"
	"radionode/nodeos/lorawan"
)

var keysMAC string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Decode the configured credentials",
	Long: `Keys prints the credentials as the radio stack receives them: the EUIs
byte-reversed and the key in input order. With an empty dev_eui the device
EUI is derived from --mac.`,
	RunE: runKeys,
}

func init() {
	keysCmd.Flags().StringVar(&keysMAC, "mac", "", "hardware address used when no dev_eui is configured")
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Options{File: configFile, EnvFile: envFile})
	if err != nil {
		return err
	}

	var mac [6]byte
	if keysMAC != "" {
		hw, err := net.ParseMAC(keysMAC)
		if err != nil || len(hw) != len(mac) {
			return fmt.Errorf("invalid --mac %q", keysMAC)
		}
		copy(mac[:], hw)
	}
	p, err := cfg.Parameters(mac)
	if err != nil {
		return err
	}
	printParameters(cmd, p)
	return nil
}

func printParameters(cmd *cobra.Command, p lorawan.Parameters) {
	w := cmd.OutOrStdout()
	green.Fprintln(w, "credentials decoded")
	field(w, "app EUI", fmt.Sprintf("%s  stack order %s", p.AppEUI, hex.EncodeToString(p.AppEUI[:])))
	field(w, "dev EUI", fmt.Sprintf("%s  stack order %s", p.DevEUI, hex.EncodeToString(p.DevEUI[:])))
	field(w, "app key", hex.EncodeToString(p.AppKey[:]))
	yellow.Fprintln(w, "keep the app key secret")
}
