//go:build !tinygo

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"radionode/app"
	"radionode/hal"
	"radionode/internal/config"
	"radionode/internal/logging"
	"radionode/nodeos/lorawan"
)

var runDuration time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the node against the simulated radio and network",
	Long: `Run joins the simulated network and starts the counter application.
It stops on SIGINT or SIGTERM, or after --duration when set.`,
	RunE: runNode,
}

func init() {
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(runCmd)
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Options{File: configFile, EnvFile: envFile})
	if err != nil {
		return err
	}
	log, closer, err := logging.New(cfg.Log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closer.Close()

	board, err := cfg.BoardKind()
	if err != nil {
		return err
	}
	pins := lorawan.PinsFor(board)
	host := hal.NewHost(hal.HostConfig{
		DIO0:    pins.DIO0,
		Airtime: cfg.Sim.Airtime,
		Output:  cmd.ErrOrStderr(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}
	return app.Run(ctx, host, cfg, app.Options{Logger: log})
}
