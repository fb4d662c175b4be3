//go:build tinygo && esp32

package main

import (
	"context"
	"log/slog"

	"radionode/app"
	"radionode/hal"
	"radionode/internal/config"
	"radionode/nodeos/lorawan"
)

func main() {
	h := hal.New()
	log := slog.New(slog.NewTextHandler(hal.LoggerWriter(h.Logger()), nil))

	cfg := config.Default()
	cfg.Board = lorawan.BoardTTGOTBeam.String()
	if err := app.Run(context.Background(), h, cfg, app.Options{Logger: log}); err != nil {
		log.Error("node stopped", "err", err)
	}
	select {}
}
