package lorawan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"radionode/hal"
	"radionode/internal/logging"
)

const DefaultJoinRetry = 10 * time.Second

// LaunchConfig is everything Launch needs to bring a node onto the network.
type LaunchConfig struct {
	HAL     hal.HAL
	Board   Board
	Params  Parameters
	Stack   Stack
	Options Options
	// JoinRetry is the pause between failed joins.
	JoinRetry time.Duration
}

// Launch instantiates the driver, joins until it succeeds and hands the
// client to act. The driver keeps running after Launch returns; the caller
// owns it. If ctx ends before a join succeeds the driver is closed.
func Launch(ctx context.Context, cfg LaunchConfig, act Activator) (*Driver, error) {
	log := cfg.Options.Logger
	if log == nil {
		log = slog.Default()
	}
	retry := cfg.JoinRetry
	if retry <= 0 {
		retry = DefaultJoinRetry
	}

	d, err := Instantiate(ctx, cfg.HAL, cfg.Board, cfg.Params, cfg.Stack, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("lorawan: launch: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if d.Join(ctx) {
			log.Info("joined", slog.Int("attempt", attempt))
			break
		}
		log.Warn("join failed", slog.Int("attempt", attempt), logging.Duration(retry))

		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			d.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	act.Activate(d)
	return d, nil
}
