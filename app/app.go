// Package app wires the HAL, the LoRaWAN driver and the counter task into a
// running node.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"radionode/hal"
	"radionode/internal/config"
	"radionode/internal/logging"
	"radionode/nodeos/kernel"
	"radionode/nodeos/lorawan"
	"radionode/nodeos/lorawan/simstack"
	"radionode/nodeos/tasks/counter"
)

const statsInterval = 60 * time.Second

type Options struct {
	// Stack replaces the simulated MAC stack.
	Stack  lorawan.Stack
	Logger *slog.Logger
}

// Run starts the node on h and blocks until ctx is done or a component
// fails. Cancellation is a clean stop.
func Run(ctx context.Context, h hal.HAL, cfg config.Config, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	installPanicHandler(h, log)

	board, err := cfg.BoardKind()
	if err != nil {
		return err
	}
	params, err := cfg.Parameters(h.HardwareAddr())
	if err != nil {
		return err
	}
	stack := opts.Stack
	if stack == nil {
		sim, err := cfg.Simulation()
		if err != nil {
			return err
		}
		sim.Logger = log
		stack = simstack.New(sim)
	}

	pins := lorawan.PinsFor(board)
	ccfg := counter.Config{UplinkInterval: cfg.Task.UplinkInterval, Logger: log}
	if pins.Button != lorawan.NotConnected {
		ccfg.Button = h.GPIO().Pin(pins.Button)
		ccfg.ButtonPin = pins.Button
	}
	node := counter.New(ccfg)

	log.Info("node starting",
		slog.String("board", board.String()),
		slog.String("params", params.String()),
		logging.Duration(cfg.Task.UplinkInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return node.Run(ctx) })
	g.Go(func() error {
		d, err := lorawan.Launch(ctx, lorawan.LaunchConfig{
			HAL:    h,
			Board:  board,
			Params: params,
			Stack:  stack,
			Options: lorawan.Options{
				Logger:           log,
				OperationTimeout: operationTimeout(cfg.Radio.OperationTimeout),
				RSSICal:          cfg.Radio.RSSICal,
			},
			JoinRetry: cfg.Radio.JoinRetry,
		}, node)
		if err != nil {
			return err
		}
		<-ctx.Done()
		d.Close()
		return nil
	})
	g.Go(func() error {
		reportStatistics(ctx, log)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	log.Info("node stopped", logging.Error(err))
	return err
}

// operationTimeout maps the configured zero ("unbounded") onto the driver's
// negative value.
func operationTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func reportStatistics(ctx context.Context, log *slog.Logger) {
	t := time.NewTicker(statsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			kernel.SystemStatistics().Dump(log)
			return
		case <-t.C:
			kernel.SystemStatistics().Dump(log)
		}
	}
}
