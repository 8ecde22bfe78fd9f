package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/tsmc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// PortfolioCommand represents a command that runs several engines on the
// same property concurrently. The first conclusive result wins.
type PortfolioCommand struct {
	main  *Main
	flags configFlags
}

// NewPortfolioCommand returns a new instance of PortfolioCommand.
func NewPortfolioCommand(m *Main) *PortfolioCommand {
	return &PortfolioCommand{main: m}
}

// Command returns the cobra command for "portfolio".
func (cmd *PortfolioCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "portfolio [flags] FILE.aag|FILE.aig",
		Short: "Check a property with several engines concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			config, err := cmd.flags.load(c.Flags())
			if err != nil {
				return err
			}
			return cmd.Run(c.Context(), config, args[0])
		},
	}
	cmd.flags.register(c.Flags(), true)
	return c
}

// Run executes the "portfolio" subcommand.
func (cmd *PortfolioCommand) Run(ctx context.Context, config Config, path string) error {
	logger := config.Logger(cmd.main.Stderr)
	stop, err := serveMetrics(config.MetricsAddr, logger)
	if err != nil {
		return err
	}
	defer stop()

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		winner  tsmc.Engine
		result  = tsmc.ResultUnknown
		witness tsmc.Witness
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range config.Portfolio {
		engine, err := tsmc.ParseEngine(name)
		if err != nil {
			return err
		}

		// Each engine reads its own copy of the system.
		g.Go(func() error {
			r, w, err := checkFile(gctx, config, engine, path, logger.With("engine", engine.String()))
			if errors.Is(err, context.Canceled) || isTimeout(err) {
				return nil
			} else if err != nil {
				return err
			} else if r == tsmc.ResultUnknown {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if result == tsmc.ResultUnknown {
				winner, result, witness = engine, r, w
				cancel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	cmd.main.setResult(result)
	if result == tsmc.ResultUnknown {
		winner = 0
	}
	printPortfolioResult(cmd.main, config, winner, result, witness)
	return nil
}

func printPortfolioResult(m *Main, config Config, winner tsmc.Engine, result tsmc.Result, w tsmc.Witness) {
	if winner == 0 {
		fmt.Fprintf(m.Stdout, "portfolio: %s\n", result)
		return
	}
	printResult(m, config, winner, result, w)
}
