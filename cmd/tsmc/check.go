package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/tsmc"
	"github.com/benbjohnson/tsmc/aiger"
	"github.com/spf13/cobra"
)

// CheckCommand represents a command for checking a single property with one
// engine.
type CheckCommand struct {
	main  *Main
	flags configFlags
}

// NewCheckCommand returns a new instance of CheckCommand.
func NewCheckCommand(m *Main) *CheckCommand {
	return &CheckCommand{main: m}
}

// Command returns the cobra command for "check".
func (cmd *CheckCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "check [flags] FILE.aag|FILE.aig",
		Short: "Check a property with a single engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			config, err := cmd.flags.load(c.Flags())
			if err != nil {
				return err
			}
			return cmd.Run(c.Context(), config, args[0])
		},
	}
	cmd.flags.register(c.Flags(), false)
	return c
}

// Run executes the "check" subcommand.
func (cmd *CheckCommand) Run(ctx context.Context, config Config, path string) error {
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

	engine, err := tsmc.ParseEngine(config.Engine)
	if err != nil {
		return err
	}
	result, w, err := checkFile(ctx, config, engine, path, logger)
	if err != nil && !isTimeout(err) {
		return err
	} else if err != nil {
		logger.Info("timeout", "error", err)
	}

	cmd.main.setResult(result)
	printResult(cmd.main, config, engine, result, w)
	return nil
}

// checkFile reads the model at path and runs engine on the configured
// property with a solver of its own.
func checkFile(ctx context.Context, config Config, engine tsmc.Engine, path string, logger *slog.Logger) (tsmc.Result, tsmc.Witness, error) {
	m, err := aiger.ReadFile(path)
	if err != nil {
		return tsmc.ResultUnknown, nil, err
	}
	prop, err := m.Property(config.Property)
	if err != nil {
		return tsmc.ResultUnknown, nil, err
	}

	s, err := config.NewSolver()
	if err != nil {
		return tsmc.ResultUnknown, nil, err
	}
	defer s.Close()

	opts, err := config.Options(ctx, logger)
	if err != nil {
		return tsmc.ResultUnknown, nil, err
	}
	p, err := tsmc.NewProver(engine, prop, s, opts)
	if err != nil {
		return tsmc.ResultUnknown, nil, err
	}

	logger.Info("checking", "engine", engine.String(), "property", prop.Name, "bound", config.Bound)
	result, err := tsmc.Prove(p, config.Bound)
	if err != nil {
		return tsmc.ResultUnknown, nil, err
	} else if result != tsmc.ResultFalse {
		return result, nil, nil
	}

	w, err := p.Witness()
	if err != nil {
		return result, nil, fmt.Errorf("witness: %w", err)
	}
	return result, w, nil
}

func printResult(m *Main, config Config, engine tsmc.Engine, result tsmc.Result, w tsmc.Witness) {
	fmt.Fprintf(m.Stdout, "%s: %s\n", engine, result)
	if config.Witness && w != nil {
		fmt.Fprint(m.Stdout, w.String())
	}
}
