package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/tsmc"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitProved    = 0
	ExitError     = 1
	ExitDisproved = 10
	ExitUnknown   = 20
)

func main() {
	code, err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	m := &Main{Stdout: stdout, Stderr: stderr, code: ExitError}

	root := m.newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		return ExitError, err
	}
	return m.code, nil
}

// Main holds the output streams and the exit code of a command.
type Main struct {
	Stdout io.Writer
	Stderr io.Writer

	code int
}

func (m *Main) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tsmc",
		Short: "Symbolic model checking of transition systems",
		Long: `Tsmc checks safety properties of AIGER circuits with bounded model
checking, IC3 or a portfolio of both.

Exit codes: 0 proved, 1 error, 10 disproved, 20 unknown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		NewCheckCommand(m).Command(),
		NewPortfolioCommand(m).Command(),
		newVersionCommand(m),
	)
	return root
}

// setResult records the exit code for a prover result.
func (m *Main) setResult(result tsmc.Result) {
	switch result {
	case tsmc.ResultTrue:
		m.code = ExitProved
	case tsmc.ResultFalse:
		m.code = ExitDisproved
	default:
		m.code = ExitUnknown
	}
}

// isTimeout returns true if err is the run deadline or a solver timeout.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, tsmc.ErrSolverTimeout)
}
