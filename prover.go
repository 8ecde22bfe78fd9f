package tsmc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Result represents the outcome of a proof attempt.
type Result int

const (
	// ResultUnknown means no conclusion was reached within the bound.
	ResultUnknown Result = iota
	// ResultTrue means the property holds in every reachable state.
	ResultTrue
	// ResultFalse means a counterexample was found.
	ResultFalse
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case ResultTrue:
		return "proved"
	case ResultFalse:
		return "disproved"
	default:
		return "unknown"
	}
}

// Witness is a counterexample trace. Each step maps variable names to values.
type Witness []map[string]Expr

// String returns the trace in a readable tabular form.
func (w Witness) String() string {
	var sb strings.Builder
	for k, step := range w {
		names := make([]string, 0, len(step))
		for name := range step {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(&sb, "step %d:", k)
		for _, name := range names {
			fmt.Fprintf(&sb, " %s=%s", name, step[name])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Prover represents a model checking engine bound to a single property.
type Prover interface {
	// Prepares the engine. Resets any state from an earlier attempt.
	Initialize() error

	// Searches for a proof or counterexample up to bound k.
	CheckUntil(k int) (Result, error)

	// Returns the counterexample after CheckUntil returned ResultFalse.
	Witness() (Witness, error)

	// Returns an inductive invariant after CheckUntil returned ResultTrue.
	// Returns ErrNoInvariant if the engine does not produce one.
	Invariant() (Expr, error)
}

// Prove initializes p and checks it up to maxK.
func Prove(p Prover, maxK int) (Result, error) {
	if err := p.Initialize(); err != nil {
		return ResultUnknown, err
	}
	return p.CheckUntil(maxK)
}

// Engine identifies a model checking algorithm.
type Engine int

const (
	EngineBMC Engine = iota + 1
	EngineIC3
	EngineCegarArrays
)

var engineNames = map[Engine]string{
	EngineBMC:         "bmc",
	EngineIC3:         "ic3",
	EngineCegarArrays: "cegar-arrays",
}

// String returns the string representation of the engine.
func (e Engine) String() string {
	if name, ok := engineNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Engine<%d>", e)
}

// ParseEngine returns the engine with the given name.
func ParseEngine(s string) (Engine, error) {
	for e, name := range engineNames {
		if name == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown engine: %q", s)
}

// GeneralizeMode selects the inductive generalization strategy used by IC3.
type GeneralizeMode int

const (
	// GeneralizeDrop drops literals one at a time while the cube stays
	// relatively inductive.
	GeneralizeDrop GeneralizeMode = iota
	// GeneralizeCore starts from the unsat core of the blocking query and
	// then drops literals.
	GeneralizeCore
)

// String returns the string representation of the mode.
func (m GeneralizeMode) String() string {
	switch m {
	case GeneralizeDrop:
		return "drop"
	case GeneralizeCore:
		return "core"
	default:
		return fmt.Sprintf("GeneralizeMode<%d>", m)
	}
}

// ParseGeneralizeMode returns the mode with the given name.
func ParseGeneralizeMode(s string) (GeneralizeMode, error) {
	switch s {
	case "drop":
		return GeneralizeDrop, nil
	case "core":
		return GeneralizeCore, nil
	default:
		return 0, fmt.Errorf("unknown generalization mode: %q", s)
	}
}

// Options configures a prover.
type Options struct {
	// Checked between frames and bounds. Cancellation stops the engine with
	// ResultUnknown and the context error.
	Context context.Context

	Logger *slog.Logger

	// Interval for fresh state symbols in functional unrolling.
	UnrollInterval int

	GeneralizeMode GeneralizeMode

	// If true, IC3 re-checks every frame clause after propagation.
	CheckInvariants bool

	// Upper bound of the array lambda guard. Zero uses 2^w-1 for a w-bit
	// index sort.
	LambdaBound uint64

	// Maximum number of violated axioms returned per enumeration. Zero is
	// unlimited.
	AxiomLimit int

	// Maximum number of CEGAR refinements. Zero is unlimited.
	MaxRefinements int
}

// DefaultOptions returns the default prover options.
func DefaultOptions() Options {
	return Options{
		Context:        context.Background(),
		Logger:         slog.New(slog.DiscardHandler),
		UnrollInterval: DefaultUnrollInterval,
		GeneralizeMode: GeneralizeDrop,
	}
}

func (opts Options) normalize() Options {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts
}

// NewProver returns a prover for the given engine.
func NewProver(engine Engine, prop *Property, s Solver, opts Options) (Prover, error) {
	switch engine {
	case EngineBMC:
		return NewBMC(prop, s, opts), nil
	case EngineIC3:
		return NewIC3(prop, s, ModelBasedStrategy(opts.GeneralizeMode), opts), nil
	case EngineCegarArrays:
		return NewCegarArrays(prop, s, opts), nil
	default:
		return nil, fmt.Errorf("unknown engine: %d", engine)
	}
}

// prover holds the state shared by every engine.
type prover struct {
	engine  Engine
	prop    *Property
	ts      *TransitionSystem
	solver  Solver
	opts    Options
	logger  *slog.Logger
	attempt string

	bad      Expr
	reachedK int
}

func newProver(engine Engine, prop *Property, s Solver, opts Options) prover {
	opts = opts.normalize()
	return prover{
		engine:   engine,
		prop:     prop,
		ts:       prop.System,
		solver:   &instrumentedSolver{Solver: s, engine: engine},
		opts:     opts,
		logger:   opts.Logger,
		bad:      prop.Bad(),
		reachedK: -1,
	}
}

// reset starts a new attempt with a fresh attempt ID.
func (p *prover) reset() {
	p.attempt = uuid.NewString()
	p.logger = p.opts.Logger.With("component", p.engine.String(), "attempt", p.attempt)
	p.reachedK = -1
}

// canceled returns the context error, if any.
func (p *prover) canceled() error {
	return p.opts.Context.Err()
}

// check wraps a CheckUntil body with tracing and metrics.
func (p *prover) check(k int, fn func() (Result, error)) (Result, error) {
	return observeCheck(p.opts.Context, p.engine, p.attempt, k, fn)
}

// extractWitness reads the values of every variable at steps 0..k from the
// solver's model.
func extractWitness(s Solver, u *Unroller, k int) (Witness, error) {
	ts := u.System()
	w := make(Witness, 0, k+1)
	for i := 0; i <= k; i++ {
		step := make(map[string]Expr)
		for _, v := range ts.Vars() {
			timed, err := u.AtTime(v, i)
			if err != nil {
				return nil, err
			}
			value, err := s.Value(timed)
			if err != nil {
				return nil, fmt.Errorf("witness value: %s@%d: %w", v.Name, i, err)
			}
			step[v.Name] = value
		}
		w = append(w, step)
	}
	return w, nil
}
