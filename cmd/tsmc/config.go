package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/tsmc"
	"github.com/benbjohnson/tsmc/sat"
	"github.com/benbjohnson/tsmc/z3"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config holds the settings of a check. It is read from a YAML file and
// overridden by command line flags.
type Config struct {
	Engine   string `yaml:"engine" validate:"required,oneof=bmc ic3"`
	Solver   string `yaml:"solver" validate:"required,oneof=sat z3"`
	Bound    int    `yaml:"bound" validate:"gte=0"`
	Interval int    `yaml:"interval" validate:"gte=0"`
	GenMode  string `yaml:"gen_mode" validate:"required,oneof=drop core"`
	Property int    `yaml:"property" validate:"gte=0"`

	// Limits the whole run. Zero means no limit.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// Limits a single solver check. Zero means no limit.
	SolverTimeout time.Duration `yaml:"solver_timeout" validate:"gte=0"`

	CheckInvariants bool `yaml:"check_invariants"`

	// Engines run by the portfolio command.
	Portfolio []string `yaml:"portfolio" validate:"min=1,unique,dive,oneof=bmc ic3"`

	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Witness     bool   `yaml:"witness"`
	Verbose     bool   `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Engine:    tsmc.EngineIC3.String(),
		Solver:    "sat",
		Bound:     20,
		Interval:  tsmc.DefaultUnrollInterval,
		GenMode:   tsmc.GeneralizeDrop.String(),
		Portfolio: []string{tsmc.EngineBMC.String(), tsmc.EngineIC3.String()},
	}
}

// LoadConfig reads a YAML file over the default configuration.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(buf, &config); err != nil {
		return config, fmt.Errorf("parse %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s: failed %q with value %v", e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Options returns the prover options for the configuration.
func (c *Config) Options(ctx context.Context, logger *slog.Logger) (tsmc.Options, error) {
	mode, err := tsmc.ParseGeneralizeMode(c.GenMode)
	if err != nil {
		return tsmc.Options{}, err
	}
	opts := tsmc.DefaultOptions()
	opts.Context = ctx
	opts.Logger = logger
	opts.UnrollInterval = c.Interval
	opts.GeneralizeMode = mode
	opts.CheckInvariants = c.CheckInvariants
	return opts, nil
}

// NewSolver returns a new solver of the configured backend.
func (c *Config) NewSolver() (tsmc.Solver, error) {
	switch c.Solver {
	case "sat":
		s := sat.NewSolver()
		s.Timeout = c.SolverTimeout
		return s, nil
	case "z3":
		s := z3.NewSolver()
		if c.SolverTimeout > 0 {
			if err := s.SetTimeout(c.SolverTimeout); err != nil {
				s.Close()
				return nil, err
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown solver: %q", c.Solver)
	}
}

// Logger returns a text logger on w when verbose output is enabled.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if !c.Verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// configFlags binds the command line flags that override the configuration.
type configFlags struct {
	path   string
	config Config
}

func (f *configFlags) register(fs *pflag.FlagSet, portfolio bool) {
	def := DefaultConfig()
	fs.StringVar(&f.path, "config", "", "YAML configuration file")
	fs.StringVar(&f.config.Solver, "solver", def.Solver, "solver backend: sat or z3")
	fs.IntVarP(&f.config.Bound, "bound", "k", def.Bound, "maximum bound")
	fs.IntVar(&f.config.Interval, "interval", def.Interval, "unrolling interval for fresh state symbols")
	fs.StringVar(&f.config.GenMode, "gen-mode", def.GenMode, "IC3 generalization: drop or core")
	fs.IntVar(&f.config.Property, "property", def.Property, "index of the property to check")
	fs.DurationVar(&f.config.Timeout, "timeout", def.Timeout, "limit for the whole run")
	fs.DurationVar(&f.config.SolverTimeout, "solver-timeout", def.SolverTimeout, "limit for a single solver check")
	fs.BoolVar(&f.config.CheckInvariants, "check-invariants", def.CheckInvariants, "re-check IC3 frames after propagation")
	fs.BoolVar(&f.config.Witness, "witness", def.Witness, "print the counterexample trace")
	fs.StringVar(&f.config.MetricsAddr, "metrics-addr", def.MetricsAddr, "serve Prometheus metrics on this address")
	fs.BoolVarP(&f.config.Verbose, "verbose", "v", def.Verbose, "verbose logging")
	if portfolio {
		fs.StringSliceVar(&f.config.Portfolio, "engines", def.Portfolio, "engines to run concurrently")
	} else {
		fs.StringVar(&f.config.Engine, "engine", def.Engine, "engine: bmc or ic3")
	}
}

// load reads the configuration file, applies changed flags and validates the
// result.
func (f *configFlags) load(fs *pflag.FlagSet) (Config, error) {
	config := DefaultConfig()
	if f.path != "" {
		var err error
		if config, err = LoadConfig(f.path); err != nil {
			return config, err
		}
	}

	overrides := map[string]func(){
		"engine":           func() { config.Engine = f.config.Engine },
		"engines":          func() { config.Portfolio = f.config.Portfolio },
		"solver":           func() { config.Solver = f.config.Solver },
		"bound":            func() { config.Bound = f.config.Bound },
		"interval":         func() { config.Interval = f.config.Interval },
		"gen-mode":         func() { config.GenMode = f.config.GenMode },
		"property":         func() { config.Property = f.config.Property },
		"timeout":          func() { config.Timeout = f.config.Timeout },
		"solver-timeout":   func() { config.SolverTimeout = f.config.SolverTimeout },
		"check-invariants": func() { config.CheckInvariants = f.config.CheckInvariants },
		"witness":          func() { config.Witness = f.config.Witness },
		"metrics-addr":     func() { config.MetricsAddr = f.config.MetricsAddr },
		"verbose":          func() { config.Verbose = f.config.Verbose },
	}
	fs.Visit(func(flag *pflag.Flag) {
		if fn, ok := overrides[flag.Name]; ok {
			fn()
		}
	})
	return config, config.Validate()
}

// serveMetrics serves the Prometheus registry on addr until the returned
// function is called.
func serveMetrics(addr string, logger *slog.Logger) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
