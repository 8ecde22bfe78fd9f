package tsmc

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tsmc")

var (
	// solverChecks counts solver queries issued by the engines.
	solverChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsmc_solver_checks_total",
		Help: "Total solver checks by engine and result",
	}, []string{"engine", "result"})

	// proverResults counts CheckUntil outcomes.
	proverResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsmc_results_total",
		Help: "Total prover results by engine and result",
	}, []string{"engine", "result"})

	checkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tsmc_check_duration_seconds",
		Help:    "CheckUntil duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
	}, []string{"engine"})

	ic3Frames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tsmc_ic3_frames",
		Help: "Number of frames in the most recent IC3 run",
	})

	ic3Clauses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tsmc_ic3_clauses_total",
		Help: "Total blocking clauses added to IC3 frames",
	})

	// arrayAxioms counts violated axioms by class and by consecutive or
	// non-consecutive kind.
	arrayAxioms = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsmc_array_axioms_total",
		Help: "Total array axioms instantiated by class and kind",
	}, []string{"class", "kind"})
)

// instrumentedSolver wraps a Solver and counts its checks.
type instrumentedSolver struct {
	Solver
	engine Engine
}

func (s *instrumentedSolver) Check(assumptions ...Expr) (bool, error) {
	sat, err := s.Solver.Check(assumptions...)
	switch {
	case err != nil:
		solverChecks.WithLabelValues(s.engine.String(), "error").Inc()
	case sat:
		solverChecks.WithLabelValues(s.engine.String(), "sat").Inc()
	default:
		solverChecks.WithLabelValues(s.engine.String(), "unsat").Inc()
	}
	return sat, err
}

// observeCheck runs a CheckUntil body inside a span and records its result.
func observeCheck(ctx context.Context, engine Engine, attempt string, k int, fn func() (Result, error)) (Result, error) {
	_, span := tracer.Start(ctx, "tsmc.CheckUntil",
		trace.WithAttributes(
			attribute.String("engine", engine.String()),
			attribute.String("attempt", attempt),
			attribute.Int("bound", k),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := fn()
	checkDuration.WithLabelValues(engine.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		proverResults.WithLabelValues(engine.String(), "error").Inc()
		return result, err
	}
	span.SetAttributes(attribute.String("result", result.String()))
	span.SetStatus(codes.Ok, "")
	proverResults.WithLabelValues(engine.String(), result.String()).Inc()
	return result, nil
}
