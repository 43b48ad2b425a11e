package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-unittest/metrics"
	"github.com/ethereum-optimism/infra/op-unittest/types"
	"github.com/ethereum-optimism/infra/op-unittest/vm/stackless"
	"github.com/ethereum-optimism/infra/op-unittest/vm/stackvm"
)

const (
	// DefaultInstructionBound is the default per-test step ceiling
	DefaultInstructionBound = 5000

	// DefaultNumWorkers is the default size of the worker pool
	DefaultNumWorkers = 8

	// MaxReasonableWorkers is the pool size above which a warning is logged
	MaxReasonableWorkers = 256
)

var (
	ErrNoWorkers = errors.New("worker count must be at least 1")
	ErrNoBound   = errors.New("instruction bound must be at least 1")
	ErrNoPlan    = errors.New("test plan is required")

	// ErrAdapterPanic wraps a panic recovered from an execution adapter
	ErrAdapterPanic = errors.New("execution adapter panicked")
)

// Config holds configuration for creating a new runner
type Config struct {
	InstructionBound   uint64
	NumWorkers         int
	CrossCheck         bool // also run every test on the stackless engine
	Verbose            bool
	RetainFailureState bool // keep the final storage of failing tests
	ReportStatistics   bool
	Color              bool
	Plan               *types.TestPlan
	Log                log.Logger
	// RunID labels metrics and spans. A random one is generated when empty.
	RunID string

	// Primary and Secondary replace the default engines. Secondary is only
	// used when CrossCheck is set.
	Primary   ExecutionAdapter
	Secondary ExecutionAdapter
}

// TestRunner schedules the tests of a plan over a fixed pool of workers
type TestRunner struct {
	bound      uint64
	numWorkers int
	verbose    bool
	reportOpts reportOptions
	plan       *types.TestPlan
	tests      []*types.TestCase
	primary    ExecutionAdapter
	secondary  ExecutionAdapter
	runID      string
	log        log.Logger
	tracer     trace.Tracer
}

// NewTestRunner validates the configuration and the plan and creates a runner
// over every test in the plan
func NewTestRunner(cfg Config) (*TestRunner, error) {
	if cfg.NumWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if cfg.InstructionBound == 0 {
		return nil, ErrNoBound
	}
	if cfg.Plan == nil {
		return nil, ErrNoPlan
	}
	if err := cfg.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent test plan: %w", err)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.NumWorkers > MaxReasonableWorkers {
		cfg.Log.Warn("Very high worker count requested", "workers", cfg.NumWorkers,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	primary := cfg.Primary
	if primary == nil {
		primary = NewVMAdapter(stackvm.New(cfg.Plan.Program), cfg.Plan.Genesis, cfg.RetainFailureState)
	}
	var secondary ExecutionAdapter
	if cfg.CrossCheck {
		secondary = cfg.Secondary
		if secondary == nil {
			engine, err := stackless.New(cfg.Plan.Program)
			if err != nil {
				return nil, fmt.Errorf("creating cross-check engine: %w", err)
			}
			secondary = NewVMAdapter(engine, cfg.Plan.Genesis, cfg.RetainFailureState)
		}
	}

	cfg.Log.Debug("NewTestRunner()", "bound", cfg.InstructionBound, "workers", cfg.NumWorkers,
		"crossCheck", cfg.CrossCheck, "retainState", cfg.RetainFailureState, "tests", len(cfg.Plan.Tests))

	return &TestRunner{
		bound:      cfg.InstructionBound,
		numWorkers: cfg.NumWorkers,
		verbose:    cfg.Verbose,
		reportOpts: reportOptions{
			statistics: cfg.ReportStatistics,
			color:      cfg.Color,
		},
		plan:      cfg.Plan,
		tests:     cfg.Plan.Tests,
		primary:   primary,
		secondary: secondary,
		runID:     cfg.RunID,
		log:       cfg.Log.New("component", "test-runner"),
		tracer:    otel.Tracer("unit test runner"),
	}, nil
}

// Filter narrows the tests to run to those whose qualified name contains
// pattern. It always filters the full plan, so calling it again replaces
// the previous filter.
func (r *TestRunner) Filter(pattern string) {
	f := NewFilter(pattern)
	r.tests = r.tests[:0:0]
	for _, tc := range r.plan.Tests {
		if f.Matches(tc.QualifiedName()) {
			r.tests = append(r.tests, tc)
		}
	}
	r.log.Debug("Filtered tests", "pattern", pattern, "selected", len(r.tests), "total", len(r.plan.Tests))
}

// Tests returns the tests the next run will execute, in plan order
func (r *TestRunner) Tests() []*types.TestCase {
	return r.tests
}

// RunID returns the identifier of this runner's runs
func (r *TestRunner) RunID() string {
	return r.runID
}

// Run executes the selected tests and writes one progress line per test to
// w. It blocks until every test has finished. A failed write to w fails the
// whole run; test failures never do.
func (r *TestRunner) Run(ctx context.Context, w io.Writer) (*TestResults, error) {
	ctx, span := r.tracer.Start(ctx, "run unit tests")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", r.runID),
		attribute.Int("tests", len(r.tests)),
		attribute.Int("workers", r.numWorkers),
	)

	start := time.Now()
	r.log.Info("Running unit tests", "run_id", r.runID, "tests", len(r.tests), "workers", r.numWorkers,
		"bound", r.bound, "crossCheck", r.secondary != nil)

	sink := newProgressSink(w)
	results := r.executeAll(ctx, sink)
	results.Duration = time.Since(start)

	if err := sink.Err(); err != nil {
		span.RecordError(err)
		metrics.RecordErrorDetails("progress_sink", err)
		return nil, fmt.Errorf("writing test progress: %w", err)
	}

	r.log.Info("Unit tests completed", "run_id", r.runID, "passed", results.Passed(),
		"failed", results.Failed(), "duration", results.Duration)
	return results, nil
}
