// Package unittest compiles module sources into a test plan, runs every unit
// test on the bytecode engines and reports the results.
package unittest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-unittest/compiler"
	"github.com/ethereum-optimism/infra/op-unittest/exitcodes"
	"github.com/ethereum-optimism/infra/op-unittest/reporting"
	"github.com/ethereum-optimism/infra/op-unittest/runner"
	"github.com/ethereum-optimism/infra/op-unittest/types"
	"github.com/ethereum-optimism/infra/op-unittest/ui"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// ReportHeader is the first line of every report
const ReportHeader = "Running tests"

// BuildTestPlan compiles the configured sources into a test plan
func BuildTestPlan(cfg *Config) (*types.TestPlan, error) {
	plan, err := compiler.Compile(cfg.Sources)
	if err != nil {
		return nil, err
	}
	cfg.Log.Info("Compiled test plan", "sources", len(cfg.Sources),
		"modules", len(plan.Program.Modules()), "tests", len(plan.Tests))
	return plan, nil
}

// RunAndReportUnitTests runs the plan's tests selected by cfg and writes the
// progress lines, the optional statistics table and the summary to w. The
// writer is handed back together with whether every test passed.
func RunAndReportUnitTests(ctx context.Context, cfg *Config, plan *types.TestPlan, w io.Writer) (io.Writer, bool, error) {
	results, err := runAndReport(ctx, cfg, plan, "", w)
	if err != nil {
		return w, false, err
	}
	return w, results.AllPassed(), nil
}

func newRunner(cfg *Config, plan *types.TestPlan, runID string) (*runner.TestRunner, error) {
	r, err := runner.NewTestRunner(runner.Config{
		InstructionBound:   cfg.InstructionBound,
		NumWorkers:         cfg.NumThreads,
		CrossCheck:         cfg.CheckStacklessVM,
		Verbose:            cfg.Verbose,
		RetainFailureState: cfg.ReportStorageOnError,
		ReportStatistics:   cfg.ReportStatistics,
		Color:              cfg.Color,
		Plan:               plan,
		Log:                cfg.Log,
		RunID:              runID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}
	if cfg.Filter != "" {
		r.Filter(cfg.Filter)
	}
	return r, nil
}

func runAndReport(ctx context.Context, cfg *Config, plan *types.TestPlan, runID string, w io.Writer) (*runner.TestResults, error) {
	if _, err := fmt.Fprintln(w, ReportHeader); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	r, err := newRunner(cfg, plan, runID)
	if err != nil {
		return nil, err
	}
	results, err := r.Run(ctx, w)
	if err != nil {
		return nil, err
	}
	if err := results.ReportStatistics(w); err != nil {
		return nil, fmt.Errorf("failed to write statistics: %w", err)
	}
	if err := results.Summarize(w); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	return results, nil
}

// ListTests writes the tests cfg selects from plan as a tree of modules
func ListTests(cfg *Config, plan *types.TestPlan, w io.Writer) error {
	r, err := newRunner(cfg, plan, "")
	if err != nil {
		return err
	}
	var roots []*ui.Node
	var current *ui.Node
	for _, tc := range r.Tests() {
		if current == nil || current.Label != tc.Module.String() {
			current = &ui.Node{Label: tc.Module.String()}
			roots = append(roots, current)
		}
		label := tc.Function
		if len(tc.Args) > 0 {
			label += "(" + types.FormatArgs(tc.Args) + ")"
		}
		if tc.ExpectedFailure != nil {
			label += " [expects " + tc.ExpectedFailure.String() + "]"
		}
		current.Children = append(current.Children, &ui.Node{Label: label})
	}
	return ui.RenderTree(w, roots)
}

// unitTester implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &unitTester{}

// unitTester runs a compiled plan once and asks the application to shut down.
type unitTester struct {
	config   *Config
	version  string
	plan     *types.TestPlan
	out      io.Writer
	reporter MetricsReporter
	result   *runner.TestResults

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New compiles the configured sources. Compilation failures are runtime
// errors; no test runs when any source fails to compile.
func New(config *Config, version string, out io.Writer, shutdownCallback func(error)) (*unitTester, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if out == nil {
		out = os.Stdout
	}

	config.Log.Debug("Creating unit tester with config",
		"sources", config.Sources,
		"bound", config.InstructionBound,
		"threads", config.NumThreads,
		"filter", config.Filter,
		"stackless", config.CheckStacklessVM)

	plan, err := BuildTestPlan(config)
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	return &unitTester{
		config:           config,
		version:          version,
		plan:             plan,
		out:              out,
		reporter:         NewDefaultMetricsReporter(config.MetricsFile),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the unit tests once.
// Start implements the cliapp.Lifecycle interface.
func (u *unitTester) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			u.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	u.running.Store(true)
	u.config.Log.Info("Starting op-unittest", "version", u.version)

	if u.config.List {
		if err := ListTests(u.config, u.plan, u.out); err != nil {
			return NewRuntimeError(err)
		}
		go u.shutdownCallback(nil)
		return nil
	}

	if err := u.runTests(ctx); err != nil {
		u.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if !u.result.AllPassed() {
		u.config.Log.Warn("Test run completed with failures, returning exit code 1",
			"passed", u.result.Passed(), "failed", u.result.Failed())
		return NewTestFailureError(u.result.Passed(), u.result.Failed())
	}

	go u.shutdownCallback(nil)
	return nil
}

// runTests runs the plan and processes the results
func (u *unitTester) runTests(ctx context.Context) error {
	runID := uuid.New().String()

	out := u.out
	var summary *reporting.TextSummarySink
	if u.config.LogDir != "" {
		summary = reporting.NewTextSummarySink(u.config.LogDir, runID)
		out = io.MultiWriter(u.out, summary)
	}

	result, err := runAndReport(ctx, u.config, u.plan, runID, out)
	if err != nil {
		return NewRuntimeError(err)
	}
	u.result = result

	if summary != nil {
		path, err := summary.Complete()
		if err != nil {
			return NewRuntimeError(err)
		}
		u.config.Log.Info("Wrote test summary", "path", path)
	}
	if err := u.reporter.ReportResults(result); err != nil {
		return NewRuntimeError(err)
	}

	u.config.Log.Info("Test run completed", "run_id", result.RunID,
		"passed", result.Passed(), "failed", result.Failed(), "duration", result.Duration)
	return nil
}

// Stop stops the op-unittest service.
// Stop implements the cliapp.Lifecycle interface.
func (u *unitTester) Stop(ctx context.Context) error {
	if !u.running.Load() {
		u.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	u.running.Store(false)
	u.config.Log.Info("op-unittest stopped")
	return nil
}

// Stopped returns true if the op-unittest service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (u *unitTester) Stopped() bool {
	return !u.running.Load()
}
