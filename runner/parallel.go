package runner

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ethereum-optimism/infra/op-unittest/metrics"
	"github.com/ethereum-optimism/infra/op-unittest/types"
)

// testWork is a unit of work handed to a worker
type testWork struct {
	test *types.TestCase
}

// executeAll fans the selected tests out to the worker pool and merges the
// results as they arrive. Only this goroutine touches the aggregate.
func (r *TestRunner) executeAll(ctx context.Context, sink *progressSink) *TestResults {
	results := newTestResults(r.runID, r.reportOpts)
	if len(r.tests) == 0 {
		r.log.Debug("No tests to execute")
		return results
	}

	workers := min(r.numWorkers, len(r.tests))
	// Buffered to hold every test so workers never wait on the feeder
	workChan := make(chan testWork, len(r.tests))
	resultChan := make(chan *types.TestResult, workers)

	for _, tc := range r.tests {
		workChan <- testWork{test: tc}
	}
	close(workChan)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, i, &wg, sink, workChan, resultChan)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		results.add(res)
	}
	return results
}

// worker runs tests until the work channel is drained. A worker never stops
// early: every test gets exactly one result.
func (r *TestRunner) worker(ctx context.Context, id int, wg *sync.WaitGroup, sink *progressSink, workChan <-chan testWork, resultChan chan<- *types.TestResult) {
	defer wg.Done()

	l := r.log.New("worker", id)
	l.Debug("Worker starting")
	defer l.Debug("Worker exiting")

	for work := range workChan {
		res := r.runTest(ctx, work.test)
		sink.writeLine(r.progressLine(res))
		resultChan <- res
	}
}

// runTest executes one test on the primary engine and, when cross-checking,
// on the secondary engine too
func (r *TestRunner) runTest(ctx context.Context, tc *types.TestCase) *types.TestResult {
	name := tc.Ref().String()
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("test %s", name))
	defer span.End()

	exec := r.safeExecute(ctx, r.primary, tc)
	if r.secondary != nil {
		exec = Reconcile(exec, r.safeExecute(ctx, r.secondary, tc))
	}

	span.SetAttributes(
		attribute.String("status", string(exec.Outcome.Status)),
		attribute.Int64("steps", int64(exec.Stats.Steps)),
	)
	metrics.RecordTest(r.runID, exec.Outcome.Status, exec.Stats.Steps, exec.Stats.Duration)
	r.log.Debug("Test completed", "test", name, "status", exec.Outcome.Status, "steps", exec.Stats.Steps)

	return &types.TestResult{
		Test:     tc,
		Outcome:  exec.Outcome,
		Stats:    exec.Stats,
		Snapshot: exec.Snapshot,
	}
}

// safeExecute turns a panicking adapter into an execution error for this
// test alone
func (r *TestRunner) safeExecute(ctx context.Context, a ExecutionAdapter, tc *types.TestCase) (exec Execution) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Execution adapter panicked", "test", tc.QualifiedName(), "adapter", a.Name(), "panic", p)
			metrics.RecordError("adapter_panic")
			exec = Execution{
				Outcome: types.Outcome{
					Status:   types.TestStatusExecutionError,
					Engine:   a.Name(),
					Expected: tc.ExpectedFailure,
					Bound:    r.bound,
					Err:      fmt.Errorf("%w: %v", ErrAdapterPanic, p),
				},
			}
		}
	}()
	return a.Execute(ctx, tc, r.bound)
}
