package runner

import (
	"context"
	"time"

	"github.com/ethereum-optimism/infra/op-unittest/ledger"
	"github.com/ethereum-optimism/infra/op-unittest/types"
	"github.com/ethereum-optimism/infra/op-unittest/vm"
)

// Execution is what an adapter reports for a single test
type Execution struct {
	Outcome types.Outcome
	Stats   types.TestStatistics
	// Snapshot is the final storage, only for non-passing outcomes and only
	// when failure state retention is enabled
	Snapshot ledger.Snapshot
	// FinalState is the storage the execution ended with, kept when failure
	// state retention is enabled so a passing execution can still be
	// snapshotted if cross-checking turns the test into a failure
	FinalState *ledger.State
}

// snapshot returns the retained final storage, if any
func (e Execution) snapshot() ledger.Snapshot {
	if e.Snapshot != nil {
		return e.Snapshot
	}
	if e.FinalState != nil {
		return e.FinalState.Snapshot()
	}
	return nil
}

// ExecutionAdapter runs a test case on one engine. Implementations must be
// safe for concurrent use and must not let storage changes of one execution
// be observed by another.
type ExecutionAdapter interface {
	Name() string
	Execute(ctx context.Context, tc *types.TestCase, bound uint64) Execution
}

var _ ExecutionAdapter = (*VMAdapter)(nil)

// VMAdapter adapts a vm.Engine. Each execution runs against its own clone of
// the genesis storage.
type VMAdapter struct {
	engine      vm.Engine
	genesis     *ledger.State
	retainState bool
}

// NewVMAdapter creates an adapter for engine. genesis is only ever cloned.
func NewVMAdapter(engine vm.Engine, genesis *ledger.State, retainState bool) *VMAdapter {
	return &VMAdapter{
		engine:      engine,
		genesis:     genesis,
		retainState: retainState,
	}
}

// Name is the name of the wrapped engine
func (a *VMAdapter) Name() string {
	return a.engine.Name()
}

// Execute implements ExecutionAdapter
func (a *VMAdapter) Execute(ctx context.Context, tc *types.TestCase, bound uint64) Execution {
	state := a.genesis.Clone()

	start := time.Now()
	res := a.engine.Run(ctx, vm.Request{
		Function:  tc.Ref(),
		Args:      tc.Args,
		State:     state,
		StepBound: bound,
	})

	exec := Execution{
		Outcome: Classify(tc, res, bound),
		Stats: types.TestStatistics{
			Steps:    res.Steps,
			Duration: time.Since(start),
		},
	}
	exec.Outcome.Engine = a.engine.Name()
	if a.retainState {
		exec.FinalState = state
		if !exec.Outcome.Status.Passed() {
			exec.Snapshot = state.Snapshot()
		}
	}
	return exec
}

// Classify maps an engine result onto the test's expectation.
//
//	completed, success expected     -> pass
//	completed, abort expected       -> unexpected success
//	aborted, matching abort code    -> pass
//	aborted, otherwise              -> wrong abort
//	runtime error                   -> execution error
//	bound exhausted                 -> bound exceeded
//
// An expected failure without an abort code accepts any abort.
func Classify(tc *types.TestCase, res vm.Result, bound uint64) types.Outcome {
	out := types.Outcome{
		Expected: tc.ExpectedFailure,
		Bound:    bound,
	}
	if res.Kind != vm.Completed {
		loc := res.Location
		out.Location = &loc
	}

	switch res.Kind {
	case vm.Completed:
		if tc.ExpectedFailure != nil {
			out.Status = types.TestStatusUnexpectedSuccess
		} else {
			out.Status = types.TestStatusPass
		}
	case vm.Aborted:
		code := res.AbortCode
		out.AbortCode = &code
		if tc.ExpectedFailure != nil && tc.ExpectedFailure.Matches(code) {
			out.Status = types.TestStatusPass
		} else {
			out.Status = types.TestStatusWrongAbort
		}
	case vm.BoundExceeded:
		out.Status = types.TestStatusBoundExceeded
	default:
		out.Status = types.TestStatusExecutionError
		out.Err = res.Err
	}
	return out
}
