package runner

import (
	"sort"
	"time"

	"github.com/ethereum-optimism/infra/op-unittest/types"
)

type reportOptions struct {
	statistics bool
	color      bool
}

// TestResults is the aggregate of a run: one entry per executed test, keyed
// by fully qualified function name (0xaddr::module::function). It is only written by the runner's merge step and is
// read-only once Run returns.
type TestResults struct {
	RunID    string
	Duration time.Duration

	results map[string]*types.TestResult
	opts    reportOptions
}

func newTestResults(runID string, opts reportOptions) *TestResults {
	return &TestResults{
		RunID:   runID,
		results: make(map[string]*types.TestResult),
		opts:    opts,
	}
}

func (r *TestResults) add(res *types.TestResult) {
	r.results[res.Test.Ref().String()] = res
}

// Len is the number of tests executed
func (r *TestResults) Len() int {
	return len(r.results)
}

// Get returns the result of the test with the given fully qualified name,
// such as 0x1::coin::test_mint
func (r *TestResults) Get(name string) (*types.TestResult, bool) {
	res, ok := r.results[name]
	return res, ok
}

// All returns every result sorted by fully qualified function name
func (r *TestResults) All() []*types.TestResult {
	out := make([]*types.TestResult, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Test.Ref().String() < out[j].Test.Ref().String()
	})
	return out
}

// Failures returns the non-passing results, sorted like All
func (r *TestResults) Failures() []*types.TestResult {
	var out []*types.TestResult
	for _, res := range r.All() {
		if !res.Outcome.Status.Passed() {
			out = append(out, res)
		}
	}
	return out
}

// Passed is the number of passing tests
func (r *TestResults) Passed() int {
	n := 0
	for _, res := range r.results {
		if res.Outcome.Status.Passed() {
			n++
		}
	}
	return n
}

// Failed is the number of failing tests, divergent ones included
func (r *TestResults) Failed() int {
	return r.Len() - r.Passed()
}

// AllPassed reports whether the run had no failures. An empty run passes.
func (r *TestResults) AllPassed() bool {
	return r.Failed() == 0
}

// CountByStatus tallies results per status
func (r *TestResults) CountByStatus() map[types.TestStatus]int {
	counts := make(map[types.TestStatus]int)
	for _, res := range r.results {
		counts[res.Outcome.Status]++
	}
	return counts
}
