package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-unittest/compiler"
	"github.com/ethereum-optimism/infra/op-unittest/types"
)

var testdata = []string{
	"../compiler/testdata/coin.yaml",
	"../compiler/testdata/vault.yaml",
	"../compiler/testdata/broken.yaml",
}

func compilePlan(t *testing.T, sources ...string) *types.TestPlan {
	t.Helper()
	srcs := make([]compiler.Source, len(sources))
	for i, s := range sources {
		srcs[i] = compiler.Source{Path: fmt.Sprintf("src%d.yaml", i), Content: []byte(s)}
	}
	plan, err := compiler.CompileSources(srcs)
	require.NoError(t, err)
	return plan
}

func compileTestdata(t *testing.T) *types.TestPlan {
	t.Helper()
	plan, err := compiler.Compile(testdata)
	require.NoError(t, err)
	return plan
}

func testConfig(plan *types.TestPlan) Config {
	return Config{
		InstructionBound: 1000,
		NumWorkers:       4,
		Plan:             plan,
		Log:              log.NewLogger(log.DiscardHandler()),
		RunID:            "test-run",
	}
}

func newRunner(t *testing.T, cfg Config) *TestRunner {
	t.Helper()
	r, err := NewTestRunner(cfg)
	require.NoError(t, err)
	return r
}

func run(t *testing.T, r *TestRunner) (*TestResults, string) {
	t.Helper()
	var buf bytes.Buffer
	results, err := r.Run(context.Background(), &buf)
	require.NoError(t, err)
	return results, buf.String()
}

func statuses(results *TestResults) map[string]types.TestStatus {
	out := make(map[string]types.TestStatus)
	for _, res := range results.All() {
		out[res.Test.Ref().String()] = res.Outcome.Status
	}
	return out
}

// fakeAdapter returns a fixed execution, or calls fn when set
type fakeAdapter struct {
	name  string
	exec  Execution
	fn    func(tc *types.TestCase) Execution
	calls atomic.Int64
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Execute(_ context.Context, tc *types.TestCase, bound uint64) Execution {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(tc)
	}
	exec := f.exec
	exec.Outcome.Engine = f.name
	exec.Outcome.Bound = bound
	return exec
}

// lineRecorder records each Write and flags overlapping calls
type lineRecorder struct {
	mu         sync.Mutex
	writes     []string
	active     atomic.Int32
	overlapped atomic.Bool
}

func (l *lineRecorder) Write(p []byte) (int, error) {
	if l.active.Add(1) > 1 {
		l.overlapped.Store(true)
	}
	defer l.active.Add(-1)

	l.mu.Lock()
	l.writes = append(l.writes, string(p))
	l.mu.Unlock()
	return len(p), nil
}

type failingWriter struct {
	failAfter int
	n         atomic.Int32
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if int(f.n.Add(1)) > f.failAfter {
		return 0, errSinkClosed
	}
	return len(p), nil
}

var errSinkClosed = errors.New("sink closed")
