package unittest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-unittest/runner"
	"github.com/ethereum-optimism/infra/op-unittest/types"
)

var (
	passingSources = []string{"compiler/testdata/coin.yaml", "compiler/testdata/vault.yaml"}
	allSources     = append(passingSources[:len(passingSources):len(passingSources)], "compiler/testdata/broken.yaml")
)

func testConfig(sources ...string) *Config {
	return &Config{
		Sources:          sources,
		InstructionBound: 1000,
		NumThreads:       4,
		Log:              log.NewLogger(log.DiscardHandler()),
	}
}

func buildPlan(t *testing.T, cfg *Config) *types.TestPlan {
	t.Helper()
	plan, err := BuildTestPlan(cfg)
	require.NoError(t, err)
	return plan
}

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) ReportResults(results *runner.TestResults) error {
	args := m.Called(results)
	return args.Error(0)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRunAndReportUnitTestsPassing(t *testing.T) {
	cfg := testConfig(passingSources...)
	plan := buildPlan(t, cfg)

	var buf bytes.Buffer
	w, passed, err := RunAndReportUnitTests(context.Background(), cfg, plan, &buf)
	require.NoError(t, err)
	assert.Same(t, &buf, w)
	assert.True(t, passed)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Running tests\n"))
	assert.Contains(t, out, "[ PASS    ] 0x1::coin::test_mint\n")
	assert.Contains(t, out, "[ PASS    ] 0x2::vault::test_any_abort\n")
	assert.NotContains(t, out, "Test Statistics")
	assert.True(t, strings.HasSuffix(out, "Test result: OK. total: 5; passed: 5; failed: 0\n"))
}

func TestRunAndReportUnitTestsFailing(t *testing.T) {
	cfg := testConfig(allSources...)
	cfg.ReportStatistics = true
	plan := buildPlan(t, cfg)

	var buf bytes.Buffer
	_, passed, err := RunAndReportUnitTests(context.Background(), cfg, plan, &buf)
	require.NoError(t, err)
	assert.False(t, passed)

	out := buf.String()
	assert.Contains(t, out, "[ TIMEOUT ] 0x3::broken::test_spins\n")
	assert.Contains(t, out, "[ FAIL    ] 0x3::broken::test_wrong_abort\n")
	assert.Contains(t, out, "Test Statistics")
	assert.Contains(t, out, "Failures in 0x3::broken:")
	assert.True(t, strings.HasSuffix(out, "Test result: FAILED. total: 9; passed: 5; failed: 4\n"))
}

func TestRunAndReportUnitTestsFilter(t *testing.T) {
	cfg := testConfig(allSources...)
	cfg.Filter = "vault"
	plan := buildPlan(t, cfg)

	var buf bytes.Buffer
	_, passed, err := RunAndReportUnitTests(context.Background(), cfg, plan, &buf)
	require.NoError(t, err)
	assert.True(t, passed)
	assert.NotContains(t, buf.String(), "0x1::coin")
	assert.True(t, strings.HasSuffix(buf.String(), "Test result: OK. total: 2; passed: 2; failed: 0\n"))
}

func TestRunAndReportUnitTestsCrossCheck(t *testing.T) {
	cfg := testConfig(allSources...)
	cfg.CheckStacklessVM = true
	plan := buildPlan(t, cfg)

	var buf bytes.Buffer
	_, _, err := RunAndReportUnitTests(context.Background(), cfg, plan, &buf)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "DIVERGE")
	assert.True(t, strings.HasSuffix(buf.String(), "Test result: FAILED. total: 9; passed: 5; failed: 4\n"))
}

func TestRunAndReportUnitTestsErrors(t *testing.T) {
	cfg := testConfig(passingSources...)
	plan := buildPlan(t, cfg)

	_, _, err := RunAndReportUnitTests(context.Background(), cfg, plan, failingWriter{})
	require.ErrorContains(t, err, "disk full")

	cfg.NumThreads = 0
	_, _, err = RunAndReportUnitTests(context.Background(), cfg, plan, &bytes.Buffer{})
	require.ErrorIs(t, err, runner.ErrNoWorkers)
}

func TestBuildTestPlanReportsDiagnostics(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("address: 0x4\nmodule: bad\nfunctions:\n  - name: f\n    code: frobnicate\n"), 0644))

	_, err := BuildTestPlan(testConfig(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestListTests(t *testing.T) {
	cfg := testConfig(passingSources...)
	plan := buildPlan(t, cfg)

	var buf bytes.Buffer
	require.NoError(t, ListTests(cfg, plan, &buf))
	expected := strings.Join([]string{
		"0x1::coin",
		"├── test_mint",
		"├── test_burn_too_much [expects abort code 2]",
		"└── test_burn_with_args(400)",
		"0x2::vault",
		"├── test_deposit",
		"└── test_any_abort [expects any abort]",
		"",
	}, "\n")
	assert.Equal(t, expected, buf.String())

	cfg.Filter = "burn"
	buf.Reset()
	require.NoError(t, ListTests(cfg, plan, &buf))
	assert.Equal(t, "0x1::coin\n├── test_burn_too_much [expects abort code 2]\n└── test_burn_with_args(400)\n", buf.String())
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, "test", nil, func(error) {})
	require.Error(t, err)
}

func TestNewCompilationFailureIsRuntimeError(t *testing.T) {
	_, err := New(testConfig("does/not/exist.yaml"), "test", nil, func(error) {})
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
}

func TestStartPassingShutsDown(t *testing.T) {
	var buf bytes.Buffer
	done := make(chan error, 1)
	u, err := New(testConfig(passingSources...), "test", &buf, func(err error) { done <- err })
	require.NoError(t, err)

	reporter := &mockReporter{}
	reporter.On("ReportResults", mock.Anything).Return(nil).Once()
	u.reporter = reporter

	require.NoError(t, u.Start(context.Background()))
	assert.False(t, u.Stopped())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback was not called")
	}
	reporter.AssertExpectations(t)
	assert.Contains(t, buf.String(), "Test result: OK. total: 5; passed: 5; failed: 0")

	require.NoError(t, u.Stop(context.Background()))
	assert.True(t, u.Stopped())
	require.NoError(t, u.Stop(context.Background()))
}

func TestStartFailingReturnsTestFailure(t *testing.T) {
	var buf bytes.Buffer
	u, err := New(testConfig(allSources...), "test", &buf, func(error) {
		t.Error("shutdown callback must not be called on failures")
	})
	require.NoError(t, err)

	reporter := &mockReporter{}
	reporter.On("ReportResults", mock.Anything).Return(nil)
	u.reporter = reporter

	err = u.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))

	var failure *TestFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 5, failure.Passed)
	assert.Equal(t, 4, failure.Failed)
}

func TestStartReporterErrorIsRuntimeError(t *testing.T) {
	u, err := New(testConfig(passingSources...), "test", &bytes.Buffer{}, func(error) {})
	require.NoError(t, err)

	reporter := &mockReporter{}
	reporter.On("ReportResults", mock.Anything).Return(errors.New("read-only filesystem"))
	u.reporter = reporter

	err = u.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.ErrorContains(t, err, "read-only filesystem")
}

func TestStartWritesSummaryFile(t *testing.T) {
	cfg := testConfig(allSources...)
	cfg.LogDir = t.TempDir()
	cfg.Color = true

	var buf bytes.Buffer
	u, err := New(cfg, "test", &buf, func(error) {})
	require.NoError(t, err)
	require.Error(t, u.Start(context.Background()))

	matches, err := filepath.Glob(filepath.Join(cfg.LogDir, "testrun-*", "summary.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Running tests\n"))
	assert.Contains(t, string(content), "Test result: FAILED. total: 9; passed: 5; failed: 4")
	assert.NotContains(t, string(content), "\x1b[")
	assert.Equal(t, filepath.Base(filepath.Dir(matches[0])), "testrun-"+u.result.RunID)
}

func TestStartWritesMetricsFile(t *testing.T) {
	cfg := testConfig(passingSources...)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "unittest.prom")

	u, err := New(cfg, "test", &bytes.Buffer{}, func(error) {})
	require.NoError(t, err)
	require.NoError(t, u.Start(context.Background()))

	content, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `unittest_run_results{result="passed",run_id="`+u.result.RunID+`"} 5`)
}

func TestStartList(t *testing.T) {
	cfg := testConfig(allSources...)
	cfg.List = true
	cfg.Filter = "broken"

	var buf bytes.Buffer
	done := make(chan error, 1)
	u, err := New(cfg, "test", &buf, func(err error) { done <- err })
	require.NoError(t, err)
	require.NoError(t, u.Start(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback was not called")
	}
	assert.True(t, strings.HasPrefix(buf.String(), "0x3::broken\n"))
	assert.NotContains(t, buf.String(), ReportHeader)
	assert.Nil(t, u.result)
}
