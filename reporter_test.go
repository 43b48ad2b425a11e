package unittest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMetricsReporter_ReportResults(t *testing.T) {
	cfg := testConfig(allSources...)
	plan := buildPlan(t, cfg)
	results, err := runAndReport(context.Background(), cfg, plan, "reporter-run", &bytes.Buffer{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "unittest.prom")
	require.NoError(t, NewDefaultMetricsReporter(path).ReportResults(results))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `unittest_run_results{result="total",run_id="reporter-run"} 9`)
	assert.Contains(t, string(content), `unittest_run_results{result="passed",run_id="reporter-run"} 5`)
	assert.Contains(t, string(content), `unittest_run_results{result="failed",run_id="reporter-run"} 4`)
	assert.Contains(t, string(content), `unittest_tests_total{result="bound_exceeded",run_id="reporter-run"} 1`)
}

func TestDefaultMetricsReporter_NoTextfile(t *testing.T) {
	cfg := testConfig(passingSources...)
	plan := buildPlan(t, cfg)
	results, err := runAndReport(context.Background(), cfg, plan, "no-textfile-run", &bytes.Buffer{})
	require.NoError(t, err)

	require.NoError(t, NewDefaultMetricsReporter("").ReportResults(results))
}

func TestDefaultMetricsReporter_UnwritablePath(t *testing.T) {
	cfg := testConfig(passingSources...)
	plan := buildPlan(t, cfg)
	results, err := runAndReport(context.Background(), cfg, plan, "unwritable-run", &bytes.Buffer{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "missing", "dir", "unittest.prom")
	require.ErrorContains(t, NewDefaultMetricsReporter(path).ReportResults(results), "failed to write metrics textfile")
}
