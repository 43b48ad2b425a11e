package unittest

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-unittest/metrics"
	"github.com/ethereum-optimism/infra/op-unittest/runner"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(results *runner.TestResults) error
}

// DefaultMetricsReporter records run totals and, when a path is set, writes
// every registered metric to a Prometheus textfile.
type DefaultMetricsReporter struct {
	textfile string
}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter. An empty
// textfile disables the file export.
func NewDefaultMetricsReporter(textfile string) *DefaultMetricsReporter {
	return &DefaultMetricsReporter{textfile: textfile}
}

// ReportResults reports the test results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(results *runner.TestResults) error {
	metrics.RecordRun(results.RunID, results.Len(), results.Passed(), results.Failed(), results.Duration)
	if r.textfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(r.textfile); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
