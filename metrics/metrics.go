package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-unittest/types"
)

const (
	MetricsNamespace = "unittest"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of executed unit tests by result",
	}, []string{
		"run_id",
		"result",
	})

	instructionsExecuted = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "instructions_executed",
		Help:      "Instructions executed per unit test",
		Buckets:   prometheus.ExponentialBuckets(8, 4, 8),
	}, []string{
		"run_id",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Wall-clock duration of a single unit test",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{
		"run_id",
	})

	divergencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "divergences_total",
		Help:      "Count of tests on which the execution engines disagreed",
	}, []string{
		"run_id",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Test counts of a completed run",
	}, []string{
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordTest records one classified test execution
func RecordTest(runID string, status types.TestStatus, steps uint64, duration time.Duration) {
	if !slices.Contains(types.AllStatuses, status) {
		log.Error("RecordTest - invalid result", "result", status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"run_id", runID,
			"result", status,
			"steps", steps)
	}
	testsTotal.WithLabelValues(runID, string(status)).Inc()
	instructionsExecuted.WithLabelValues(runID).Observe(float64(steps))
	testDuration.WithLabelValues(runID).Observe(duration.Seconds())
	if status == types.TestStatusDivergent {
		divergencesTotal.WithLabelValues(runID).Inc()
	}
}

// RecordRun records the totals of a completed run
func RecordRun(runID string, total, passed, failed int, duration time.Duration) {
	runResults.WithLabelValues(runID, "total").Set(float64(total))
	runResults.WithLabelValues(runID, "passed").Set(float64(passed))
	runResults.WithLabelValues(runID, "failed").Set(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

// WriteTextfile dumps every registered metric in the Prometheus text format,
// for pickup by a node exporter textfile collector
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
