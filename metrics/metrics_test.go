package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-unittest/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("division by zero at 0x1::m::f (pc 3)"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
			assert.Regexp(t, validLabelRegex, result)
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	assert.NotPanics(t, func() {
		RecordError("test_error")
		RecordErrorDetails("test", nil)
		RecordErrorDetails("test", errors.New("sample error"))
	})
}

func TestRecordTestIgnoresUnknownStatus(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordTest("run1", types.TestStatus("bogus"), 1, time.Millisecond)
	})
}

func TestWriteTextfile(t *testing.T) {
	RecordTest("textfile-run", types.TestStatusPass, 42, time.Millisecond)
	RecordTest("textfile-run", types.TestStatusDivergent, 7, time.Millisecond)
	RecordRun("textfile-run", 2, 1, 1, time.Second)

	path := filepath.Join(t.TempDir(), "unittest.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `unittest_tests_total{result="pass",run_id="textfile-run"} 1`)
	assert.Contains(t, out, `unittest_divergences_total{run_id="textfile-run"} 1`)
	assert.Contains(t, out, `unittest_run_results{result="failed",run_id="textfile-run"} 1`)
	assert.Contains(t, out, `unittest_instructions_executed_count{run_id="textfile-run"} 2`)
}
