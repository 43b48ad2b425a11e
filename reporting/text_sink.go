package reporting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/acarl005/stripansi"
)

// SummaryFileName is the name of the report copy inside a run directory
const SummaryFileName = "summary.log"

// TextSummarySink keeps a copy of everything written to the report stream
// and stores it, with color codes removed, under <baseDir>/testrun-<runID>.
type TextSummarySink struct {
	baseDir string
	runID   string

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTextSummarySink creates a sink for one run
func NewTextSummarySink(baseDir, runID string) *TextSummarySink {
	return &TextSummarySink{
		baseDir: baseDir,
		runID:   runID,
	}
}

// Write buffers report output. It never fails, so it is safe to combine with
// the real report writer in an io.MultiWriter.
func (s *TextSummarySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Dir is the run directory the summary is written to
func (s *TextSummarySink) Dir() string {
	return filepath.Join(s.baseDir, "testrun-"+s.runID)
}

// Complete writes the summary file and returns its path
func (s *TextSummarySink) Complete() (string, error) {
	outputDir := s.Dir()
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	s.mu.Lock()
	content := stripansi.Strip(s.buf.String())
	s.mu.Unlock()

	summaryFile := filepath.Join(outputDir, SummaryFileName)
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return summaryFile, nil
}
