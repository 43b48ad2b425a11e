package runner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-unittest/types"
)

// progressSink serializes progress lines from concurrent workers. The lock
// is held for exactly one write, so lines never interleave and no worker
// holds it while a test executes.
type progressSink struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func newProgressSink(w io.Writer) *progressSink {
	return &progressSink{w: w}
}

// writeLine writes line plus a newline in a single call. After the first
// failure further lines are dropped and the error is kept for Err.
func (s *progressSink) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		s.err = err
	}
}

// Err returns the first write error
func (s *progressSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

var labelColors = map[types.TestStatus]text.Colors{
	types.TestStatusPass:              {text.FgGreen},
	types.TestStatusUnexpectedSuccess: {text.FgRed},
	types.TestStatusWrongAbort:        {text.FgRed},
	types.TestStatusExecutionError:    {text.FgRed},
	types.TestStatusBoundExceeded:     {text.FgYellow},
	types.TestStatusDivergent:         {text.FgMagenta, text.Bold},
}

// statusLabel renders the bracketed, fixed width status tag, eg. "[ PASS    ]"
func statusLabel(status types.TestStatus, color bool) string {
	label := fmt.Sprintf("%-7s", status.Label())
	if color {
		label = labelColors[status].Sprint(label)
	}
	return "[ " + label + " ]"
}

func (r *TestRunner) progressLine(res *types.TestResult) string {
	var b strings.Builder
	b.WriteString(statusLabel(res.Outcome.Status, r.reportOpts.color))
	b.WriteString(" ")
	b.WriteString(res.Test.Ref().String())
	if r.verbose {
		if len(res.Test.Args) > 0 {
			fmt.Fprintf(&b, "(%s)", types.FormatArgs(res.Test.Args))
		}
		fmt.Fprintf(&b, " (%d instructions, %s)", res.Stats.Steps, res.Stats.Duration.Round(time.Microsecond))
		if !res.Outcome.Status.Passed() {
			b.WriteString(": ")
			b.WriteString(res.Outcome.Describe())
		}
	}
	return b.String()
}
