package runner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/types"
	"github.com/ethereum-optimism/infra/op-unittest/ui"
)

// ReportStatistics writes a table of instructions executed and time taken
// per test. It writes nothing unless statistics were requested.
func (r *TestResults) ReportStatistics(w io.Writer) error {
	if !r.opts.statistics {
		return nil
	}

	t := table.NewWriter()
	t.SetTitle("Test Statistics")
	t.AppendHeader(table.Row{"Test Name", "Time", "Instructions Executed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test Name", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Time", Align: text.AlignRight},
		{Name: "Instructions Executed", Align: text.AlignRight},
	})

	var steps uint64
	var elapsed time.Duration
	for _, res := range r.All() {
		t.AppendRow(table.Row{
			res.Test.Ref().String(),
			formatDuration(res.Stats.Duration),
			res.Stats.Steps,
		})
		steps += res.Stats.Steps
		elapsed += res.Stats.Duration
	}
	t.AppendFooter(table.Row{"TOTAL", formatDuration(elapsed), steps})
	if r.opts.color {
		t.SetStyle(table.StyleColoredDark)
	} else {
		t.SetStyle(table.StyleLight)
	}

	_, err := io.WriteString(w, t.Render()+"\n\n")
	return err
}

// Summarize writes a failure block per failing test, grouped by module, and
// the final count line
func (r *TestResults) Summarize(w io.Writer) error {
	var b strings.Builder

	failures := r.Failures()
	if len(failures) > 0 {
		b.WriteString("\nTest failures:\n")
		var current bytecode.ModuleID
		for i, res := range failures {
			if i == 0 || res.Test.Module != current {
				current = res.Test.Module
				fmt.Fprintf(&b, "\nFailures in %s:\n", current)
			}
			writeFailure(&b, res)
		}
		b.WriteString("\n")
	}

	verdict := "OK"
	if !r.AllPassed() {
		verdict = "FAILED"
	}
	if r.opts.color {
		if r.AllPassed() {
			verdict = text.FgGreen.Sprint(verdict)
		} else {
			verdict = text.FgRed.Sprint(verdict)
		}
	}
	fmt.Fprintf(&b, "Test result: %s. total: %d; passed: %d; failed: %d\n", verdict, r.Len(), r.Passed(), r.Failed())

	_, err := io.WriteString(w, b.String())
	return err
}

const failureWidth = 40

func writeFailure(b *strings.Builder, res *types.TestResult) {
	b.WriteString("\n" + ui.SectionHeader(res.Test.Function, failureWidth))

	line := func(format string, args ...any) {
		b.WriteString(ui.SectionLine(fmt.Sprintf(format, args...)))
	}

	out := res.Outcome
	line("%s: %s", out.Status, out.Describe())
	if len(res.Test.Args) > 0 {
		line("arguments: %s", types.FormatArgs(res.Test.Args))
	}
	if out.Location != nil {
		line("at %s", out.Location)
	}
	if d := out.Divergence; d != nil {
		for _, o := range []types.Outcome{d.Primary, d.Secondary} {
			line("%s: %s: %s", o.Engine, o.Status, o.Describe())
			if o.Location != nil {
				line("  at %s", o.Location)
			}
		}
	}
	if res.Snapshot != nil {
		line("")
		line("state at failure:")
		for _, l := range strings.Split(res.Snapshot.String(), "\n") {
			line("  %s", l)
		}
	}
	b.WriteString(ui.SectionFooter(failureWidth))
}

// Helper function to format duration to milliseconds with 3 decimal places
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
}
