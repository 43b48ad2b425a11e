package compiler

import (
	"fmt"
	"strings"
)

// Diagnostic is a single compilation problem
type Diagnostic struct {
	File     string
	Module   string
	Function string
	// Line is relative to the function's code block, 0 when unknown
	Line int
	Msg  string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		b.WriteString(": ")
	}
	switch {
	case d.Module != "" && d.Function != "":
		fmt.Fprintf(&b, "%s::%s: ", d.Module, d.Function)
	case d.Module != "":
		fmt.Fprintf(&b, "%s: ", d.Module)
	}
	if d.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", d.Line)
	}
	b.WriteString(d.Msg)
	return b.String()
}

// Errors collects every diagnostic of a failed compilation
type Errors []Diagnostic

func (e Errors) Error() string {
	lines := make([]string, len(e))
	for i, d := range e {
		lines[i] = d.String()
	}
	return fmt.Sprintf("compilation failed with %d error(s):\n%s", len(e), strings.Join(lines, "\n"))
}
