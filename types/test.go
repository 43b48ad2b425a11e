package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/ledger"
	"github.com/ethereum-optimism/infra/op-unittest/vm"
)

// TestStatus represents the possible classifications of a test execution
type TestStatus string

const (
	TestStatusPass              TestStatus = "pass"
	TestStatusUnexpectedSuccess TestStatus = "unexpected_success"
	TestStatusWrongAbort        TestStatus = "wrong_abort"
	TestStatusExecutionError    TestStatus = "execution_error"
	TestStatusBoundExceeded     TestStatus = "bound_exceeded"
	TestStatusDivergent         TestStatus = "divergent"
)

// AllStatuses lists every status in reporting order
var AllStatuses = []TestStatus{
	TestStatusPass,
	TestStatusUnexpectedSuccess,
	TestStatusWrongAbort,
	TestStatusExecutionError,
	TestStatusBoundExceeded,
	TestStatusDivergent,
}

// Passed reports whether the status counts as a pass
func (s TestStatus) Passed() bool {
	return s == TestStatusPass
}

// Label is the short tag printed on progress lines
func (s TestStatus) Label() string {
	switch s {
	case TestStatusPass:
		return "PASS"
	case TestStatusBoundExceeded:
		return "TIMEOUT"
	case TestStatusDivergent:
		return "DIVERGE"
	default:
		return "FAIL"
	}
}

// ExpectedFailure declares that a test must abort. A nil AbortCode accepts
// any abort code.
type ExpectedFailure struct {
	AbortCode *uint64
}

func (e *ExpectedFailure) String() string {
	if e.AbortCode == nil {
		return "any abort"
	}
	return fmt.Sprintf("abort code %d", *e.AbortCode)
}

// Matches reports whether an observed abort code satisfies the expectation
func (e *ExpectedFailure) Matches(code uint64) bool {
	return e.AbortCode == nil || *e.AbortCode == code
}

// TestCase is one declared unit test. Test cases are owned by the test plan
// and shared by pointer; they are never modified once the plan is built.
type TestCase struct {
	Module          bytecode.ModuleID
	Function        string
	Args            []uint256.Int
	ExpectedFailure *ExpectedFailure
	// File is the source the test was declared in
	File string
}

// QualifiedName returns <module>::<function>, the name filters match against
func (tc *TestCase) QualifiedName() string {
	return tc.Module.Name + "::" + tc.Function
}

// Ref returns the function the test executes
func (tc *TestCase) Ref() bytecode.FunctionRef {
	return bytecode.FunctionRef{Module: tc.Module, Function: tc.Function}
}

// TestStatistics is collected for every execution, whether or not it is reported
type TestStatistics struct {
	Steps    uint64
	Duration time.Duration
}

// Outcome is the classified result of executing one test
type Outcome struct {
	Status TestStatus
	// Engine names the execution engine that produced the outcome
	Engine string
	// AbortCode is set whenever the execution aborted
	AbortCode *uint64
	// Expected is the expectation the outcome was classified against
	Expected *ExpectedFailure
	// Err is set for execution errors
	Err error
	// Location is where execution stopped for anything but normal completion
	Location *vm.Location
	// Bound is the instruction bound in effect
	Bound uint64
	// Divergence holds both engines' outcomes when Status is TestStatusDivergent
	Divergence *Divergence
}

// Divergence records two engines disagreeing on the same test
type Divergence struct {
	Primary   Outcome
	Secondary Outcome
}

// Equivalent compares two outcomes structurally: same status and, when
// either aborted, the same abort code.
func (o Outcome) Equivalent(other Outcome) bool {
	if o.Status != other.Status {
		return false
	}
	switch {
	case o.AbortCode == nil && other.AbortCode == nil:
		return true
	case o.AbortCode == nil || other.AbortCode == nil:
		return false
	default:
		return *o.AbortCode == *other.AbortCode
	}
}

// Describe explains the outcome in one line
func (o Outcome) Describe() string {
	switch o.Status {
	case TestStatusPass:
		if o.AbortCode != nil {
			return fmt.Sprintf("passed, aborted with code %d", *o.AbortCode)
		}
		return "passed"
	case TestStatusUnexpectedSuccess:
		return fmt.Sprintf("expected %s but the test completed successfully", o.Expected)
	case TestStatusWrongAbort:
		if o.Expected == nil {
			return fmt.Sprintf("aborted with code %d, expected success", *o.AbortCode)
		}
		return fmt.Sprintf("aborted with code %d, expected %s", *o.AbortCode, o.Expected)
	case TestStatusExecutionError:
		return fmt.Sprintf("execution error: %v", o.Err)
	case TestStatusBoundExceeded:
		return fmt.Sprintf("exceeded the instruction bound of %d", o.Bound)
	case TestStatusDivergent:
		if o.Divergence == nil {
			return "engines disagree"
		}
		return fmt.Sprintf("engines disagree: %s: %s; %s: %s",
			o.Divergence.Primary.Engine, o.Divergence.Primary.Describe(),
			o.Divergence.Secondary.Engine, o.Divergence.Secondary.Describe())
	default:
		return string(o.Status)
	}
}

// TestResult is a test's entry in the aggregate results
type TestResult struct {
	Test    *TestCase
	Outcome Outcome
	Stats   TestStatistics
	// Snapshot is the final storage of a failing test, kept only when
	// failure state retention is enabled
	Snapshot ledger.Snapshot
}

// FormatArgs renders test arguments as a comma separated list
func FormatArgs(args []uint256.Int) string {
	parts := make([]string, len(args))
	for i := range args {
		parts[i] = args[i].Dec()
	}
	return strings.Join(parts, ", ")
}
