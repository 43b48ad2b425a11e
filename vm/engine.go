// Package vm defines the contract between the test runner and the execution
// engines, plus the word semantics every engine shares.
//
// An engine runs one function against a caller-owned ledger state under a
// step bound. It never panics on bad programs: every failure mode is reported
// through Result.
package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/ledger"
)

// MaxCallDepth bounds the number of nested call frames
const MaxCallDepth = 1024

var (
	ErrArithmetic      = errors.New("arithmetic overflow")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrMissingResource = errors.New("missing resource")
	ErrAbortCodeRange  = errors.New("abort code does not fit in 64 bits")
	ErrCallDepth       = errors.New("call depth exceeded")
	ErrArgumentCount   = errors.New("argument count mismatch")
	ErrUnknownFunction = errors.New("unknown function")
)

// ResultKind classifies how an execution ended
type ResultKind int

const (
	Completed ResultKind = iota
	Aborted
	RuntimeError
	BoundExceeded
)

func (k ResultKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case RuntimeError:
		return "runtime error"
	case BoundExceeded:
		return "bound exceeded"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Location points at an instruction
type Location struct {
	Function bytecode.FunctionRef
	PC       int
}

func (l Location) String() string {
	return fmt.Sprintf("%s (pc %d)", l.Function, l.PC)
}

// ExecutionError is a runtime error raised at a specific instruction
type ExecutionError struct {
	Location Location
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%v at %s", e.Err, e.Location)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Request describes one engine invocation
type Request struct {
	Function  bytecode.FunctionRef
	Args      []uint256.Int
	State     *ledger.State
	StepBound uint64
}

// Result is what an engine reports back. State changes are applied to
// Request.State in place.
type Result struct {
	Kind      ResultKind
	AbortCode uint64
	Err       error
	Returns   []uint256.Int
	Steps     uint64
	// Location is where the execution stopped for anything but Completed.
	Location Location
}

// Engine executes functions of a compiled program
type Engine interface {
	Name() string
	Run(ctx context.Context, req Request) Result
}

// Fault builds a RuntimeError result
func Fault(loc Location, steps uint64, err error) Result {
	return Result{
		Kind:     RuntimeError,
		Err:      &ExecutionError{Location: loc, Err: err},
		Steps:    steps,
		Location: loc,
	}
}

// Meter counts executed instructions against a bound
type Meter struct {
	steps uint64
	bound uint64
}

// NewMeter creates a meter allowing at most bound steps
func NewMeter(bound uint64) *Meter {
	return &Meter{bound: bound}
}

// Step charges one instruction. It returns false, without charging, once the
// bound has been reached.
func (m *Meter) Step() bool {
	if m.steps >= m.bound {
		return false
	}
	m.steps++
	return true
}

// Steps returns the number of instructions charged so far
func (m *Meter) Steps() uint64 {
	return m.steps
}
