package bytecode

import (
	"errors"
	"fmt"
)

// ErrEmptyFunction is returned when a function has no instructions
var ErrEmptyFunction = errors.New("function body is empty")

// VerifyError reports a bytecode verification failure
type VerifyError struct {
	Function string
	PC       int
	Msg      string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s at pc %d: %s", e.Function, e.PC, e.Msg)
}

// Verify checks the function's control flow and operand stack discipline
// and records the stack height before every instruction. Call targets must
// already be resolved to functions present in the program.
func Verify(prog *Program, m *Module, fn *Function) error {
	name := m.ID.String() + "::" + fn.Name
	if len(fn.Code) == 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptyFunction)
	}
	if fn.Params < 0 || fn.Returns < 0 {
		return fmt.Errorf("%s: negative parameter or return count", name)
	}
	if fn.Locals < fn.Params {
		return fmt.Errorf("%s: %d locals cannot hold %d parameters", name, fn.Locals, fn.Params)
	}

	fail := func(pc int, format string, args ...any) error {
		return &VerifyError{Function: name, PC: pc, Msg: fmt.Sprintf(format, args...)}
	}

	heights := make([]int, len(fn.Code))
	for i := range heights {
		heights[i] = -1
	}
	heights[0] = 0
	maxHeight := 0
	worklist := []int{0}

	for len(worklist) > 0 {
		pc := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		in := fn.Code[pc]
		h := heights[pc]

		need, delta := 0, 0
		var successors []int
		terminal := false

		switch in.Op {
		case OpNop:
		case OpPush, OpLoad, OpExists:
			delta = 1
		case OpDup:
			need, delta = 1, 1
		case OpCopyLoc:
			if in.Index >= fn.Locals {
				return fail(pc, "local %d out of range (%d locals)", in.Index, fn.Locals)
			}
			delta = 1
		case OpStLoc:
			if in.Index >= fn.Locals {
				return fail(pc, "local %d out of range (%d locals)", in.Index, fn.Locals)
			}
			need, delta = 1, -1
		case OpPop, OpStore:
			need, delta = 1, -1
		case OpSwap:
			need = 2
		case OpNot:
			need = 1
		case OpDelete:
		case OpBranch:
			successors = append(successors, in.Index)
			terminal = true
		case OpBrTrue, OpBrFalse:
			need, delta = 1, -1
			successors = append(successors, in.Index)
		case OpCall:
			_, callee, ok := prog.Resolve(in.Callee)
			if !ok {
				return fail(pc, "call to unknown function %s", in.Callee)
			}
			need, delta = callee.Params, callee.Returns-callee.Params
		case OpRet:
			if h != fn.Returns {
				return fail(pc, "ret with %d values on the stack, function returns %d", h, fn.Returns)
			}
			terminal = true
		case OpAbort:
			need = 1
			terminal = true
		case OpAssert:
			need, delta = 2, -2
		default:
			if !in.Op.IsBinary() {
				return fail(pc, "unknown opcode %s", in.Op)
			}
			need, delta = 2, -1
		}

		if h < need {
			return fail(pc, "%s needs %d operands, stack has %d", in.Op, need, h)
		}
		next := h + delta
		maxHeight = max(maxHeight, h, next)

		if !terminal {
			if pc+1 >= len(fn.Code) {
				return fail(pc, "execution can fall off the end of the function")
			}
			successors = append(successors, pc+1)
		}

		for _, succ := range successors {
			if succ < 0 || succ >= len(fn.Code) {
				return fail(pc, "branch target %d out of range", succ)
			}
			switch heights[succ] {
			case -1:
				heights[succ] = next
				worklist = append(worklist, succ)
			case next:
			default:
				return fail(succ, "inconsistent stack height: %d vs %d", heights[succ], next)
			}
		}
	}

	fn.Heights = heights
	fn.MaxHeight = maxHeight
	return nil
}
