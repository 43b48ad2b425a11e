package stackless

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
)

// opUnreachable replaces instructions the verifier proved unreachable
const opUnreachable bytecode.Opcode = 0xff

var errUnreachable = errors.New("reached code marked unreachable")

type instr struct {
	op         bytecode.Opcode
	dst        int
	src1, src2 int
	word       uint256.Int
	target     int
	key        string
	calleeRef  bytecode.FunctionRef
	callee     *function
	argc, retc int
}

type function struct {
	ref       bytecode.FunctionRef
	params    int
	registers int
	code      []instr
}

func translate(prog *bytecode.Program, ref bytecode.FunctionRef, m *bytecode.Module, fn *bytecode.Function) (*function, error) {
	if len(fn.Heights) != len(fn.Code) {
		return nil, fmt.Errorf("%s: function has not been verified", ref)
	}

	locals := fn.Locals
	slot := func(h int) int { return locals + h }

	f := &function{
		ref:       ref,
		params:    fn.Params,
		registers: locals + fn.MaxHeight,
		code:      make([]instr, len(fn.Code)),
	}

	for pc, src := range fn.Code {
		h := fn.Heights[pc]
		out := instr{op: src.Op}
		if h < 0 {
			out.op = opUnreachable
			f.code[pc] = out
			continue
		}

		switch src.Op {
		case bytecode.OpNop, bytecode.OpPop:
		case bytecode.OpPush:
			out.dst, out.word = slot(h), src.Word
		case bytecode.OpDup:
			out.dst, out.src1 = slot(h), slot(h-1)
		case bytecode.OpSwap:
			out.src1, out.src2 = slot(h-2), slot(h-1)
		case bytecode.OpCopyLoc:
			out.dst, out.src1 = slot(h), src.Index
		case bytecode.OpStLoc:
			out.dst, out.src1 = src.Index, slot(h-1)
		case bytecode.OpNot:
			out.dst, out.src1 = slot(h-1), slot(h-1)
		case bytecode.OpBranch:
			out.target = src.Index
		case bytecode.OpBrTrue, bytecode.OpBrFalse:
			out.src1, out.target = slot(h-1), src.Index
		case bytecode.OpCall:
			_, callee, ok := prog.Resolve(src.Callee)
			if !ok {
				return nil, fmt.Errorf("%s at pc %d: call to unknown function %s", ref, pc, src.Callee)
			}
			// Arguments occupy the top callee.Params slots and are replaced
			// in place by the return values.
			out.calleeRef = src.Callee
			out.src1, out.argc, out.retc = slot(h-callee.Params), callee.Params, callee.Returns
		case bytecode.OpRet:
			out.src1, out.retc = slot(h-fn.Returns), fn.Returns
		case bytecode.OpAbort:
			out.src1 = slot(h - 1)
		case bytecode.OpAssert:
			out.src1, out.src2 = slot(h-2), slot(h-1)
		case bytecode.OpExists, bytecode.OpLoad:
			out.dst, out.key = slot(h), m.StorageKey(src.Name)
		case bytecode.OpStore:
			out.src1, out.key = slot(h-1), m.StorageKey(src.Name)
		case bytecode.OpDelete:
			out.key = m.StorageKey(src.Name)
		default:
			if !src.Op.IsBinary() {
				return nil, fmt.Errorf("%s at pc %d: unsupported opcode %s", ref, pc, src.Op)
			}
			out.dst, out.src1, out.src2 = slot(h-2), slot(h-2), slot(h-1)
		}
		f.code[pc] = out
	}
	return f, nil
}
