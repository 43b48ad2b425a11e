// Package stackless is the secondary execution engine used to cross-check the
// primary one. Functions are translated ahead of time from stack bytecode into
// a register form, where the operand stack slot at height h becomes register
// locals+h, and then interpreted recursively without an operand stack.
package stackless

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/ledger"
	"github.com/ethereum-optimism/infra/op-unittest/vm"
)

// Name identifies this engine in reports
const Name = "stackless"

var _ vm.Engine = (*Engine)(nil)

// Engine runs translated functions. Translation happens once in New; the
// translated code is read-only afterwards so the engine is safe for
// concurrent use.
type Engine struct {
	funcs map[bytecode.FunctionRef]*function
}

// New translates every function of a verified program
func New(prog *bytecode.Program) (*Engine, error) {
	e := &Engine{funcs: make(map[bytecode.FunctionRef]*function)}
	for _, m := range prog.Modules() {
		for _, name := range m.FunctionNames() {
			ref := bytecode.FunctionRef{Module: m.ID, Function: name}
			f, err := translate(prog, ref, m, m.Functions[name])
			if err != nil {
				return nil, err
			}
			e.funcs[ref] = f
		}
	}
	// Link call sites once every function has been translated.
	for _, f := range e.funcs {
		for i := range f.code {
			in := &f.code[i]
			if in.op != bytecode.OpCall {
				continue
			}
			callee, ok := e.funcs[in.calleeRef]
			if !ok {
				return nil, fmt.Errorf("%s: call to unknown function %s", f.ref, in.calleeRef)
			}
			in.callee = callee
		}
	}
	return e, nil
}

func (e *Engine) Name() string {
	return Name
}

// Run implements vm.Engine
func (e *Engine) Run(_ context.Context, req vm.Request) vm.Result {
	entry := vm.Location{Function: req.Function}
	f, ok := e.funcs[req.Function]
	if !ok {
		return vm.Fault(entry, 0, vm.ErrUnknownFunction)
	}
	if len(req.Args) != f.params {
		return vm.Fault(entry, 0, vm.ErrArgumentCount)
	}

	x := &execution{state: req.State, meter: vm.NewMeter(req.StepBound)}
	returns, stop := x.call(f, req.Args, 1)
	if stop != nil {
		return *stop
	}
	return vm.Result{Kind: vm.Completed, Returns: returns, Steps: x.meter.Steps()}
}

type execution struct {
	state *ledger.State
	meter *vm.Meter
}

// call runs f to completion. A non-nil result means execution stopped
// (abort, fault or bound) and must unwind all the way out.
func (x *execution) call(f *function, args []uint256.Int, depth int) ([]uint256.Int, *vm.Result) {
	regs := make([]uint256.Int, f.registers)
	copy(regs, args)

	pc := 0
	for {
		loc := vm.Location{Function: f.ref, PC: pc}
		if !x.meter.Step() {
			return nil, &vm.Result{Kind: vm.BoundExceeded, Steps: x.meter.Steps(), Location: loc}
		}

		in := &f.code[pc]
		pc++

		switch in.op {
		case bytecode.OpNop, bytecode.OpPop:
		case bytecode.OpPush:
			regs[in.dst] = in.word
		case bytecode.OpDup, bytecode.OpCopyLoc, bytecode.OpStLoc:
			regs[in.dst] = regs[in.src1]
		case bytecode.OpSwap:
			regs[in.src1], regs[in.src2] = regs[in.src2], regs[in.src1]
		case bytecode.OpNot:
			regs[in.dst] = vm.Bool(!vm.Truthy(&regs[in.src1]))

		case bytecode.OpBranch:
			pc = in.target
		case bytecode.OpBrTrue:
			if vm.Truthy(&regs[in.src1]) {
				pc = in.target
			}
		case bytecode.OpBrFalse:
			if !vm.Truthy(&regs[in.src1]) {
				pc = in.target
			}

		case bytecode.OpCall:
			if depth >= vm.MaxCallDepth {
				return nil, x.fault(loc, vm.ErrCallDepth)
			}
			returns, stop := x.call(in.callee, regs[in.src1:in.src1+in.argc], depth+1)
			if stop != nil {
				return nil, stop
			}
			copy(regs[in.src1:], returns)

		case bytecode.OpRet:
			returns := make([]uint256.Int, in.retc)
			copy(returns, regs[in.src1:in.src1+in.retc])
			return returns, nil

		case bytecode.OpAbort:
			return nil, x.abort(loc, &regs[in.src1])
		case bytecode.OpAssert:
			if !vm.Truthy(&regs[in.src1]) {
				return nil, x.abort(loc, &regs[in.src2])
			}

		case bytecode.OpExists:
			regs[in.dst] = vm.Bool(x.state.Exists(in.key))
		case bytecode.OpLoad:
			v, ok := x.state.Get(in.key)
			if !ok {
				return nil, x.fault(loc, vm.ErrMissingResource)
			}
			regs[in.dst] = v
		case bytecode.OpStore:
			x.state.Set(in.key, regs[in.src1])
		case bytecode.OpDelete:
			if !x.state.Delete(in.key) {
				return nil, x.fault(loc, vm.ErrMissingResource)
			}

		case opUnreachable:
			return nil, x.fault(loc, errUnreachable)

		default:
			z, err := vm.Binary(in.op, &regs[in.src1], &regs[in.src2])
			if err != nil {
				return nil, x.fault(loc, err)
			}
			regs[in.dst] = z
		}
	}
}

func (x *execution) fault(loc vm.Location, err error) *vm.Result {
	r := vm.Fault(loc, x.meter.Steps(), err)
	return &r
}

func (x *execution) abort(loc vm.Location, v *uint256.Int) *vm.Result {
	code, err := vm.AbortCode(v)
	if err != nil {
		return x.fault(loc, err)
	}
	return &vm.Result{Kind: vm.Aborted, AbortCode: code, Steps: x.meter.Steps(), Location: loc}
}
