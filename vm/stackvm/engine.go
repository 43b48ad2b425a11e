// Package stackvm is the primary execution engine: a classic operand-stack
// interpreter with an explicit call-frame stack.
package stackvm

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/ledger"
	"github.com/ethereum-optimism/infra/op-unittest/vm"
)

// Name identifies this engine in reports
const Name = "stackvm"

var _ vm.Engine = (*Engine)(nil)

// Engine interprets verified bytecode. It keeps no per-execution state and is
// safe for concurrent use.
type Engine struct {
	prog *bytecode.Program
}

// New creates an engine over a compiled program
func New(prog *bytecode.Program) *Engine {
	return &Engine{prog: prog}
}

func (e *Engine) Name() string {
	return Name
}

type frame struct {
	module *bytecode.Module
	fn     *bytecode.Function
	ref    bytecode.FunctionRef
	pc     int
	locals []uint256.Int
}

// Run implements vm.Engine
func (e *Engine) Run(_ context.Context, req vm.Request) vm.Result {
	entry := vm.Location{Function: req.Function}
	mod, fn, ok := e.prog.Resolve(req.Function)
	if !ok {
		return vm.Fault(entry, 0, vm.ErrUnknownFunction)
	}
	if len(req.Args) != fn.Params {
		return vm.Fault(entry, 0, vm.ErrArgumentCount)
	}

	in := &interpreter{
		prog:  e.prog,
		state: req.State,
		meter: vm.NewMeter(req.StepBound),
	}
	in.pushFrame(mod, fn, req.Function, req.Args)
	return in.run()
}

type interpreter struct {
	prog   *bytecode.Program
	state  *ledger.State
	meter  *vm.Meter
	stack  []uint256.Int
	frames []*frame
}

func (in *interpreter) pushFrame(mod *bytecode.Module, fn *bytecode.Function, ref bytecode.FunctionRef, args []uint256.Int) {
	f := &frame{
		module: mod,
		fn:     fn,
		ref:    ref,
		locals: make([]uint256.Int, fn.Locals),
	}
	copy(f.locals, args)
	in.frames = append(in.frames, f)
}

func (in *interpreter) push(v uint256.Int) {
	in.stack = append(in.stack, v)
}

func (in *interpreter) pop() uint256.Int {
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return v
}

func (in *interpreter) run() vm.Result {
	for {
		f := in.frames[len(in.frames)-1]
		loc := vm.Location{Function: f.ref, PC: f.pc}
		if !in.meter.Step() {
			return vm.Result{Kind: vm.BoundExceeded, Steps: in.meter.Steps(), Location: loc}
		}

		instr := &f.fn.Code[f.pc]
		f.pc++

		switch op := instr.Op; op {
		case bytecode.OpNop:
		case bytecode.OpPush:
			in.push(instr.Word)
		case bytecode.OpPop:
			in.pop()
		case bytecode.OpDup:
			in.push(in.stack[len(in.stack)-1])
		case bytecode.OpSwap:
			n := len(in.stack)
			in.stack[n-1], in.stack[n-2] = in.stack[n-2], in.stack[n-1]
		case bytecode.OpCopyLoc:
			in.push(f.locals[instr.Index])
		case bytecode.OpStLoc:
			f.locals[instr.Index] = in.pop()
		case bytecode.OpNot:
			top := &in.stack[len(in.stack)-1]
			*top = vm.Bool(!vm.Truthy(top))

		case bytecode.OpBranch:
			f.pc = instr.Index
		case bytecode.OpBrTrue:
			if v := in.pop(); vm.Truthy(&v) {
				f.pc = instr.Index
			}
		case bytecode.OpBrFalse:
			if v := in.pop(); !vm.Truthy(&v) {
				f.pc = instr.Index
			}

		case bytecode.OpCall:
			if len(in.frames) >= vm.MaxCallDepth {
				return vm.Fault(loc, in.meter.Steps(), vm.ErrCallDepth)
			}
			mod, fn, ok := in.prog.Resolve(instr.Callee)
			if !ok {
				return vm.Fault(loc, in.meter.Steps(), vm.ErrUnknownFunction)
			}
			argStart := len(in.stack) - fn.Params
			args := in.stack[argStart:]
			in.pushFrame(mod, fn, instr.Callee, args)
			in.stack = in.stack[:argStart]

		case bytecode.OpRet:
			if len(in.frames) == 1 {
				returns := make([]uint256.Int, f.fn.Returns)
				copy(returns, in.stack[len(in.stack)-f.fn.Returns:])
				return vm.Result{Kind: vm.Completed, Returns: returns, Steps: in.meter.Steps()}
			}
			// Return values are already on top of the caller's operand stack.
			in.frames = in.frames[:len(in.frames)-1]

		case bytecode.OpAbort:
			v := in.pop()
			return in.abort(loc, &v)
		case bytecode.OpAssert:
			code := in.pop()
			if cond := in.pop(); !vm.Truthy(&cond) {
				return in.abort(loc, &code)
			}

		case bytecode.OpExists:
			in.push(vm.Bool(in.state.Exists(f.module.StorageKey(instr.Name))))
		case bytecode.OpLoad:
			v, ok := in.state.Get(f.module.StorageKey(instr.Name))
			if !ok {
				return vm.Fault(loc, in.meter.Steps(), vm.ErrMissingResource)
			}
			in.push(v)
		case bytecode.OpStore:
			in.state.Set(f.module.StorageKey(instr.Name), in.pop())
		case bytecode.OpDelete:
			if !in.state.Delete(f.module.StorageKey(instr.Name)) {
				return vm.Fault(loc, in.meter.Steps(), vm.ErrMissingResource)
			}

		default:
			b := in.pop()
			a := in.pop()
			z, err := vm.Binary(op, &a, &b)
			if err != nil {
				return vm.Fault(loc, in.meter.Steps(), err)
			}
			in.push(z)
		}
	}
}

func (in *interpreter) abort(loc vm.Location, v *uint256.Int) vm.Result {
	code, err := vm.AbortCode(v)
	if err != nil {
		return vm.Fault(loc, in.meter.Steps(), err)
	}
	return vm.Result{Kind: vm.Aborted, AbortCode: code, Steps: in.meter.Steps(), Location: loc}
}
