// Package vmtest holds a conformance suite that every vm.Engine must pass,
// plus helpers to build small programs from assembly text in tests.
package vmtest

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/ledger"
	"github.com/ethereum-optimism/infra/op-unittest/vm"
)

// Address is the account every fixture module is published under
var Address = common.HexToAddress("0x1")

// Func describes a function in assembly form
type Func struct {
	Name    string
	Params  int
	Locals  int
	Returns int
	Code    string
}

// Module describes a fixture module
type Module struct {
	Name    string
	Storage map[string]uint64
	Funcs   []Func
}

// Build assembles, links and verifies the given modules
func Build(t testing.TB, modules ...Module) *bytecode.Program {
	t.Helper()
	prog := bytecode.NewProgram()
	for _, mod := range modules {
		m := bytecode.NewModule(bytecode.ModuleID{Address: Address, Name: mod.Name})
		for k, v := range mod.Storage {
			m.Storage[k] = *uint256.NewInt(v)
		}
		for _, f := range mod.Funcs {
			code, err := bytecode.Assemble(f.Code)
			require.NoError(t, err, "assembling %s::%s", mod.Name, f.Name)
			locals := max(f.Locals, f.Params)
			m.Functions[f.Name] = &bytecode.Function{
				Name:    f.Name,
				Params:  f.Params,
				Locals:  locals,
				Returns: f.Returns,
				Code:    code,
			}
		}
		require.NoError(t, prog.Add(m))
	}
	require.NoError(t, bytecode.Link(prog))
	return prog
}

// Ref builds a reference to a function of a fixture module
func Ref(module, fn string) bytecode.FunctionRef {
	return bytecode.FunctionRef{Module: bytecode.ModuleID{Address: Address, Name: module}, Function: fn}
}

// Words converts integers to words
func Words(vs ...uint64) []uint256.Int {
	out := make([]uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = *uint256.NewInt(v)
	}
	return out
}

// Case is one conformance scenario run against the fixture program
type Case struct {
	Name      string
	Module    string // defaults to "main"
	Entry     string
	Args      []uint64
	Bound     uint64 // defaults to 10_000
	Want      vm.ResultKind
	WantAbort uint64
	WantErr   error
	WantSteps uint64 // checked when non-zero
	Returns   []uint64
	State     map[string]uint64 // expected values of main-module keys after the run
	Absent    []string          // main-module keys expected to be missing after the run
}

const maxWord = "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

// Fixture is the program every conformance case runs against
func Fixture(t testing.TB) *bytecode.Program {
	return Build(t,
		Module{
			Name:    "main",
			Storage: map[string]uint64{"counter": 5},
			Funcs: []Func{
				{Name: "ret_const", Returns: 1, Code: "push 42\nret"},
				{Name: "add_args", Params: 2, Returns: 1, Code: "copy_loc 0\ncopy_loc 1\nadd\nret"},
				{Name: "overflow", Returns: 1, Code: "push " + maxWord + "\npush 1\nadd\nret"},
				{Name: "underflow", Returns: 1, Code: "push 1\npush 2\nsub\nret"},
				{Name: "div_zero", Returns: 1, Code: "push 1\npush 0\ndiv\nret"},
				{Name: "mod", Returns: 1, Code: "push 10\npush 3\nmod\nret"},
				{Name: "abort_7", Code: "push 7\nabort"},
				{Name: "abort_big", Code: "push 0x10000000000000000\nabort"},
				{Name: "assert_ok", Code: "push 1\npush 3\nassert\nret"},
				{Name: "assert_fail", Code: "push 0\npush 3\nassert\nret"},
				{Name: "countdown", Params: 1, Code: `
loop:
	copy_loc 0
	br_false done
	copy_loc 0
	push 1
	sub
	st_loc 0
	branch loop
done:
	ret`},
				{Name: "spin", Code: "top:\nbranch top"},
				{Name: "incr_counter", Returns: 1, Code: "load counter\npush 1\nadd\nstore counter\nload counter\nret"},
				{Name: "delete_missing", Code: "delete missing\nret"},
				{Name: "delete_counter", Code: "delete counter\nret"},
				{Name: "load_missing", Returns: 1, Code: "load missing\nret"},
				{Name: "exists_check", Returns: 2, Code: "exists counter\nexists missing\nret"},
				{Name: "call_helper", Returns: 1, Code: "push 2\npush 3\ncall helper::mul\nret"},
				{Name: "recurse", Code: "call recurse\nret"},
				{Name: "swap_sub", Returns: 1, Code: "push 3\npush 10\nswap\nsub\nret"},
				{Name: "dup_mul", Returns: 1, Code: "push 5\ndup\nmul\nret"},
				{Name: "logic", Returns: 1, Code: "push 0\nnot\npush 1\nand\npush 0\nor\nret"},
				{Name: "compare", Returns: 6, Code: `
push 3
push 4
lt
push 4
push 4
le
push 5
push 4
gt
push 4
push 5
ge
push 7
push 7
eq
push 7
push 7
neq
ret`},
				{Name: "store_then_abort", Code: "push 9\nstore fresh\npush 1\nabort"},
				{Name: "pop_nop", Returns: 1, Code: "push 1\npush 2\npop\nnop\nret"},
				{Name: "helper_storage", Returns: 1, Code: "call helper::bump\nret"},
			},
		},
		Module{
			Name:    "helper",
			Storage: map[string]uint64{"counter": 100},
			Funcs: []Func{
				{Name: "mul", Params: 2, Returns: 1, Code: "copy_loc 0\ncopy_loc 1\nmul\nret"},
				{Name: "bump", Returns: 1, Code: "load counter\npush 1\nadd\ndup\nstore counter\nret"},
			},
		},
	)
}

// Cases returns the conformance scenarios
func Cases() []Case {
	return []Case{
		{Name: "constant", Entry: "ret_const", Want: vm.Completed, Returns: []uint64{42}, WantSteps: 2},
		{Name: "arguments", Entry: "add_args", Args: []uint64{2, 3}, Want: vm.Completed, Returns: []uint64{5}, WantSteps: 4},
		{Name: "exact bound completes", Entry: "add_args", Args: []uint64{2, 3}, Bound: 4, Want: vm.Completed, Returns: []uint64{5}, WantSteps: 4},
		{Name: "bound plus one fails", Entry: "add_args", Args: []uint64{2, 3}, Bound: 3, Want: vm.BoundExceeded, WantSteps: 3},
		{Name: "wrong argument count", Entry: "add_args", Args: []uint64{2}, Want: vm.RuntimeError, WantErr: vm.ErrArgumentCount},
		{Name: "unknown entry", Entry: "nope", Want: vm.RuntimeError, WantErr: vm.ErrUnknownFunction},
		{Name: "add overflow", Entry: "overflow", Want: vm.RuntimeError, WantErr: vm.ErrArithmetic, WantSteps: 3},
		{Name: "sub underflow", Entry: "underflow", Want: vm.RuntimeError, WantErr: vm.ErrArithmetic},
		{Name: "division by zero", Entry: "div_zero", Want: vm.RuntimeError, WantErr: vm.ErrDivisionByZero},
		{Name: "modulo", Entry: "mod", Want: vm.Completed, Returns: []uint64{1}},
		{Name: "abort", Entry: "abort_7", Want: vm.Aborted, WantAbort: 7, WantSteps: 2},
		{Name: "abort code too large", Entry: "abort_big", Want: vm.RuntimeError, WantErr: vm.ErrAbortCodeRange},
		{Name: "assert holds", Entry: "assert_ok", Want: vm.Completed, WantSteps: 4},
		{Name: "assert fails", Entry: "assert_fail", Want: vm.Aborted, WantAbort: 3, WantSteps: 3},
		{Name: "loop", Entry: "countdown", Args: []uint64{10}, Want: vm.Completed, WantSteps: 7*10 + 3},
		{Name: "loop over bound", Entry: "countdown", Args: []uint64{10}, Bound: 7 * 10, Want: vm.BoundExceeded, WantSteps: 70},
		{Name: "infinite loop", Entry: "spin", Bound: 5000, Want: vm.BoundExceeded, WantSteps: 5000},
		{Name: "storage update", Entry: "incr_counter", Want: vm.Completed, Returns: []uint64{6}, State: map[string]uint64{"counter": 6}, WantSteps: 6},
		{Name: "delete missing", Entry: "delete_missing", Want: vm.RuntimeError, WantErr: vm.ErrMissingResource},
		{Name: "delete existing", Entry: "delete_counter", Want: vm.Completed, Absent: []string{"counter"}},
		{Name: "load missing", Entry: "load_missing", Want: vm.RuntimeError, WantErr: vm.ErrMissingResource},
		{Name: "exists", Entry: "exists_check", Want: vm.Completed, Returns: []uint64{1, 0}},
		{Name: "cross module call", Entry: "call_helper", Want: vm.Completed, Returns: []uint64{6}, WantSteps: 8},
		{Name: "call depth", Entry: "recurse", Bound: 5000, Want: vm.RuntimeError, WantErr: vm.ErrCallDepth, WantSteps: vm.MaxCallDepth},
		{Name: "swap", Entry: "swap_sub", Want: vm.Completed, Returns: []uint64{7}},
		{Name: "dup", Entry: "dup_mul", Want: vm.Completed, Returns: []uint64{25}},
		{Name: "logic", Entry: "logic", Want: vm.Completed, Returns: []uint64{1}},
		{Name: "comparisons", Entry: "compare", Want: vm.Completed, Returns: []uint64{1, 1, 1, 0, 1, 0}},
		{Name: "writes before abort are kept", Entry: "store_then_abort", Want: vm.Aborted, WantAbort: 1, State: map[string]uint64{"fresh": 9, "counter": 5}},
		{Name: "pop and nop", Entry: "pop_nop", Want: vm.Completed, Returns: []uint64{1}, WantSteps: 5},
		{Name: "callee storage is scoped to its module", Entry: "helper_storage", Want: vm.Completed, Returns: []uint64{101}, State: map[string]uint64{"counter": 5}},
	}
}

// Run executes every conformance case against the engine built by newEngine.
// Each case gets a fresh genesis state.
func Run(t *testing.T, newEngine func(t *testing.T, prog *bytecode.Program) vm.Engine) {
	prog := Fixture(t)
	engine := newEngine(t, prog)
	genesis := ledger.Genesis(prog.Modules())
	main, ok := prog.Module(bytecode.ModuleID{Address: Address, Name: "main"})
	require.True(t, ok)

	for _, tc := range Cases() {
		t.Run(tc.Name, func(t *testing.T) {
			module := tc.Module
			if module == "" {
				module = "main"
			}
			bound := tc.Bound
			if bound == 0 {
				bound = 10_000
			}
			state := genesis.Clone()

			res := engine.Run(context.Background(), vm.Request{
				Function:  Ref(module, tc.Entry),
				Args:      Words(tc.Args...),
				State:     state,
				StepBound: bound,
			})

			require.Equal(t, tc.Want, res.Kind, "result: %+v", res)
			switch tc.Want {
			case vm.Aborted:
				assert.Equal(t, tc.WantAbort, res.AbortCode)
			case vm.RuntimeError:
				require.Error(t, res.Err)
				if tc.WantErr != nil {
					assert.ErrorIs(t, res.Err, tc.WantErr)
				}
				var execErr *vm.ExecutionError
				assert.ErrorAs(t, res.Err, &execErr)
			case vm.Completed:
				assert.Equal(t, Words(tc.Returns...), nonNil(res.Returns))
			}
			if tc.WantSteps != 0 {
				assert.Equal(t, tc.WantSteps, res.Steps)
			}
			for key, want := range tc.State {
				got, ok := state.Get(main.StorageKey(key))
				if assert.True(t, ok, "key %s missing", key) {
					assert.Equal(t, want, got.Uint64(), "key %s", key)
				}
			}
			for _, key := range tc.Absent {
				assert.False(t, state.Exists(main.StorageKey(key)), "key %s should be absent", key)
			}
		})
	}

	t.Run("genesis untouched", func(t *testing.T) {
		v, ok := genesis.Get(main.StorageKey("counter"))
		require.True(t, ok)
		assert.Equal(t, uint64(5), v.Uint64())
		assert.False(t, genesis.Exists(main.StorageKey("fresh")))
	})
}

func nonNil(ws []uint256.Int) []uint256.Int {
	if ws == nil {
		return []uint256.Int{}
	}
	return ws
}
