package types

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/ledger"
)

// ErrMissingModule is returned when a test references a module that is not
// part of the compiled program
var ErrMissingModule = errors.New("test references a module that was not compiled")

// ErrDuplicateTest is returned when two tests of a plan target the same function
var ErrDuplicateTest = errors.New("function is listed as a test more than once")

// TestPlan is the immutable input of a run: the discovered tests in
// declaration order, the program they execute against and the genesis
// storage every execution starts from.
type TestPlan struct {
	Tests   []*TestCase
	Program *bytecode.Program
	Genesis *ledger.State
	// Files maps source paths to their contents for error reporting
	Files map[string]string
}

// NewTestPlan builds a plan, deriving the genesis storage from the program
func NewTestPlan(prog *bytecode.Program, tests []*TestCase, files map[string]string) *TestPlan {
	return &TestPlan{
		Tests:   tests,
		Program: prog,
		Genesis: ledger.Genesis(prog.Modules()),
		Files:   files,
	}
}

// Validate checks that every test resolves to a function it can be called
// with and that no function is listed twice
func (p *TestPlan) Validate() error {
	if p.Program == nil {
		return errors.New("test plan has no compiled program")
	}
	if p.Genesis == nil {
		return errors.New("test plan has no genesis state")
	}
	seen := make(map[bytecode.FunctionRef]struct{}, len(p.Tests))
	for _, tc := range p.Tests {
		if _, dup := seen[tc.Ref()]; dup {
			return fmt.Errorf("%s: %w", tc.Ref(), ErrDuplicateTest)
		}
		seen[tc.Ref()] = struct{}{}
		if _, ok := p.Program.Module(tc.Module); !ok {
			return fmt.Errorf("%s: %w: %s", tc.QualifiedName(), ErrMissingModule, tc.Module)
		}
		_, fn, ok := p.Program.Resolve(tc.Ref())
		if !ok {
			return fmt.Errorf("%s: function %s not found", tc.QualifiedName(), tc.Ref())
		}
		if fn.Params != len(tc.Args) {
			return fmt.Errorf("%s: function takes %d parameters, test supplies %d arguments", tc.QualifiedName(), fn.Params, len(tc.Args))
		}
	}
	return nil
}
