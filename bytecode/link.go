package bytecode

import (
	"errors"
	"fmt"
	"strings"
)

// ResolveCallTarget interprets a call operand written inside module from.
// Accepted forms are fn, module::fn and 0xaddr::module::fn.
func ResolveCallTarget(from ModuleID, target string) (FunctionRef, error) {
	parts := strings.Split(target, "::")
	switch len(parts) {
	case 1:
		return FunctionRef{Module: from, Function: parts[0]}, nil
	case 2:
		return FunctionRef{Module: ModuleID{Address: from.Address, Name: parts[0]}, Function: parts[1]}, nil
	case 3:
		addr, err := ParseAddress(parts[0])
		if err != nil {
			return FunctionRef{}, err
		}
		return FunctionRef{Module: ModuleID{Address: addr, Name: parts[1]}, Function: parts[2]}, nil
	default:
		return FunctionRef{}, fmt.Errorf("malformed call target %q", target)
	}
}

// Link resolves every call site in the program and verifies every function.
// All failures are reported, joined into a single error.
func Link(prog *Program) error {
	var errs []error
	for _, m := range prog.Modules() {
		for _, name := range m.FunctionNames() {
			fn := m.Functions[name]
			if err := linkFunction(prog, m, fn); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := Verify(prog, m, fn); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func linkFunction(prog *Program, m *Module, fn *Function) error {
	for pc := range fn.Code {
		in := &fn.Code[pc]
		if in.Op != OpCall {
			continue
		}
		ref, err := ResolveCallTarget(m.ID, in.Name)
		if err != nil {
			return &VerifyError{Function: m.ID.String() + "::" + fn.Name, PC: pc, Msg: err.Error()}
		}
		if _, _, ok := prog.Resolve(ref); !ok {
			return &VerifyError{Function: m.ID.String() + "::" + fn.Name, PC: pc, Msg: fmt.Sprintf("call to unknown function %s", ref)}
		}
		in.Callee = ref
	}
	return nil
}
