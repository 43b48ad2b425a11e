package bytecode

import "fmt"

// Opcode identifies a single instruction of the bytecode language
type Opcode byte

const (
	OpNop Opcode = iota
	OpPush
	OpPop
	OpDup
	OpSwap
	OpCopyLoc
	OpStLoc

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNeq

	OpAnd
	OpOr
	OpNot

	OpBranch
	OpBrTrue
	OpBrFalse
	OpCall
	OpRet
	OpAbort
	OpAssert

	OpExists
	OpLoad
	OpStore
	OpDelete
)

var opcodeNames = map[Opcode]string{
	OpNop:     "nop",
	OpPush:    "push",
	OpPop:     "pop",
	OpDup:     "dup",
	OpSwap:    "swap",
	OpCopyLoc: "copy_loc",
	OpStLoc:   "st_loc",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpDiv:     "div",
	OpMod:     "mod",
	OpLt:      "lt",
	OpLe:      "le",
	OpGt:      "gt",
	OpGe:      "ge",
	OpEq:      "eq",
	OpNeq:     "neq",
	OpAnd:     "and",
	OpOr:      "or",
	OpNot:     "not",
	OpBranch:  "branch",
	OpBrTrue:  "br_true",
	OpBrFalse: "br_false",
	OpCall:    "call",
	OpRet:     "ret",
	OpAbort:   "abort",
	OpAssert:  "assert",
	OpExists:  "exists",
	OpLoad:    "load",
	OpStore:   "store",
	OpDelete:  "delete",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", byte(op))
}

// IsBinary reports whether the opcode pops two words and pushes one
func (op Opcode) IsBinary() bool {
	return op >= OpAdd && op <= OpOr
}

// IsBranch reports whether the opcode carries a jump target
func (op Opcode) IsBranch() bool {
	return op == OpBranch || op == OpBrTrue || op == OpBrFalse
}

// IsStorage reports whether the opcode addresses global storage by key
func (op Opcode) IsStorage() bool {
	return op >= OpExists && op <= OpDelete
}

// operandKind describes what follows the mnemonic in assembly text
type operandKind int

const (
	operandNone operandKind = iota
	operandWord
	operandIndex
	operandLabel
	operandName
)

func (op Opcode) operand() operandKind {
	switch {
	case op == OpPush:
		return operandWord
	case op == OpCopyLoc || op == OpStLoc:
		return operandIndex
	case op.IsBranch():
		return operandLabel
	case op == OpCall || op.IsStorage():
		return operandName
	default:
		return operandNone
	}
}
