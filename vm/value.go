package vm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
)

var (
	wordTrue  = *uint256.NewInt(1)
	wordFalse = uint256.Int{}
)

// Bool converts a Go bool into a word
func Bool(b bool) uint256.Int {
	if b {
		return wordTrue
	}
	return wordFalse
}

// Truthy reports whether a word is non-zero
func Truthy(v *uint256.Int) bool {
	return !v.IsZero()
}

// AbortCode converts the word popped by abort into an abort code
func AbortCode(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrAbortCodeRange
	}
	return v.Uint64(), nil
}

// Binary evaluates a two-operand instruction. a is the deeper operand.
func Binary(op bytecode.Opcode, a, b *uint256.Int) (uint256.Int, error) {
	var z uint256.Int
	switch op {
	case bytecode.OpAdd:
		if _, overflow := z.AddOverflow(a, b); overflow {
			return uint256.Int{}, ErrArithmetic
		}
	case bytecode.OpSub:
		if _, underflow := z.SubOverflow(a, b); underflow {
			return uint256.Int{}, ErrArithmetic
		}
	case bytecode.OpMul:
		if _, overflow := z.MulOverflow(a, b); overflow {
			return uint256.Int{}, ErrArithmetic
		}
	case bytecode.OpDiv:
		if b.IsZero() {
			return uint256.Int{}, ErrDivisionByZero
		}
		z.Div(a, b)
	case bytecode.OpMod:
		if b.IsZero() {
			return uint256.Int{}, ErrDivisionByZero
		}
		z.Mod(a, b)
	case bytecode.OpLt:
		z = Bool(a.Lt(b))
	case bytecode.OpLe:
		z = Bool(!a.Gt(b))
	case bytecode.OpGt:
		z = Bool(a.Gt(b))
	case bytecode.OpGe:
		z = Bool(!a.Lt(b))
	case bytecode.OpEq:
		z = Bool(a.Eq(b))
	case bytecode.OpNeq:
		z = Bool(!a.Eq(b))
	case bytecode.OpAnd:
		z = Bool(Truthy(a) && Truthy(b))
	case bytecode.OpOr:
		z = Bool(Truthy(a) || Truthy(b))
	default:
		return uint256.Int{}, fmt.Errorf("%s is not a binary instruction", op)
	}
	return z, nil
}
