package bytecode

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// AssemblyError reports a problem at a specific line of assembly text
type AssemblyError struct {
	Line int
	Msg  string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ParseWord parses a decimal or 0x-prefixed hex word
func ParseWord(s string) (uint256.Int, error) {
	base := 10
	digits := s
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		base = 16
		digits = rest
	}
	if digits == "" {
		return uint256.Int{}, fmt.Errorf("invalid word %q", s)
	}
	b, ok := new(big.Int).SetString(digits, base)
	if !ok || b.Sign() < 0 {
		return uint256.Int{}, fmt.Errorf("invalid word %q", s)
	}
	w, overflow := uint256.FromBig(b)
	if overflow {
		return uint256.Int{}, fmt.Errorf("word %q does not fit in 256 bits", s)
	}
	return *w, nil
}

// Assemble turns assembly text into instructions. Labels are resolved to
// instruction indices; call targets are kept as written and resolved later
// against the program they are linked into.
func Assemble(src string) ([]Instruction, error) {
	type pendingLabel struct {
		pc    int
		line  int
		label string
	}

	var (
		code    []Instruction
		labels  = make(map[string]int)
		pending []pendingLabel
	)

	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := stripComment(raw)
		if line == "" {
			continue
		}

		if label, ok := strings.CutSuffix(line, ":"); ok {
			label = strings.TrimSpace(label)
			if !isIdentifier(label) {
				return nil, &AssemblyError{Line: lineNo, Msg: fmt.Sprintf("invalid label %q", label)}
			}
			if _, dup := labels[label]; dup {
				return nil, &AssemblyError{Line: lineNo, Msg: fmt.Sprintf("label %q defined more than once", label)}
			}
			labels[label] = len(code)
			continue
		}

		fields := strings.Fields(line)
		op, ok := opcodesByName[fields[0]]
		if !ok {
			return nil, &AssemblyError{Line: lineNo, Msg: fmt.Sprintf("unknown instruction %q", fields[0])}
		}

		kind := op.operand()
		switch {
		case kind == operandNone && len(fields) != 1:
			return nil, &AssemblyError{Line: lineNo, Msg: fmt.Sprintf("%s takes no operand", op)}
		case kind != operandNone && len(fields) != 2:
			return nil, &AssemblyError{Line: lineNo, Msg: fmt.Sprintf("%s takes exactly one operand", op)}
		}

		in := Instruction{Op: op}
		switch kind {
		case operandWord:
			w, err := ParseWord(fields[1])
			if err != nil {
				return nil, &AssemblyError{Line: lineNo, Msg: err.Error()}
			}
			in.Word = w
		case operandIndex:
			idx, err := strconv.Atoi(fields[1])
			if err != nil || idx < 0 {
				return nil, &AssemblyError{Line: lineNo, Msg: fmt.Sprintf("invalid local index %q", fields[1])}
			}
			in.Index = idx
		case operandLabel:
			pending = append(pending, pendingLabel{pc: len(code), line: lineNo, label: fields[1]})
		case operandName:
			in.Name = fields[1]
		}
		code = append(code, in)
	}

	for _, p := range pending {
		target, ok := labels[p.label]
		if !ok {
			return nil, &AssemblyError{Line: p.line, Msg: fmt.Sprintf("undefined label %q", p.label)}
		}
		code[p.pc].Index = target
	}

	return code, nil
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx != -1 {
		line = line[:idx]
	}
	if idx := strings.Index(line, "//"); idx != -1 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
