package bytecode

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// ModuleID names a module published under an account address
type ModuleID struct {
	Address common.Address
	Name    string
}

// String formats the module ID as 0x<short address>::<name>
func (id ModuleID) String() string {
	return ShortAddress(id.Address) + "::" + id.Name
}

// ShortAddress renders an address without leading zeroes (eg. 0x1)
func ShortAddress(addr common.Address) string {
	return hexutil.EncodeBig(new(big.Int).SetBytes(addr.Bytes()))
}

// ParseAddress parses a hex account address such as 0x1 or 0xcafe
func ParseAddress(s string) (common.Address, error) {
	digits, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok || digits == "" {
		return common.Address{}, fmt.Errorf("address %q must be hex with a 0x prefix", s)
	}
	if len(digits) > 2*common.AddressLength {
		return common.Address{}, fmt.Errorf("address %q is longer than %d bytes", s, common.AddressLength)
	}
	for _, c := range digits {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return common.Address{}, fmt.Errorf("address %q contains non-hex character %q", s, c)
		}
	}
	return common.HexToAddress(s), nil
}

// FunctionRef identifies a function across modules
type FunctionRef struct {
	Module   ModuleID
	Function string
}

func (r FunctionRef) String() string {
	return r.Module.String() + "::" + r.Function
}

// Instruction is one decoded bytecode instruction
type Instruction struct {
	Op     Opcode
	Word   uint256.Int // push
	Index  int         // copy_loc/st_loc local, branch target pc
	Name   string      // storage key or call target as written
	Callee FunctionRef // resolved call target
}

func (in Instruction) String() string {
	switch in.Op.operand() {
	case operandWord:
		return fmt.Sprintf("%s %s", in.Op, in.Word.Dec())
	case operandIndex, operandLabel:
		return fmt.Sprintf("%s %d", in.Op, in.Index)
	case operandName:
		if in.Op == OpCall {
			return fmt.Sprintf("%s %s", in.Op, in.Callee)
		}
		return fmt.Sprintf("%s %s", in.Op, in.Name)
	default:
		return in.Op.String()
	}
}

// Function is a compiled function body
type Function struct {
	Name    string
	Params  int
	Locals  int // total local slots, params included
	Returns int
	Code    []Instruction

	// Heights holds the operand stack height before each instruction. It is
	// filled in by Verify.
	Heights []int
	// MaxHeight is the deepest operand stack the function can build.
	MaxHeight int
}

// Module is a compiled module: its functions and the genesis storage it publishes
type Module struct {
	ID        ModuleID
	Functions map[string]*Function
	Storage   map[string]uint256.Int
	Source    string
}

// NewModule creates an empty module
func NewModule(id ModuleID) *Module {
	return &Module{
		ID:        id,
		Functions: make(map[string]*Function),
		Storage:   make(map[string]uint256.Int),
	}
}

// StorageKey scopes a key to the module that owns it
func (m *Module) StorageKey(key string) string {
	return m.ID.String() + "::" + key
}

// Program is the set of compiled modules available to an execution
type Program struct {
	modules map[string]*Module
	order   []string
}

// NewProgram creates an empty program
func NewProgram() *Program {
	return &Program{modules: make(map[string]*Module)}
}

// Add registers a module, failing when its ID is already taken
func (p *Program) Add(m *Module) error {
	key := m.ID.String()
	if _, exists := p.modules[key]; exists {
		return fmt.Errorf("module %s is defined more than once", key)
	}
	p.modules[key] = m
	p.order = append(p.order, key)
	return nil
}

// Module returns the module with the given ID
func (p *Program) Module(id ModuleID) (*Module, bool) {
	m, ok := p.modules[id.String()]
	return m, ok
}

// Resolve returns the module and function a reference points at
func (p *Program) Resolve(ref FunctionRef) (*Module, *Function, bool) {
	m, ok := p.Module(ref.Module)
	if !ok {
		return nil, nil, false
	}
	fn, ok := m.Functions[ref.Function]
	if !ok {
		return nil, nil, false
	}
	return m, fn, true
}

// Modules returns the modules in registration order
func (p *Program) Modules() []*Module {
	out := make([]*Module, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.modules[key])
	}
	return out
}

// FunctionNames returns the function names of a module in sorted order
func (m *Module) FunctionNames() []string {
	names := make([]string, 0, len(m.Functions))
	for name := range m.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
