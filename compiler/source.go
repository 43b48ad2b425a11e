package compiler

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
)

// sourceFile is the YAML document describing one module
type sourceFile struct {
	Address   *address          `yaml:"address"`
	Module    string            `yaml:"module"`
	Version   string            `yaml:"version,omitempty"`
	Storage   map[string]word   `yaml:"storage,omitempty"`
	Functions []*sourceFunction `yaml:"functions"`
}

type sourceFunction struct {
	Name    string `yaml:"name"`
	Params  int    `yaml:"params,omitempty"`
	Locals  int    `yaml:"locals,omitempty"`
	Returns int    `yaml:"returns,omitempty"`
	Code    string `yaml:"code"`

	Test            bool             `yaml:"test,omitempty"`
	Args            []word           `yaml:"args,omitempty"`
	ExpectedFailure *expectedFailure `yaml:"expected_failure,omitempty"`
}

// word reads 256-bit values from their literal text so large numbers never
// pass through YAML's own integer resolution
type word struct {
	uint256.Int
}

func (w *word) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := bytecode.ParseWord(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	w.Int = v
	return nil
}

type address struct {
	common.Address
}

func (a *address) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an address", node.Line)
	}
	addr, err := bytecode.ParseAddress(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	a.Address = addr
	return nil
}

// expectedFailure is either `true` (any abort) or a mapping with an abort code
type expectedFailure struct {
	AbortCode *uint64 `yaml:"abort_code,omitempty"`
}

func (e *expectedFailure) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var expected bool
		if err := node.Decode(&expected); err != nil {
			return fmt.Errorf("line %d: expected_failure must be true or a mapping", node.Line)
		}
		if !expected {
			return errors.New("expected_failure: false is not allowed, omit the field instead")
		}
		return nil
	}
	type plain expectedFailure
	return node.Decode((*plain)(e))
}

func words(ws []word) []uint256.Int {
	out := make([]uint256.Int, len(ws))
	for i := range ws {
		out[i] = ws[i].Int
	}
	return out
}
