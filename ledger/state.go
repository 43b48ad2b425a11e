// Package ledger holds the global storage a test executes against. Every
// execution works on its own State cloned from the genesis state of the
// module set, so no storage is ever shared between two tests.
package ledger

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
)

// State is a mutable key/word store. It is not safe for concurrent use; each
// execution owns its own instance.
type State struct {
	values map[string]uint256.Int
}

// NewState creates an empty state
func NewState() *State {
	return &State{values: make(map[string]uint256.Int)}
}

// Genesis seeds a state from the storage every module publishes
func Genesis(modules []*bytecode.Module) *State {
	s := NewState()
	for _, m := range modules {
		for key, value := range m.Storage {
			s.values[m.StorageKey(key)] = value
		}
	}
	return s
}

// Clone returns an independent copy of the state
func (s *State) Clone() *State {
	return &State{values: maps.Clone(s.values)}
}

// Get returns the word stored under key
func (s *State) Get(key string) (uint256.Int, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores a word under key, replacing any previous value
func (s *State) Set(key string, value uint256.Int) {
	s.values[key] = value
}

// Delete removes key and reports whether it was present
func (s *State) Delete(key string) bool {
	_, ok := s.values[key]
	delete(s.values, key)
	return ok
}

// Exists reports whether key holds a value
func (s *State) Exists(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Len returns the number of stored keys
func (s *State) Len() int {
	return len(s.values)
}

// Snapshot captures the current contents in key order
func (s *State) Snapshot() Snapshot {
	keys := slices.Sorted(maps.Keys(s.values))
	snap := make(Snapshot, 0, len(keys))
	for _, k := range keys {
		snap = append(snap, Entry{Key: k, Value: s.values[k]})
	}
	return snap
}

// Entry is one stored key/value pair
type Entry struct {
	Key   string
	Value uint256.Int
}

// Snapshot is an immutable, ordered view of a State
type Snapshot []Entry

// String renders one "key = value" line per entry
func (s Snapshot) String() string {
	if len(s) == 0 {
		return "<empty>"
	}
	var sb strings.Builder
	for i, e := range s {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s = %s", e.Key, e.Value.Dec())
	}
	return sb.String()
}
