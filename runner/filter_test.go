package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	names := []string{"m::foo_bar", "m::baz", "n::foo"}

	var selected []string
	f := NewFilter("foo")
	for _, name := range names {
		if f.Matches(name) {
			selected = append(selected, name)
		}
	}
	assert.Equal(t, []string{"m::foo_bar", "n::foo"}, selected)
}

func TestZeroFilterMatchesEverything(t *testing.T) {
	var f Filter
	assert.True(t, f.Matches("m::anything"))
	assert.True(t, NewFilter("").Matches("m::anything"))
}

func TestFilterMatchesAcrossTheSeparator(t *testing.T) {
	f := NewFilter("m::f")
	assert.True(t, f.Matches("m::foo"))
	assert.False(t, f.Matches("mm::bar"))
}
