package ui

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTreePrefix(t *testing.T) {
	tests := []struct {
		name         string
		depth        int
		isLast       bool
		parentIsLast []bool
		expected     string
	}{
		{"root", 0, false, nil, ""},
		{"first level branch", 1, false, nil, "├── "},
		{"first level last", 1, true, nil, "└── "},
		{"second level under open parent", 2, false, []bool{false}, "│   ├── "},
		{"second level under last parent", 2, true, []bool{true}, "    └── "},
		{"third level mixed", 3, false, []bool{true, false}, "    │   ├── "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildTreePrefix(tt.depth, tt.isLast, tt.parentIsLast))
		})
	}
}

func TestRenderTree(t *testing.T) {
	roots := []*Node{
		{Label: "0x1::coin", Children: []*Node{
			{Label: "test_burn"},
			{Label: "test_mint", Children: []*Node{{Label: "args: 1"}}},
		}},
		{Label: "0x2::vault", Children: []*Node{
			{Label: "test_deposit", Children: []*Node{{Label: "a"}, {Label: "b"}}},
			{Label: "test_withdraw"},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderTree(&buf, roots))

	expected := strings.Join([]string{
		"0x1::coin",
		"├── test_burn",
		"└── test_mint",
		"    └── args: 1",
		"0x2::vault",
		"├── test_deposit",
		"│   ├── a",
		"│   └── b",
		"└── test_withdraw",
		"",
	}, "\n")
	assert.Equal(t, expected, buf.String())
}

func TestRenderTreeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTree(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestSection(t *testing.T) {
	header := SectionHeader("test_mint", 40)
	assert.True(t, strings.HasPrefix(header, "┌── test_mint ─"))
	assert.Equal(t, 40, utf8.RuneCountInString(strings.TrimSuffix(header, "\n")))

	// Long titles still get a short rule.
	long := SectionHeader(strings.Repeat("x", 60), 40)
	assert.True(t, strings.HasSuffix(long, " ────\n"))

	assert.Equal(t, "│ hello\n", SectionLine("hello"))
	assert.Equal(t, "└"+strings.Repeat("─", 40)+"\n", SectionFooter(40))
}
