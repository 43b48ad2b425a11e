package bytecode

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWord(t *testing.T) {
	tests := []struct {
		in      string
		want    *uint256.Int
		wantErr string
	}{
		{in: "0", want: uint256.NewInt(0)},
		{in: "42", want: uint256.NewInt(42)},
		{in: "0x2a", want: uint256.NewInt(42)},
		{in: "0X2A", want: uint256.NewInt(42)},
		{in: "0x", wantErr: "invalid word"},
		{in: "-1", wantErr: "invalid word"},
		{in: "twelve", wantErr: "invalid word"},
		{in: "0x1" + strings.Repeat("0", 64), wantErr: "does not fit"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWord(tt.in)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func TestAssembleResolvesLabels(t *testing.T) {
	code, err := Assemble(`
		# count down from the first local
		loop:
		    copy_loc 0
		    br_false done   // exit once zero
		    branch loop
		done:
		    ret
	`)
	require.NoError(t, err)
	require.Len(t, code, 4)

	assert.Equal(t, OpCopyLoc, code[0].Op)
	assert.Equal(t, 0, code[0].Index)
	assert.Equal(t, OpBrFalse, code[1].Op)
	assert.Equal(t, 3, code[1].Index)
	assert.Equal(t, OpBranch, code[2].Op)
	assert.Equal(t, 0, code[2].Index)
	assert.Equal(t, OpRet, code[3].Op)
}

func TestAssembleKeepsNames(t *testing.T) {
	code, err := Assemble("load counter\ncall helper::mul\nret")
	require.NoError(t, err)
	assert.Equal(t, "counter", code[0].Name)
	assert.Equal(t, "helper::mul", code[1].Name)
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		line    int
		wantMsg string
	}{
		{name: "unknown instruction", src: "nop\njump 3", line: 2, wantMsg: "unknown instruction"},
		{name: "missing operand", src: "push", line: 1, wantMsg: "exactly one operand"},
		{name: "extra operand", src: "ret 1", line: 1, wantMsg: "takes no operand"},
		{name: "bad word", src: "push x", line: 1, wantMsg: "invalid word"},
		{name: "bad local", src: "copy_loc -1", line: 1, wantMsg: "invalid local index"},
		{name: "undefined label", src: "branch nowhere", line: 1, wantMsg: "undefined label"},
		{name: "duplicate label", src: "a:\nnop\na:\nret", line: 3, wantMsg: "more than once"},
		{name: "invalid label", src: "1a:\nret", line: 1, wantMsg: "invalid label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			var asmErr *AssemblyError
			require.ErrorAs(t, err, &asmErr)
			assert.Equal(t, tt.line, asmErr.Line)
			assert.Contains(t, asmErr.Msg, tt.wantMsg)
		})
	}
}

func TestOpcodeNamesRoundTrip(t *testing.T) {
	for op, name := range opcodeNames {
		assert.Equal(t, op, opcodesByName[name])
		assert.Equal(t, name, op.String())
	}
	assert.Equal(t, "opcode(254)", Opcode(0xfe).String())
}
