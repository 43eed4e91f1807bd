package udc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString_Basic(t *testing.T) {
	prog, err := ParseString(`
# counter
LABEL loop
inc r1          # trailing comment
CMP R1, 10
JNE loop
CALL notify, r1, 3
HALT
`)
	require.NoError(t, err)

	require.Len(t, prog.Instructions, 5)
	assert.Equal(t, map[string]int{"loop": 0}, prog.Labels)

	assert.Equal(t, Instruction{Line: 4, Opcode: OpInc, Args: []string{"R1"}}, prog.Instructions[0])
	assert.Equal(t, []string{"R1", "10"}, prog.Instructions[1].Args)
	assert.Equal(t, []string{"loop"}, prog.Instructions[2].Args, "labels keep their case")
	assert.Equal(t, []string{"notify", "r1", "3"}, prog.Instructions[3].Args, "CALL args are verbatim")
	assert.Equal(t, OpHalt, prog.Instructions[4].Opcode)
}

func TestParseString_TrailingLabel(t *testing.T) {
	prog, err := ParseString("JMP end\nINC A\nLABEL end\n")
	require.NoError(t, err)

	idx, ok := prog.LabelIndex("end")
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, []string{"end"}, prog.LabelAt(2))
}

func TestParseString_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
		reason   string
	}{
		{"unknown opcode", "INC A\nFROB A\n", 2, "unknown opcode"},
		{"missing operand", "MOV A\n", 1, "MOV expects 2 argument(s)"},
		{"extra operand", "HALT now\n", 1, "HALT expects 0 argument(s)"},
		{"bad destination", "INC 5\n", 1, "destination must be a register"},
		{"bad operand", "ADD A, 1.5\n", 1, "neither an integer nor a register"},
		{"duplicate label", "LABEL x\nINC A\nLABEL x\n", 3, "already defined on line 1"},
		{"label without name", "LABEL\n", 1, "LABEL takes exactly one name"},
		{"undefined label", "INC A\nJMP nowhere\n", 2, "undefined label"},
		{"call without tool", "CALL\n", 1, "at least 1 argument(s)"},
		{"overflowing literal", "MOV A, 99999999999999999999\n", 1, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.src)
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantLine, perr.Line)
			assert.Contains(t, perr.Reason, tt.reason)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.udc")
	require.NoError(t, os.WriteFile(path, []byte("FROB\n"), 0o644))

	_, err := ParseFile(path)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, path, perr.File)
	assert.Contains(t, err.Error(), path+":1")

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.udc"))
	assert.Error(t, err)
}

func TestLiteralsAndRegisters(t *testing.T) {
	for _, tok := range []string{"0", "42", "-7", "+3"} {
		assert.True(t, IsIntegerLiteral(tok), tok)
		assert.False(t, IsRegisterName(tok), tok)
	}
	for _, tok := range []string{"R1", "acc", "_tmp"} {
		assert.True(t, IsRegisterName(tok), tok)
		assert.False(t, IsIntegerLiteral(tok), tok)
	}
	for _, tok := range []string{"", "-", "1a", "a-b"} {
		assert.False(t, IsIntegerLiteral(tok) || IsRegisterName(tok), tok)
	}
}
