package vcd

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = `
$date today $end
$version test bench 1.0 $end
$timescale 1ns $end
$scope module top $end
$var wire 1 ! clk $end
$scope module sub $end
$var wire 8 " data [7:0] $end
$var real 1 # temp $end
$upscope $end
$var wire 1 ! clk_alias $end
$upscope $end
$enddefinitions $end
`

func readAll(t *testing.T, p *Parser) []Command {
	t.Helper()
	var cmds []Command
	for {
		c, err := p.Next()
		if err == io.EOF {
			return cmds
		}
		require.NoError(t, err)
		cmds = append(cmds, c)
	}
}

func TestReadHeader(t *testing.T) {
	p := NewParser(strings.NewReader(testHeader))
	h, err := p.ReadHeader()
	require.NoError(t, err)

	assert.Equal(t, "today", h.Date)
	assert.Equal(t, "test bench 1.0", h.Version)
	assert.Equal(t, "1ns", h.Timescale)
	require.Len(t, h.Scopes, 1)

	top := h.Scopes[0]
	assert.Equal(t, "top", top.Name)
	require.Len(t, top.Vars, 2)
	require.Len(t, top.Children, 1)

	// the alias shares the id of the first declaration of "!"
	assert.Equal(t, top.Vars[0].ID, top.Vars[1].ID)
	assert.Equal(t, 3, h.SignalCount())

	sub := top.Children[0]
	assert.Equal(t, "data", sub.Vars[0].Reference)
	assert.Equal(t, "[7:0]", sub.Vars[0].Range)
	assert.Equal(t, 8, h.Width(sub.Vars[0].ID))
	assert.Equal(t, 64, h.Width(sub.Vars[1].ID), "reals are widened to 64 bits")
}

func TestCommands(t *testing.T) {
	body := `
#0
$dumpvars
0!
b101 "
r2.5 #
$end
#10
1!
bx "
$comment ignored $end
#20
Z!
b11111111111 "
s_hello #
`
	p := NewParser(strings.NewReader(testHeader + body))
	_, err := p.ReadHeader()
	require.NoError(t, err)

	cmds := readAll(t, p)
	want := []Command{
		Timestamp{Time: 0},
		ChangeScalar{ID: 0, Bit: '0'},
		ChangeVector{ID: 1, Bits: "00000101"},
		ChangeReal{ID: 2, Value: 2.5},
		Timestamp{Time: 10},
		ChangeScalar{ID: 0, Bit: '1'},
		ChangeVector{ID: 1, Bits: "xxxxxxxx"},
		Timestamp{Time: 20},
		ChangeScalar{ID: 0, Bit: 'z'},
		ChangeVector{ID: 1, Bits: "11111111"},
		ChangeString{ID: 2, Value: "_hello"},
	}
	assert.Equal(t, want, cmds)
}

func TestNextBeforeHeader(t *testing.T) {
	p := NewParser(strings.NewReader(testHeader))
	_, err := p.Next()
	assert.ErrorIs(t, err, ErrHeaderNotRead)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"truncated header", "$scope module top $end $var wire 1 ! a $end", ErrParse},
		{"unterminated block", "$date never ends", ErrParse},
		{"var outside scope", "$var wire 1 ! a $end $enddefinitions $end", ErrParse},
		{"bad var size", "$scope module t $end $var wire x ! a $end $upscope $end $enddefinitions $end", ErrParse},
		{"unbalanced scopes", "$scope module t $end $enddefinitions $end", ErrParse},
		{"stray upscope", "$upscope $end $enddefinitions $end", ErrParse},
		{"undeclared code", testHeader + "#0 1?", ErrParse},
		{"vector without code", testHeader + "#0 b1010", ErrParse},
		{"bad vector bit", testHeader + "#0 b10q1 \"", ErrParse},
		{"time goes backwards", testHeader + "#10 #5", ErrParse},
		{"unknown command", testHeader + "#0 $dumpports", ErrUnsupportedCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(strings.NewReader(tt.input))
			_, err := p.ReadHeader()
			if err == nil {
				for err == nil {
					_, err = p.Next()
				}
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, errors.Is(err, io.EOF))
		})
	}
}

func TestUnsupportedCommandNamesTheCommand(t *testing.T) {
	p := NewParser(strings.NewReader(testHeader + "#0 $dumpports"))
	_, err := p.ReadHeader()
	require.NoError(t, err)
	_, err = p.Next()
	require.NoError(t, err)
	_, err = p.Next()

	var uerr *UnsupportedCommandError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "$dumpports", uerr.Command)
}

func TestExtendBits(t *testing.T) {
	tests := []struct {
		bits  string
		width int
		want  string
	}{
		{"1", 4, "0001"},
		{"01", 4, "0001"},
		{"x1", 4, "xxx1"},
		{"z", 3, "zzz"},
		{"1010", 4, "1010"},
	}
	for _, tt := range tests {
		t.Run(tt.bits, func(t *testing.T) {
			assert.Equal(t, tt.want, extendBits(tt.bits, tt.width))
		})
	}
}
