package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-wavestore/fourstate"
	"github.com/forestrie/go-wavestore/puddles"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		radix    Radix
		width    int
		maxChars int
		want     string
	}{
		{"hex", []byte{0, 0, 0xef, 0xbe, 0xad, 0xde}, Hex, 32, 20, "deadbeef"},
		{"hex truncated keeps leading digits", []byte{0, 0, 0xef, 0xbe, 0xad, 0xde}, Hex, 32, 4, "dead"},
		{"hex unlimited", []byte{0, 0, 0xef, 0xbe, 0xad, 0xde}, Hex, 32, 0, "deadbeef"},
		{"hex with x bits", []byte{0, 0x80, 0xef, 0xbe, 0xad, 0xde}, Hex, 16, 20, "xxxx"},
		{"binary", []byte{0, 0, 0x2f, 0x01}, Binary, 9, 9, "100101111"},
		{"hex partial top digit", []byte{0, 0, 0x2f, 0x01}, Hex, 9, 0, "12f"},
		{"octal", []byte{0, 0, 0x2f, 0x01}, Octal, 9, 0, "457"},
		{"decimal", []byte{0, 0, 0x2f, 0x01}, Decimal, 9, 0, "303"},
		{"signed negative", []byte{0, 0, 0x2f, 0x01}, SignedDecimal, 9, 0, "-209"},
		{"signed positive", []byte{0, 0, 0x2f, 0x00}, SignedDecimal, 9, 0, "47"},
		{"decimal wide", []byte{0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, Decimal, 65, 0, "36893488147419103231"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.payload, tt.radix, tt.width, tt.maxChars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderUnknownDigits(t *testing.T) {
	tests := []struct {
		bits  string
		radix Radix
		want  string
	}{
		{"zzzz0001", Hex, "z1"},
		{"zz1z0001", Hex, "x1"},
		{"xzzz0001", Hex, "x1"},
		{"10xz", Binary, "10xz"},
		{"zzz101", Octal, "z5"},
		{"z01", Octal, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.bits, func(t *testing.T) {
			states, err := fourstate.ParseBits(tt.bits)
			require.NoError(t, err)
			v := fourstate.Encode(states)

			got, err := RenderValue(v, tt.radix, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// the encoded droplet renders the same
			d, err := puddles.EncodeDroplet(nil, 7, v)
			require.NoError(t, err)
			got, err = Render(d, tt.radix, v.Width(), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	_, err := Render([]byte{0, 0x80, 0x01, 0x01}, Decimal, 8, 0)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = Render([]byte{0, 0x80, 0x01, 0x01}, SignedDecimal, 8, 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Render([]byte{0, 0, 0xff}, Hex, 16, 0)
	assert.ErrorIs(t, err, puddles.ErrDropletTooShort)
	_, err = Render([]byte{0}, Hex, 1, 0)
	assert.ErrorIs(t, err, puddles.ErrDropletTooShort)

	_, err = Render([]byte{0, 0, 1}, Hex, 0, 0)
	assert.ErrorIs(t, err, ErrBadWidth)
	_, err = Render([]byte{0, 0, 1}, Radix(42), 8, 0)
	assert.ErrorIs(t, err, ErrBadRadix)
}

func TestParseRadix(t *testing.T) {
	for _, r := range []Radix{Hex, Binary, Octal, Decimal, SignedDecimal} {
		got, err := ParseRadix(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	got, err := ParseRadix("BIN")
	require.NoError(t, err)
	assert.Equal(t, Binary, got)

	_, err = ParseRadix("roman")
	assert.ErrorIs(t, err, ErrBadRadix)
}
