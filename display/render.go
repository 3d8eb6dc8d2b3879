package display

import (
	"fmt"
	"math/big"

	"github.com/forestrie/go-wavestore/fourstate"
	"github.com/forestrie/go-wavestore/puddles"
)

const digits = "0123456789abcdef"

// Render formats an encoded droplet, header included, of a width bit value.
//
// The output is most significant digit first. A digit whose bits include X or
// Z is shown as z when all of them are Z and as x otherwise. When the output
// is longer than maxChars only its leading maxChars characters are returned,
// maxChars <= 0 does not truncate.
//
// Decimal and SignedDecimal fail with ErrUnsupported for values holding X or
// Z rather than guess a number.
func Render(payload []byte, radix Radix, width int, maxChars int) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("%w: %d", ErrBadWidth, width)
	}
	d := puddles.Droplet(payload)
	if err := d.Check(width); err != nil {
		return "", err
	}
	value, zx := d.Planes(width)
	return render(value, zx, width, radix, maxChars)
}

// RenderValue formats a decoded value.
func RenderValue(v fourstate.Value, radix Radix, maxChars int) (string, error) {
	if v.Width() <= 0 {
		return "", fmt.Errorf("%w: %d", ErrBadWidth, v.Width())
	}
	value, zx := v.Planes()
	return render(value, zx, v.Width(), radix, maxChars)
}

func render(value, zx []byte, width int, radix Radix, maxChars int) (string, error) {
	var s string
	switch radix {
	case Hex, Binary, Octal:
		s = grouped(value, zx, width, radix.groupBits())
	case Decimal, SignedDecimal:
		if hasZX(zx, width) {
			return "", fmt.Errorf("%w: %s of a value with x or z bits", ErrUnsupported, radix)
		}
		s = decimal(value, width, radix == SignedDecimal)
	default:
		return "", fmt.Errorf("%w: %d", ErrBadRadix, int(radix))
	}
	if maxChars > 0 && len(s) > maxChars {
		s = s[:maxChars]
	}
	return s, nil
}

func bit(plane []byte, i int) bool {
	return plane[i>>3]&(1<<uint(i&7)) != 0
}

func hasZX(zx []byte, width int) bool {
	if zx == nil {
		return false
	}
	for i := 0; i < width; i++ {
		if bit(zx, i) {
			return true
		}
	}
	return false
}

// grouped renders n bits per digit. The most significant digit may cover
// fewer than n bits.
func grouped(value, zx []byte, width, n int) string {
	count := (width + n - 1) / n
	out := make([]byte, count)
	for g := 0; g < count; g++ {
		lo := g * n
		hi := lo + n
		if hi > width {
			hi = width
		}
		var digit int
		var unknown, allZ = 0, true
		for i := lo; i < hi; i++ {
			v := bit(value, i)
			if zx != nil && bit(zx, i) {
				unknown++
				if v {
					allZ = false
				}
				continue
			}
			allZ = false
			if v {
				digit |= 1 << uint(i-lo)
			}
		}
		c := digits[digit]
		if unknown > 0 {
			c = 'x'
			if allZ {
				c = 'z'
			}
		}
		out[count-1-g] = c
	}
	return string(out)
}

func decimal(value []byte, width int, signed bool) string {
	// big.Int wants big endian bytes
	be := make([]byte, len(value))
	for i, b := range value {
		be[len(value)-1-i] = b
	}
	n := new(big.Int).SetBytes(be)
	// bits above the width are not part of the value
	mask := new(big.Int).Lsh(big.NewInt(1), uint(width))
	n.Mod(n, mask)
	if signed && n.Bit(width-1) == 1 {
		n.Sub(n, mask)
	}
	return n.Text(10)
}
