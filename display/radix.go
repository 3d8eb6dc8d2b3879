package display

import (
	"fmt"
	"strings"
)

type Radix int

const (
	Hex Radix = iota
	Binary
	Octal
	Decimal
	SignedDecimal
)

func (r Radix) String() string {
	switch r {
	case Hex:
		return "hex"
	case Binary:
		return "binary"
	case Octal:
		return "octal"
	case Decimal:
		return "decimal"
	case SignedDecimal:
		return "signed"
	}
	return fmt.Sprintf("radix(%d)", int(r))
}

// ParseRadix accepts the names printed by String and the usual short forms.
func ParseRadix(s string) (Radix, error) {
	switch strings.ToLower(s) {
	case "hex", "h", "x":
		return Hex, nil
	case "binary", "bin", "b":
		return Binary, nil
	case "octal", "oct", "o":
		return Octal, nil
	case "decimal", "dec", "d", "u":
		return Decimal, nil
	case "signed", "sdec", "s", "i":
		return SignedDecimal, nil
	}
	return Hex, fmt.Errorf("%w: %q", ErrBadRadix, s)
}

// groupBits is the number of bits per digit for the grouped radixes.
func (r Radix) groupBits() int {
	switch r {
	case Hex:
		return 4
	case Binary:
		return 1
	case Octal:
		return 3
	}
	return 0
}
