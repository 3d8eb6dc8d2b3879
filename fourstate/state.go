package fourstate

import "fmt"

// State is a single four state bit. The encoding is (zx << 1) | value.
type State uint8

const (
	Zero State = 0b00
	One  State = 0b01
	Z    State = 0b10
	X    State = 0b11
)

func (s State) valueBit() bool { return s&0b01 != 0 }
func (s State) zxBit() bool    { return s&0b10 != 0 }

// Byte returns the VCD character for the state.
func (s State) Byte() byte {
	switch s {
	case Zero:
		return '0'
	case One:
		return '1'
	case Z:
		return 'z'
	default:
		return 'x'
	}
}

func (s State) String() string { return string(s.Byte()) }

// StateFromByte accepts the VCD characters 0, 1, x, X, z and Z.
func StateFromByte(b byte) (State, error) {
	switch b {
	case '0':
		return Zero, nil
	case '1':
		return One, nil
	case 'x', 'X':
		return X, nil
	case 'z', 'Z':
		return Z, nil
	}
	return Zero, fmt.Errorf("%w: %q", ErrBadState, b)
}

// ParseBits converts a most significant bit first VCD bit string into states
// ordered least significant first, ready for Encode.
func ParseBits(msbFirst string) ([]State, error) {
	n := len(msbFirst)
	states := make([]State, n)
	for i := 0; i < n; i++ {
		s, err := StateFromByte(msbFirst[n-1-i])
		if err != nil {
			return nil, err
		}
		states[i] = s
	}
	return states, nil
}
