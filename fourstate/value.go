package fourstate

import (
	"fmt"
	"strings"

	"github.com/willf/bitset"
)

// Shape is the physical representation chosen for a width.
type Shape uint8

const (
	ShapeBit Shape = iota
	ShapeWord
	ShapeWide
)

// WordBits is the widest value held inline.
const WordBits = 32

// ShapeFor returns the shape used for values of the given width.
func ShapeFor(width int) Shape {
	switch {
	case width <= 1:
		return ShapeBit
	case width <= WordBits:
		return ShapeWord
	default:
		return ShapeWide
	}
}

// Value is an immutable four state value of a fixed width.
//
// The zero Value has width 0.
type Value struct {
	width int

	// ShapeBit and ShapeWord
	word   uint32
	zxWord uint32

	// ShapeWide, wideZX stays nil until the first X or Z
	wide   *bitset.BitSet
	wideZX *bitset.BitSet
}

// Encode builds a value from per bit states, index 0 being the least
// significant bit.
func Encode(values []State) Value {
	v := newValue(len(values))
	for i, s := range values {
		if s.valueBit() {
			v.setValue(i)
		}
		if s.zxBit() {
			v.setZX(i)
		}
	}
	return v
}

// FromUint64 builds a fully known value from the low width bits of u.
func FromUint64(width int, u uint64) Value {
	v := newValue(width)
	for i := 0; i < width && i < 64; i++ {
		if u&(1<<uint(i)) != 0 {
			v.setValue(i)
		}
	}
	return v
}

// FromPlanes rebuilds a value from serialized planes. zx may be nil when the
// value holds no X or Z.
func FromPlanes(width int, value, zx []byte) (Value, error) {
	n := PlaneBytes(width)
	if len(value) < n || (zx != nil && len(zx) < n) {
		return Value{}, fmt.Errorf("%w: width %d needs %d bytes", ErrPlaneTooShort, width, n)
	}
	v := newValue(width)
	for i := 0; i < width; i++ {
		if testBitLSB0(value, i) {
			v.setValue(i)
		}
		if zx != nil && testBitLSB0(zx, i) {
			v.setZX(i)
		}
	}
	return v, nil
}

func newValue(width int) Value {
	v := Value{width: width}
	if ShapeFor(width) == ShapeWide {
		v.wide = bitset.New(uint(width))
	}
	return v
}

func (v *Value) setValue(i int) {
	if v.wide != nil {
		v.wide.Set(uint(i))
		return
	}
	v.word |= 1 << uint(i)
}

func (v *Value) setZX(i int) {
	if v.wide == nil {
		v.zxWord |= 1 << uint(i)
		return
	}
	if v.wideZX == nil {
		v.wideZX = bitset.New(uint(v.width))
	}
	v.wideZX.Set(uint(i))
}

func (v Value) Width() int { return v.width }

func (v Value) Shape() Shape { return ShapeFor(v.width) }

// HasZX reports whether any bit is X or Z.
func (v Value) HasZX() bool {
	if v.wide != nil {
		return v.wideZX != nil && v.wideZX.Any()
	}
	return v.zxWord != 0
}

// Bit returns the state of bit i. Bits outside the width read as Zero.
func (v Value) Bit(i int) State {
	if i < 0 || i >= v.width {
		return Zero
	}
	var s State
	if v.wide != nil {
		if v.wide.Test(uint(i)) {
			s |= One
		}
		if v.wideZX != nil && v.wideZX.Test(uint(i)) {
			s |= Z
		}
		return s
	}
	if v.word&(1<<uint(i)) != 0 {
		s |= One
	}
	if v.zxWord&(1<<uint(i)) != 0 {
		s |= Z
	}
	return s
}

// Decode is the exact inverse of Encode.
func (v Value) Decode() []State {
	states := make([]State, v.width)
	for i := range states {
		states[i] = v.Bit(i)
	}
	return states
}

// Planes serializes the value. zx is nil when HasZX is false.
func (v Value) Planes() (value, zx []byte) {
	n := PlaneBytes(v.width)
	value = make([]byte, n)
	hasZX := v.HasZX()
	if hasZX {
		zx = make([]byte, n)
	}
	for i := 0; i < v.width; i++ {
		s := v.Bit(i)
		if s.valueBit() {
			setBitLSB0(value, i)
		}
		if hasZX && s.zxBit() {
			setBitLSB0(zx, i)
		}
	}
	return value, zx
}

// Uint64 returns the low 64 bits of a fully known value. ok is false if the
// value has any X or Z bits.
func (v Value) Uint64() (u uint64, ok bool) {
	if v.HasZX() {
		return 0, false
	}
	for i := 0; i < v.width && i < 64; i++ {
		if v.Bit(i) == One {
			u |= 1 << uint(i)
		}
	}
	return u, true
}

// Equal compares width and every bit state.
func (v Value) Equal(o Value) bool {
	if v.width != o.width {
		return false
	}
	for i := 0; i < v.width; i++ {
		if v.Bit(i) != o.Bit(i) {
			return false
		}
	}
	return true
}

// String renders the value most significant bit first using 0, 1, x and z.
func (v Value) String() string {
	var sb strings.Builder
	sb.Grow(v.width)
	for i := v.width - 1; i >= 0; i-- {
		sb.WriteByte(v.Bit(i).Byte())
	}
	return sb.String()
}
