package puddles

import (
	"encoding/binary"
	"fmt"

	"github.com/forestrie/go-wavestore/fourstate"
)

// Droplet layout
//
// .        | header            | value plane      | zx plane (when flagged) |
// .        | 0               1 | 2                | 2 + plane bytes         |
// bytes    |        2          | ceil(width / 8)  | ceil(width / 8)         |
//
// The header is a little endian uint16. Bits 0 - 11 hold the time offset from
// the puddle start, bit 15 flags the zx plane. Planes are little endian with
// bit 0 of byte 0 being bit 0 of the value.
const (
	DropletHeaderSize = 2
	DropletOffsetBits = 12
	DropletOffsetMask = 1<<DropletOffsetBits - 1
	DropletZXFlag     = 1 << 15
)

// Droplet is a view over one encoded change. The width of the value is not
// recorded in the droplet, it is a property of the run.
type Droplet []byte

// DropletSize is the encoded size of a droplet for a value of width bits.
func DropletSize(width int, zx bool) int {
	n := fourstate.PlaneBytes(width)
	if zx {
		n *= 2
	}
	return DropletHeaderSize + n
}

// EncodeDroplet appends the droplet for v at the given offset to dst.
func EncodeDroplet(dst []byte, offset uint64, v fourstate.Value) ([]byte, error) {
	if offset > DropletOffsetMask {
		return dst, fmt.Errorf("%w: %d", ErrOffsetTooLarge, offset)
	}
	value, zx := v.Planes()
	h := uint16(offset)
	if zx != nil {
		h |= DropletZXFlag
	}
	dst = binary.LittleEndian.AppendUint16(dst, h)
	dst = append(dst, value...)
	dst = append(dst, zx...)
	return dst, nil
}

func (d Droplet) header() uint16 {
	return binary.LittleEndian.Uint16(d[:DropletHeaderSize])
}

// Offset is the time of the change relative to the puddle start.
func (d Droplet) Offset() uint64 {
	return uint64(d.header() & DropletOffsetMask)
}

// HasZX reports whether the payload carries a zx plane.
func (d Droplet) HasZX() bool {
	return d.header()&DropletZXFlag != 0
}

// Size is the number of bytes the droplet occupies for a value of width bits.
func (d Droplet) Size(width int) int {
	return DropletSize(width, d.HasZX())
}

// Check verifies the slice holds at least one complete droplet of width bits.
func (d Droplet) Check(width int) error {
	if len(d) < DropletHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrDropletTooShort, len(d))
	}
	if n := d.Size(width); len(d) < n {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrDropletTooShort, len(d), n)
	}
	return nil
}

// Planes returns the value and zx planes without copying. zx is nil when the
// droplet has no zx plane. The caller must have checked the droplet.
func (d Droplet) Planes(width int) (value, zx []byte) {
	n := fourstate.PlaneBytes(width)
	value = d[DropletHeaderSize : DropletHeaderSize+n]
	if d.HasZX() {
		zx = d[DropletHeaderSize+n : DropletHeaderSize+2*n]
	}
	return value, zx
}

// Value decodes the payload as a value of width bits.
func (d Droplet) Value(width int) (fourstate.Value, error) {
	if err := d.Check(width); err != nil {
		return fourstate.Value{}, err
	}
	value, zx := d.Planes(width)
	return fourstate.FromPlanes(width, value, zx)
}

// DecodeDroplet decodes the droplet at the start of b and returns the number
// of bytes it occupies.
func DecodeDroplet(b []byte, width int) (offset uint64, v fourstate.Value, n int, err error) {
	d := Droplet(b)
	if v, err = d.Value(width); err != nil {
		return 0, fourstate.Value{}, 0, err
	}
	return d.Offset(), v, d.Size(width), nil
}
