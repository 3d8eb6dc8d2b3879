package puddles

// A puddle holds every change of one band of signals inside one fixed window
// of time. Windows are aligned to PuddleWidth so the window owning any
// timestamp is found by arithmetic alone, and bands are aligned to BandSize so
// the puddle owning a signal is found the same way.
//
// The serialized puddle is a 32 byte fixed header, followed by the msgpack
// encoded run index, followed by the droplets of every run concatenated in
// signal id order.

import "github.com/forestrie/go-wavestore/vcd"

const (
	// PuddleWidth is the number of time units covered by one puddle. It is
	// bounded by the width of the droplet time offset.
	PuddleWidth = 1 << DropletOffsetBits

	// BandSize is the number of consecutive signal ids sharing one puddle.
	BandSize = 64
)

const (

	// Header layout
	//
	// .         | magic | version | reserved | start  | band   | width  | index len | data len |
	// .         | 0   3 |    4    |  5 -  7  | 8   15 | 16  19 | 20  23 | 24     27 | 28    31 |
	// bytes     |   4   |    1    |    3     |   8    |   4    |   4    |     4     |     4    |
	//
	// Integers are little endian, matching the partition key encoding.

	HeaderMagicFirstByte = 0
	HeaderMagicSize      = 4
	HeaderMagicEnd       = HeaderMagicFirstByte + HeaderMagicSize

	HeaderVersionFirstByte = HeaderMagicEnd
	HeaderVersionSize      = 1
	HeaderVersionEnd       = HeaderVersionFirstByte + HeaderVersionSize
	// gap 5 - 7

	HeaderStartFirstByte = 8
	HeaderStartSize      = 8
	HeaderStartEnd       = HeaderStartFirstByte + HeaderStartSize

	HeaderBandFirstByte = HeaderStartEnd
	HeaderBandSize      = 4
	HeaderBandEnd       = HeaderBandFirstByte + HeaderBandSize

	HeaderWidthFirstByte = HeaderBandEnd
	HeaderWidthSize      = 4
	HeaderWidthEnd       = HeaderWidthFirstByte + HeaderWidthSize

	HeaderIndexLenFirstByte = HeaderWidthEnd
	HeaderIndexLenSize      = 4
	HeaderIndexLenEnd       = HeaderIndexLenFirstByte + HeaderIndexLenSize

	HeaderDataLenFirstByte = HeaderIndexLenEnd
	HeaderDataLenSize      = 4
	HeaderDataLenEnd       = HeaderDataLenFirstByte + HeaderDataLenSize

	HeaderSize = HeaderDataLenEnd

	PuddleCurrentVersion = uint8(1)
)

// HeaderMagic opens every serialized puddle.
var HeaderMagic = [HeaderMagicSize]byte{'P', 'D', 'L', '1'}

// BandOf returns the first signal id of the band owning id.
func BandOf(id vcd.SignalID) vcd.SignalID {
	return id - id%BandSize
}

// PuddleStart returns the start of the window owning t.
func PuddleStart(t uint64) uint64 {
	return t - t%PuddleWidth
}

// TimeRange is an inclusive range of trace time.
type TimeRange struct {
	Start uint64 `cbor:"1,keyasint"`
	End   uint64 `cbor:"2,keyasint"`
}

// Starts returns the start of every puddle window overlapping the range.
func (r TimeRange) Starts() []uint64 {
	if r.End < r.Start {
		return nil
	}
	var starts []uint64
	for s := PuddleStart(r.Start); ; s += PuddleWidth {
		starts = append(starts, s)
		if r.End-s < PuddleWidth {
			return starts
		}
	}
}
