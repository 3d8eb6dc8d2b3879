package puddles

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/forestrie/go-wavestore/fourstate"
	"github.com/forestrie/go-wavestore/vcd"
)

// RunMeta locates the droplets of one signal inside Puddle.Data.
type RunMeta struct {
	Offset uint32 `msgpack:"o"`
	Count  uint32 `msgpack:"c"`
	Width  uint32 `msgpack:"w"`
	// Length is the number of bytes of the run.
	Length uint32 `msgpack:"l"`
	// VariableLength is set when any droplet of the run carries a zx plane,
	// droplets then differ in size and can not be addressed by stride.
	VariableLength bool `msgpack:"v"`
}

// Change is one decoded value change.
type Change struct {
	Time  uint64
	Value fourstate.Value
}

// Puddle is the immutable record of every change of one signal band in one
// time window.
type Puddle struct {
	Start uint64
	Band  vcd.SignalID
	Runs  map[vcd.SignalID]RunMeta
	// Prev holds, for the signals of the band that changed before Start, the
	// time of their last change before Start.
	Prev map[vcd.SignalID]uint64
	Data []byte
}

// puddleIndex is the msgpack encoded section between header and data.
type puddleIndex struct {
	Runs map[uint32]RunMeta `msgpack:"runs"`
	Prev map[uint32]uint64  `msgpack:"prev"`
}

// End is the first time after the puddle window.
func (p *Puddle) End() uint64 {
	return p.Start + PuddleWidth
}

func (p *Puddle) Contains(t uint64) bool {
	return t >= p.Start && t-p.Start < PuddleWidth
}

// Range is the inclusive time range of the window.
func (p *Puddle) Range() TimeRange {
	return TimeRange{Start: p.Start, End: p.End() - 1}
}

// Run returns the run metadata of id.
func (p *Puddle) Run(id vcd.SignalID) (RunMeta, bool) {
	m, ok := p.Runs[id]
	return m, ok
}

// PrevChange returns the time of the last change of id before the puddle.
func (p *Puddle) PrevChange(id vcd.SignalID) (uint64, bool) {
	t, ok := p.Prev[id]
	return t, ok
}

// RunBytes returns the droplets of id without copying.
func (p *Puddle) RunBytes(id vcd.SignalID) ([]byte, error) {
	m, ok := p.Runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: signal %d, puddle %d", ErrNoRun, id, p.Start)
	}
	end := uint64(m.Offset) + uint64(m.Length)
	if end > uint64(len(p.Data)) {
		return nil, fmt.Errorf("%w: signal %d ends at %d of %d", ErrRunOutOfBounds, id, end, len(p.Data))
	}
	return p.Data[m.Offset:end], nil
}

// Changes decodes every change of id in the puddle.
func (p *Puddle) Changes(id vcd.SignalID) ([]Change, error) {
	c, err := p.Cursor(id)
	if err != nil {
		return nil, err
	}
	changes := make([]Change, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		ch, err := c.At(i)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

// MarshalBinary serializes the puddle, see layout.go.
func (p *Puddle) MarshalBinary() ([]byte, error) {
	idx := puddleIndex{
		Runs: make(map[uint32]RunMeta, len(p.Runs)),
		Prev: make(map[uint32]uint64, len(p.Prev)),
	}
	for id, m := range p.Runs {
		idx.Runs[uint32(id)] = m
	}
	for id, t := range p.Prev {
		idx.Prev[uint32(id)] = t
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	// sorted keys keep the encoding of a puddle deterministic
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&idx); err != nil {
		return nil, fmt.Errorf("puddles: encoding index: %w", err)
	}
	index := buf.Bytes()

	out := make([]byte, HeaderSize, HeaderSize+len(index)+len(p.Data))
	copy(out[HeaderMagicFirstByte:HeaderMagicEnd], HeaderMagic[:])
	out[HeaderVersionFirstByte] = PuddleCurrentVersion
	binary.LittleEndian.PutUint64(out[HeaderStartFirstByte:HeaderStartEnd], p.Start)
	binary.LittleEndian.PutUint32(out[HeaderBandFirstByte:HeaderBandEnd], uint32(p.Band))
	binary.LittleEndian.PutUint32(out[HeaderWidthFirstByte:HeaderWidthEnd], PuddleWidth)
	binary.LittleEndian.PutUint32(out[HeaderIndexLenFirstByte:HeaderIndexLenEnd], uint32(len(index)))
	binary.LittleEndian.PutUint32(out[HeaderDataLenFirstByte:HeaderDataLenEnd], uint32(len(p.Data)))
	out = append(out, index...)
	out = append(out, p.Data...)
	return out, nil
}

// UnmarshalBinary decodes a serialized puddle. Data aliases b.
func (p *Puddle) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrBadHeader, len(b))
	}
	if !bytes.Equal(b[HeaderMagicFirstByte:HeaderMagicEnd], HeaderMagic[:]) {
		return fmt.Errorf("%w: bad magic %q", ErrBadHeader, b[HeaderMagicFirstByte:HeaderMagicEnd])
	}
	if v := b[HeaderVersionFirstByte]; v != PuddleCurrentVersion {
		return fmt.Errorf("%w: version %d", ErrBadHeader, v)
	}
	if w := binary.LittleEndian.Uint32(b[HeaderWidthFirstByte:HeaderWidthEnd]); w != PuddleWidth {
		return fmt.Errorf("%w: puddle width %d, expected %d", ErrBadHeader, w, PuddleWidth)
	}
	indexLen := uint64(binary.LittleEndian.Uint32(b[HeaderIndexLenFirstByte:HeaderIndexLenEnd]))
	dataLen := uint64(binary.LittleEndian.Uint32(b[HeaderDataLenFirstByte:HeaderDataLenEnd]))
	if uint64(len(b)) != HeaderSize+indexLen+dataLen {
		return fmt.Errorf("%w: have %d bytes, header declares %d", ErrDataLength, len(b), HeaderSize+indexLen+dataLen)
	}

	var idx puddleIndex
	if err := msgpack.Unmarshal(b[HeaderSize:HeaderSize+indexLen], &idx); err != nil {
		return fmt.Errorf("puddles: decoding index: %w", err)
	}

	p.Start = binary.LittleEndian.Uint64(b[HeaderStartFirstByte:HeaderStartEnd])
	p.Band = vcd.SignalID(binary.LittleEndian.Uint32(b[HeaderBandFirstByte:HeaderBandEnd]))
	p.Data = b[HeaderSize+indexLen:]
	p.Runs = make(map[vcd.SignalID]RunMeta, len(idx.Runs))
	for id, m := range idx.Runs {
		if uint64(m.Offset)+uint64(m.Length) > dataLen {
			return fmt.Errorf("%w: signal %d", ErrRunOutOfBounds, id)
		}
		p.Runs[vcd.SignalID(id)] = m
	}
	p.Prev = make(map[vcd.SignalID]uint64, len(idx.Prev))
	for id, t := range idx.Prev {
		p.Prev[vcd.SignalID(id)] = t
	}
	return nil
}
