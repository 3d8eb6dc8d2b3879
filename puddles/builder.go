package puddles

import (
	"fmt"
	"sort"

	"github.com/forestrie/go-wavestore/fourstate"
	"github.com/forestrie/go-wavestore/vcd"
)

type run struct {
	width    int
	data     []byte
	count    int
	last     uint64
	lastAt   int
	variable bool
}

// Builder accumulates the changes of one band while the ingestion clock is
// inside one window. It is not safe for concurrent use.
type Builder struct {
	start uint64
	band  vcd.SignalID
	runs  map[vcd.SignalID]*run
	prev  map[vcd.SignalID]uint64
}

// NewBuilder starts a builder for the window beginning at start. start must
// be aligned to PuddleWidth and band to BandSize.
func NewBuilder(start uint64, band vcd.SignalID) *Builder {
	return &Builder{
		start: start,
		band:  band,
		runs:  map[vcd.SignalID]*run{},
		prev:  map[vcd.SignalID]uint64{},
	}
}

func (b *Builder) Start() uint64 { return b.start }

func (b *Builder) Band() vcd.SignalID { return b.band }

// Changed is the number of signals with at least one change in the window.
func (b *Builder) Changed() int { return len(b.runs) }

func (b *Builder) Contains(t uint64) bool { return t >= b.start && t-b.start < PuddleWidth }

// AddChange appends the change of id at time t. A second change of a signal
// at the same time replaces the first.
func (b *Builder) AddChange(id vcd.SignalID, t uint64, v fourstate.Value) error {
	if BandOf(id) != b.band {
		return fmt.Errorf("%w: signal %d, band %d", ErrNotInBand, id, b.band)
	}
	if !b.Contains(t) {
		return fmt.Errorf("%w: time %d, window [%d, %d)", ErrTimeOutsidePuddle, t, b.start, b.start+PuddleWidth)
	}

	r, ok := b.runs[id]
	if !ok {
		r = &run{width: v.Width()}
		b.runs[id] = r
	}
	if v.Width() != r.width {
		return fmt.Errorf("%w: signal %d, run width %d, value width %d", ErrWidthMismatch, id, r.width, v.Width())
	}
	if r.count > 0 {
		switch {
		case t < r.last:
			return fmt.Errorf("%w: signal %d, time %d after %d", ErrTimeNotIncreasing, id, t, r.last)
		case t == r.last:
			r.data = r.data[:r.lastAt]
			r.count--
		}
	}

	at := len(r.data)
	data, err := EncodeDroplet(r.data, t-b.start, v)
	if err != nil {
		return err
	}
	r.data = data
	r.lastAt = at
	r.last = t
	r.count++
	if v.HasZX() {
		r.variable = true
	}
	return nil
}

// SetPrev records the last change of id before the window.
func (b *Builder) SetPrev(id vcd.SignalID, t uint64) error {
	if BandOf(id) != b.band {
		return fmt.Errorf("%w: signal %d, band %d", ErrNotInBand, id, b.band)
	}
	if t >= b.start {
		return fmt.Errorf("%w: previous change %d is not before %d", ErrTimeOutsidePuddle, t, b.start)
	}
	b.prev[id] = t
	return nil
}

// Finish produces the immutable puddle. Runs are laid out in signal id order.
// The builder must not be used afterwards.
func (b *Builder) Finish() *Puddle {
	ids := make([]vcd.SignalID, 0, len(b.runs))
	size := 0
	for id, r := range b.runs {
		ids = append(ids, id)
		size += len(r.data)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	p := &Puddle{
		Start: b.start,
		Band:  b.band,
		Runs:  make(map[vcd.SignalID]RunMeta, len(ids)),
		Prev:  b.prev,
		Data:  make([]byte, 0, size),
	}
	for _, id := range ids {
		r := b.runs[id]
		p.Runs[id] = RunMeta{
			Offset:         uint32(len(p.Data)),
			Count:          uint32(r.count),
			Width:          uint32(r.width),
			Length:         uint32(len(r.data)),
			VariableLength: r.variable,
		}
		p.Data = append(p.Data, r.data...)
	}
	b.runs, b.prev = nil, nil
	return p
}
