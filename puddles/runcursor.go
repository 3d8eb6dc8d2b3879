package puddles

import (
	"fmt"
	"sort"

	"github.com/forestrie/go-wavestore/vcd"
)

// RunCursor walks the droplets of one signal inside one puddle.
//
// A fresh cursor is positioned on the first droplet. Next and Prev fail with
// ErrRunExhausted at the ends of the run and leave the position unchanged.
type RunCursor struct {
	p     *Puddle
	id    vcd.SignalID
	width int
	data  []byte

	// stride is the droplet size of a fixed length run, 0 otherwise
	stride int
	// offsets of each droplet in data, built once for variable length runs
	offsets []int

	count int
	i     int
}

// Cursor opens a cursor over the run of id.
func (p *Puddle) Cursor(id vcd.SignalID) (*RunCursor, error) {
	m, ok := p.Runs[id]
	if !ok || m.Count == 0 {
		return nil, fmt.Errorf("%w: signal %d, puddle %d", ErrNoRun, id, p.Start)
	}
	data, err := p.RunBytes(id)
	if err != nil {
		return nil, err
	}
	c := &RunCursor{p: p, id: id, width: int(m.Width), data: data, count: int(m.Count)}
	if !m.VariableLength {
		c.stride = DropletSize(c.width, false)
		if c.stride*c.count != len(data) {
			return nil, fmt.Errorf("%w: signal %d has %d bytes for %d droplets of %d",
				ErrRunOutOfBounds, id, len(data), c.count, c.stride)
		}
		return c, nil
	}

	c.offsets = make([]int, 0, c.count)
	at := 0
	for k := 0; k < c.count; k++ {
		d := Droplet(data[at:])
		if err := d.Check(c.width); err != nil {
			return nil, fmt.Errorf("signal %d droplet %d: %w", id, k, err)
		}
		c.offsets = append(c.offsets, at)
		at += d.Size(c.width)
	}
	return c, nil
}

func (c *RunCursor) Puddle() *Puddle      { return c.p }
func (c *RunCursor) Signal() vcd.SignalID { return c.id }
func (c *RunCursor) Width() int           { return c.width }
func (c *RunCursor) Len() int             { return c.count }
func (c *RunCursor) Index() int           { return c.i }

func (c *RunCursor) droplet(i int) Droplet {
	if c.stride != 0 {
		return Droplet(c.data[i*c.stride : (i+1)*c.stride])
	}
	return Droplet(c.data[c.offsets[i]:])
}

func (c *RunCursor) timeAt(i int) uint64 {
	return c.p.Start + c.droplet(i).Offset()
}

// Droplet returns the raw droplet at the current position.
func (c *RunCursor) Droplet() Droplet {
	d := c.droplet(c.i)
	return d[:d.Size(c.width)]
}

// Current decodes the droplet at the current position.
func (c *RunCursor) Current() (Change, error) {
	d := c.droplet(c.i)
	v, err := d.Value(c.width)
	if err != nil {
		return Change{}, err
	}
	return Change{Time: c.p.Start + d.Offset(), Value: v}, nil
}

// At moves to droplet i.
func (c *RunCursor) At(i int) (Change, error) {
	if i < 0 || i >= c.count {
		return Change{}, fmt.Errorf("%w: index %d of %d", ErrRunExhausted, i, c.count)
	}
	c.i = i
	return c.Current()
}

func (c *RunCursor) First() (Change, error) { return c.At(0) }

func (c *RunCursor) Last() (Change, error) { return c.At(c.count - 1) }

func (c *RunCursor) Next() (Change, error) {
	if c.i+1 >= c.count {
		return Change{}, ErrRunExhausted
	}
	return c.At(c.i + 1)
}

func (c *RunCursor) Prev() (Change, error) {
	if c.i == 0 {
		return Change{}, ErrRunExhausted
	}
	return c.At(c.i - 1)
}

// Seek moves to the change in effect at t, the last droplet at or before t.
// Times outside the window fail with a *BoundaryError. Times before the first
// droplet fail with ErrBeforeRun and leave the cursor on the first droplet.
func (c *RunCursor) Seek(t uint64) (Change, error) {
	if t < c.p.Start {
		return Change{}, &BoundaryError{Time: t, Boundary: c.p.Start}
	}
	if t-c.p.Start >= PuddleWidth {
		return Change{}, &BoundaryError{Time: t, Boundary: c.p.End() - 1}
	}
	// first droplet strictly after t, the offsets are increasing
	after := sort.Search(c.count, func(i int) bool { return c.timeAt(i) > t })
	if after == 0 {
		c.i = 0
		return Change{}, fmt.Errorf("%w: time %d, first change %d", ErrBeforeRun, t, c.timeAt(0))
	}
	return c.At(after - 1)
}
