package waveform

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/forestrie/go-wavestore/hierarchy"
	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/puddlestore"
	"github.com/forestrie/go-wavestore/vcd"
)

// Source is the read side of a puddle store.
type Source interface {
	Retrieve(ctx context.Context, id vcd.SignalID, start uint64) (*puddles.Puddle, error)
	NextLink(ctx context.Context, id vcd.SignalID, fromStart uint64) (uint64, bool, error)
	// Floor returns the greatest stored window start at or before t.
	Floor(t uint64) (uint64, bool)
}

var _ Source = (*puddlestore.Store)(nil)

type Change = puddles.Change

// DecodedTrace is the complete change history of one signal. It is built per
// query and never written back.
type DecodedTrace struct {
	Name    string
	ID      vcd.SignalID
	Width   int
	Changes []Change
}

func (d *DecodedTrace) Len() int { return len(d.Changes) }

// ValueAt returns the change in effect at t.
func (d *DecodedTrace) ValueAt(t uint64) (Change, bool) {
	i := sort.Search(len(d.Changes), func(i int) bool { return d.Changes[i].Time > t })
	if i == 0 {
		return Change{}, false
	}
	return d.Changes[i-1], true
}

// Window returns the changes with from <= Time <= to, sharing the backing
// array.
func (d *DecodedTrace) Window(from, to uint64) []Change {
	lo := sort.Search(len(d.Changes), func(i int) bool { return d.Changes[i].Time >= from })
	hi := sort.Search(len(d.Changes), func(i int) bool { return d.Changes[i].Time > to })
	if lo >= hi {
		return nil
	}
	return d.Changes[lo:hi]
}

// Load materializes every change of item over the time range. Puddles are
// retrieved concurrently and reassembled in time order. A window with no
// puddle for the band, or a puddle with no run for the signal, holds no
// changes.
func Load(ctx context.Context, src Source, item hierarchy.SignalItem, tr puddles.TimeRange, opts ...Option) (*DecodedTrace, error) {
	o := Options{Concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	starts := tr.Starts()
	runs := make([][]Change, len(starts))

	g, gctx := errgroup.WithContext(ctx)
	if o.Concurrency > 0 {
		g.SetLimit(o.Concurrency)
	}
	for i, start := range starts {
		i, start := i, start
		g.Go(func() error {
			p, err := src.Retrieve(gctx, item.ID, start)
			if errors.Is(err, puddlestore.ErrPuddleNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			m, ok := p.Run(item.ID)
			if !ok {
				return nil
			}
			if int(m.Width) != item.Width {
				return fmt.Errorf("%w: signal %d run %d bits, declared %d", ErrWidthMismatch, item.ID, m.Width, item.Width)
			}
			changes, err := p.Changes(item.ID)
			if err != nil {
				return err
			}
			runs[i] = changes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &DecodedTrace{Name: item.Name, ID: item.ID, Width: item.Width}
	for _, changes := range runs {
		for _, c := range changes {
			if n := len(d.Changes); n > 0 && d.Changes[n-1].Time >= c.Time {
				return nil, fmt.Errorf("%w: signal %d at %d after %d", ErrNotMonotonic, item.ID, c.Time, d.Changes[n-1].Time)
			}
			if c.Time < tr.Start || c.Time > tr.End {
				continue
			}
			d.Changes = append(d.Changes, c)
		}
	}
	return d, nil
}
