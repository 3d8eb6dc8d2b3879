package waveform

import (
	"context"
	"errors"
	"fmt"

	"github.com/forestrie/go-wavestore/hierarchy"
	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/puddlestore"
)

// Cursor walks the changes of one signal across puddles. Within a puddle it
// steps droplet by droplet. Across puddles it follows the forward link index
// and the backward links of each puddle, so windows in which the signal does
// not change are never read.
//
// A Cursor is not safe for concurrent use. A failed move leaves the position
// unchanged.
type Cursor struct {
	src  Source
	item hierarchy.SignalItem
	rc   *puddles.RunCursor
}

func NewCursor(src Source, item hierarchy.SignalItem) *Cursor {
	return &Cursor{src: src, item: item}
}

func (c *Cursor) Signal() hierarchy.SignalItem { return c.item }

// Current returns the change the cursor is on.
func (c *Cursor) Current() (Change, error) {
	if c.rc == nil {
		return Change{}, ErrNotPositioned
	}
	return c.rc.Current()
}

// Droplet returns the encoded form of the current change, ready for display.
func (c *Cursor) Droplet() (puddles.Droplet, error) {
	if c.rc == nil {
		return nil, ErrNotPositioned
	}
	return c.rc.Droplet(), nil
}

// positionAt moves to the change at exactly t.
func (c *Cursor) positionAt(ctx context.Context, t uint64) (Change, error) {
	p, err := c.src.Retrieve(ctx, c.item.ID, puddles.PuddleStart(t))
	if err != nil {
		return Change{}, err
	}
	rc, err := p.Cursor(c.item.ID)
	if err != nil {
		return Change{}, fmt.Errorf("%w: signal %d at %d: %v", ErrLinkBroken, c.item.ID, t, err)
	}
	ch, err := rc.Seek(t)
	if err != nil {
		return Change{}, err
	}
	if ch.Time != t {
		return Change{}, fmt.Errorf("%w: signal %d at %d, found %d", ErrLinkBroken, c.item.ID, t, ch.Time)
	}
	c.rc = rc
	return ch, nil
}

// SeekFirst moves to the first change of the signal.
func (c *Cursor) SeekFirst(ctx context.Context) (Change, error) {
	t, ok, err := c.src.NextLink(ctx, c.item.ID, puddlestore.FirstLink)
	if err != nil {
		return Change{}, err
	}
	if !ok {
		return Change{}, ErrNoMoreChanges
	}
	return c.positionAt(ctx, t)
}

// Seek moves to the change in effect at t, the last change at or before t.
func (c *Cursor) Seek(ctx context.Context, t uint64) (Change, error) {
	var p *puddles.Puddle

	if c.rc != nil {
		// seek a copy, a failed seek moves a run cursor
		rc := *c.rc
		ch, err := rc.Seek(t)
		var berr *puddles.BoundaryError
		switch {
		case err == nil:
			*c.rc = rc
			return ch, nil
		case errors.Is(err, puddles.ErrBeforeRun):
			p = c.rc.Puddle()
		case errors.As(err, &berr):
			// t lies in another window
		default:
			return Change{}, err
		}
	}

	start := puddles.PuddleStart(t)
	if p == nil {
		var err error
		p, err = c.src.Retrieve(ctx, c.item.ID, start)
		if errors.Is(err, puddlestore.ErrPuddleNotFound) {
			return c.seekEarlierWindow(ctx, start)
		}
		if err != nil {
			return Change{}, err
		}

		rc, err := p.Cursor(c.item.ID)
		switch {
		case err == nil:
			ch, err := rc.Seek(t)
			if err == nil {
				c.rc = rc
				return ch, nil
			}
			if !errors.Is(err, puddles.ErrBeforeRun) {
				return Change{}, err
			}
		case !errors.Is(err, puddles.ErrNoRun):
			return Change{}, err
		}
	}

	// nothing at or before t inside the window
	prev, ok := p.PrevChange(c.item.ID)
	if !ok {
		return Change{}, ErrBeforeFirstChange
	}
	return c.positionAt(ctx, prev)
}

// seekEarlierWindow handles a window with no puddle for the band. Every band
// has a puddle in every stored window from its first change on, so either no
// window was stored for start, and the answer is in the closest earlier
// window, or the band has not changed yet.
func (c *Cursor) seekEarlierWindow(ctx context.Context, start uint64) (Change, error) {
	floor, ok := c.src.Floor(start)
	if !ok || floor == start {
		return Change{}, ErrBeforeFirstChange
	}
	return c.Seek(ctx, floor+puddles.PuddleWidth-1)
}

// Next moves to the following change.
func (c *Cursor) Next(ctx context.Context) (Change, error) {
	if c.rc == nil {
		return Change{}, ErrNotPositioned
	}
	ch, err := c.rc.Next()
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, puddles.ErrRunExhausted) {
		return Change{}, err
	}
	next, ok, err := c.src.NextLink(ctx, c.item.ID, c.rc.Puddle().Start)
	if err != nil {
		return Change{}, err
	}
	if !ok {
		return Change{}, ErrNoMoreChanges
	}
	return c.positionAt(ctx, next)
}

// Prev moves to the preceding change.
func (c *Cursor) Prev(ctx context.Context) (Change, error) {
	if c.rc == nil {
		return Change{}, ErrNotPositioned
	}
	ch, err := c.rc.Prev()
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, puddles.ErrRunExhausted) {
		return Change{}, err
	}
	prev, ok := c.rc.Puddle().PrevChange(c.item.ID)
	if !ok {
		return Change{}, ErrNoMoreChanges
	}
	return c.positionAt(ctx, prev)
}
