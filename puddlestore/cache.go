package puddlestore

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/vcd"
)

type cacheKey struct {
	start uint64
	band  vcd.SignalID
}

// puddleCache holds decoded puddles. Puddles are immutable once stored so
// cached values are shared without copying.
type puddleCache struct {
	lru *lru.Cache
}

func newPuddleCache(size int) (*puddleCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &puddleCache{lru: c}, nil
}

func (c *puddleCache) get(start uint64, band vcd.SignalID) (*puddles.Puddle, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(cacheKey{start: start, band: band})
	if !ok {
		return nil, false
	}
	return v.(*puddles.Puddle), true
}

func (c *puddleCache) add(p *puddles.Puddle) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey{start: p.Start, band: p.Band}, p)
}
