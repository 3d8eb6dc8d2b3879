package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/forestrie/go-wavestore/fourstate"
	"github.com/forestrie/go-wavestore/hierarchy"
	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/puddlestore"
	"github.com/forestrie/go-wavestore/vcd"
)

// Sink receives everything an ingestion produces. puddlestore.Store is the
// production implementation.
type Sink interface {
	Insert(ctx context.Context, p *puddles.Puddle) error
	PutLink(ctx context.Context, id vcd.SignalID, fromStart, next uint64) error
	PutMeta(key string, value []byte) error
	Sync() error
}

// Result summarises a completed ingestion.
type Result struct {
	Meta    Meta
	Index   *hierarchy.Index
	Puddles int
	Windows int
	// SkippedStrings counts string changes, which are not stored.
	SkippedStrings uint64
}

// Ingester drives one trace into a Sink. Ingestion is sequential and an
// Ingester runs once.
type Ingester struct {
	log     logger.Logger
	sink    Sink
	opts    Options
	metrics *metrics

	state State

	header *vcd.Header
	index  *hierarchy.Index

	// current time and the start of the window holding it
	now      uint64
	open     uint64
	haveTime bool
	first    uint64

	builders map[vcd.SignalID]*puddles.Builder
	// bands that have changed at least once, a puddle is flushed for each of
	// them in every window from then on
	active []vcd.SignalID
	// last change time of every signal that has changed
	last map[vcd.SignalID]uint64
	// forward links resolved in the open window, written after its puddles
	links []link

	result Result
}

type link struct {
	id        vcd.SignalID
	fromStart uint64
	next      uint64
}

func New(log logger.Logger, sink Sink, opts ...Option) *Ingester {
	in := &Ingester{
		log:      log,
		sink:     sink,
		opts:     Options{DBName: "wavestore"},
		builders: map[vcd.SignalID]*puddles.Builder{},
		last:     map[vcd.SignalID]uint64{},
	}
	for _, o := range opts {
		o(&in.opts)
	}
	in.metrics = newMetrics(in.opts.Registerer)
	return in
}

func (in *Ingester) State() State { return in.state }

func (in *Ingester) fail(err error) error {
	in.state = Failed
	return err
}

// Run ingests the trace read from r. On any error the ingester is Failed and
// the sink holds a partial store without a config record.
func (in *Ingester) Run(ctx context.Context, r io.Reader) (*Result, error) {
	if in.state != Idle {
		return nil, ErrAlreadyRun
	}
	started := time.Now()

	var hasher *blake3.Hasher
	if in.opts.SourceDigest == nil {
		hasher = blake3.New(DigestSize, nil)
		r = io.TeeReader(r, hasher)
	}

	in.state = ParsingHeader
	p := vcd.NewParser(r)
	h, err := p.ReadHeader()
	if err != nil {
		return nil, in.fail(err)
	}
	in.header = h
	in.index = hierarchy.Build(h)
	in.log.Debugf("header declares %d signals in %d modules", h.SignalCount(), len(in.index.Modules))

	in.state = Streaming
	for {
		cmd, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, in.fail(err)
		}
		if err := in.apply(ctx, cmd); err != nil {
			return nil, in.fail(err)
		}
	}

	in.state = Finalizing
	if err := ctx.Err(); err != nil {
		return nil, in.fail(err)
	}
	if err := in.flush(ctx); err != nil {
		return nil, in.fail(err)
	}

	digest := in.opts.SourceDigest
	if hasher != nil {
		digest = hasher.Sum(nil)
	}
	if err := in.finalize(digest); err != nil {
		return nil, in.fail(err)
	}
	in.state = Done

	in.metrics.duration.Observe(time.Since(started).Seconds())
	in.log.Infof("ingested %s: %d changes, %d puddles over %d windows, time %d-%d",
		in.opts.DBName, in.result.Meta.Changes, in.result.Puddles, in.result.Windows,
		in.result.Meta.TimeRange.Start, in.result.Meta.TimeRange.End)
	return &in.result, nil
}

func (in *Ingester) apply(ctx context.Context, cmd vcd.Command) error {
	switch c := cmd.(type) {
	case vcd.Timestamp:
		return in.advance(ctx, c.Time)

	case vcd.ChangeScalar:
		s, err := fourstate.StateFromByte(c.Bit)
		if err != nil {
			return err
		}
		return in.change(c.ID, fourstate.Encode([]fourstate.State{s}))

	case vcd.ChangeVector:
		states, err := fourstate.ParseBits(c.Bits)
		if err != nil {
			return err
		}
		return in.change(c.ID, fourstate.Encode(states))

	case vcd.ChangeReal:
		return in.change(c.ID, fourstate.FromUint64(64, math.Float64bits(c.Value)))

	case vcd.ChangeString:
		in.result.SkippedStrings++
		in.metrics.skipped.WithLabelValues("string").Inc()
		in.log.Debugf("skipping string change of signal %d at %d", c.ID, in.now)
		return nil
	}
	return fmt.Errorf("ingest: unexpected command %T", cmd)
}

// advance moves the clock. Crossing into another window flushes every open
// builder and opens a builder for every active band in the new window.
func (in *Ingester) advance(ctx context.Context, t uint64) error {
	start := puddles.PuddleStart(t)
	if !in.haveTime {
		in.haveTime = true
		in.first, in.now, in.open = t, t, start
		in.result.Windows = 1
		return nil
	}
	in.now = t
	if start == in.open {
		return nil
	}

	in.state = Flushing
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := in.flush(ctx); err != nil {
		return err
	}
	in.open = start
	in.result.Windows++
	for _, band := range in.active {
		if _, err := in.newBuilder(band); err != nil {
			return err
		}
	}
	in.state = Streaming
	return nil
}

// newBuilder opens the band's builder for the open window, linked back to the
// last change of each of its signals.
func (in *Ingester) newBuilder(band vcd.SignalID) (*puddles.Builder, error) {
	b := puddles.NewBuilder(in.open, band)
	for id := band; id < band+puddles.BandSize && int(id) < in.header.SignalCount(); id++ {
		if t, ok := in.last[id]; ok {
			if err := b.SetPrev(id, t); err != nil {
				return nil, err
			}
		}
	}
	in.builders[band] = b
	return b, nil
}

func (in *Ingester) change(id vcd.SignalID, v fourstate.Value) error {
	if !in.haveTime {
		// changes ahead of the first timestamp happen at time zero
		in.haveTime = true
		in.result.Windows = 1
	}
	if w := in.header.Width(id); w != v.Width() {
		return fmt.Errorf("ingest: signal %d declared %d bits wide, change has %d", id, w, v.Width())
	}

	band := puddles.BandOf(id)
	b, ok := in.builders[band]
	if !ok {
		var err error
		if b, err = in.newBuilder(band); err != nil {
			return err
		}
		in.activate(band)
	}

	t := in.now
	prev, changed := in.last[id]
	if err := b.AddChange(id, t, v); err != nil {
		return err
	}
	switch {
	case !changed:
		in.links = append(in.links, link{id: id, fromStart: puddlestore.FirstLink, next: t})
	case puddles.PuddleStart(prev) != in.open:
		in.links = append(in.links, link{id: id, fromStart: puddles.PuddleStart(prev), next: t})
	}
	if !changed || prev != t {
		in.result.Meta.Changes++
		in.metrics.changes.Inc()
	}
	in.last[id] = t
	return nil
}

func (in *Ingester) activate(band vcd.SignalID) {
	i := sort.Search(len(in.active), func(i int) bool { return in.active[i] >= band })
	if i < len(in.active) && in.active[i] == band {
		return
	}
	in.active = append(in.active, 0)
	copy(in.active[i+1:], in.active[i:])
	in.active[i] = band
}

// flush inserts the puddle of every open builder, in band order, then the
// forward links into the window. A repeated ingestion into the same store
// fails here on the first duplicate puddle.
func (in *Ingester) flush(ctx context.Context) error {
	bands := make([]vcd.SignalID, 0, len(in.builders))
	for band := range in.builders {
		bands = append(bands, band)
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i] < bands[j] })

	for _, band := range bands {
		p := in.builders[band].Finish()
		if err := in.sink.Insert(ctx, p); err != nil {
			return err
		}
		in.result.Puddles++
		in.metrics.puddles.Inc()
	}
	for _, l := range in.links {
		if err := in.sink.PutLink(ctx, l.id, l.fromStart, l.next); err != nil {
			return err
		}
	}
	in.links = in.links[:0]
	if len(bands) > 0 {
		in.log.Debugf("flushed %d puddles for window %d", len(bands), in.open)
	}
	in.builders = map[vcd.SignalID]*puddles.Builder{}
	return nil
}

// finalize writes the hierarchy and then the config record which marks the
// store complete, then makes the store durable.
func (in *Ingester) finalize(digest []byte) error {
	idmap, err := in.index.MarshalBinary()
	if err != nil {
		return err
	}
	if err := in.sink.PutMeta(IDMapKey, idmap); err != nil {
		return err
	}

	m := &in.result.Meta
	m.DBName = in.opts.DBName
	m.RunID = uuid.NewString()
	m.SourceDigest = digest
	m.PuddleWidth = puddles.PuddleWidth
	m.BandSize = puddles.BandSize
	m.Version = MetaCurrentVersion
	m.Signals = in.header.SignalCount()
	if in.haveTime {
		m.TimeRange = puddles.TimeRange{Start: in.first, End: in.now}
	}
	config, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	// the sink must not report the store complete before the puddles are durable
	if err := in.sink.Sync(); err != nil {
		return err
	}
	if err := in.sink.PutMeta(ConfigKey, config); err != nil {
		return err
	}
	if err := in.sink.Sync(); err != nil {
		return err
	}
	in.result.Index = in.index
	return nil
}
