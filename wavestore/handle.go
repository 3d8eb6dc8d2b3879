// Package wavestore opens the puddle store built from a trace file, building
// it on first use, and answers hierarchy and waveform queries against it.
package wavestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/forestrie/go-wavestore/hierarchy"
	"github.com/forestrie/go-wavestore/ingest"
	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/puddlestore"
	"github.com/forestrie/go-wavestore/waveform"
)

const dbExt = ".db"

// Handle is an open, complete store. Queries may run concurrently, but
// SetCurrent changes the module relative paths resolve against and must not
// race with Resolve.
type Handle struct {
	log       logger.Logger
	opts      Options
	store     *puddlestore.Store
	meta      ingest.Meta
	index     *hierarchy.Index
	recovered bool
}

// DBPath is the database file used for name under dir.
func DBPath(dir, name string) string {
	return filepath.Join(dir, name+dbExt)
}

// NameOf derives the database name of a trace file.
func NameOf(tracePath string) string {
	base := filepath.Base(tracePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newOptions(opts []Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// openStore opens the KV the options name and the puddle store over it.
func openStore(log logger.Logger, o Options, readOnly bool) (*puddlestore.Store, error) {
	kv := o.KV
	if kv == nil {
		if o.DataDir == "" || o.Name == "" {
			return nil, ErrNoStore
		}
		path := DBPath(o.DataDir, o.Name)
		if readOnly {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ingest.ErrConfigMissing, path, err)
			}
		}
		bolt, err := puddlestore.OpenBolt(path, puddlestore.BoltOptions{
			Timeout:  o.BoltTimeout,
			NoSync:   true,
			ReadOnly: readOnly,
		})
		if err != nil {
			return nil, err
		}
		kv = bolt
	}
	store, err := puddlestore.New(log, kv,
		puddlestore.WithCompression(o.Compress),
		puddlestore.WithCacheSize(o.CacheSize))
	if err != nil {
		kv.Close()
		return nil, err
	}
	return store, nil
}

// OpenOrBuild returns a handle on the store for the trace at tracePath. A
// store holding a completed ingestion of the same trace is opened as is.
// Otherwise the trace is ingested into it, and a store left incomplete by an
// earlier failed run makes that ingestion fail on its first duplicate
// puddle.
func OpenOrBuild(ctx context.Context, log logger.Logger, tracePath string, opts ...Option) (*Handle, error) {
	o := newOptions(opts)
	if o.Name == "" {
		o.Name = NameOf(tracePath)
	}

	f, err := os.Open(tracePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	digest, err := ingest.Digest(f)
	if err != nil {
		return nil, err
	}

	store, err := openStore(log, o, false)
	if err != nil {
		return nil, err
	}
	h := &Handle{log: log, opts: o, store: store}

	data, err := store.GetMeta(ingest.ConfigKey)
	switch {
	case err == nil:
		err = h.loadCompleted(data, digest)
	case errors.Is(err, puddlestore.ErrMetaNotFound):
		err = h.build(ctx, f, digest)
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	return h, nil
}

// Open returns a handle on a completed store without reading its trace.
func Open(log logger.Logger, opts ...Option) (*Handle, error) {
	o := newOptions(opts)
	store, err := openStore(log, o, o.KV == nil)
	if err != nil {
		return nil, err
	}
	h := &Handle{log: log, opts: o, store: store}

	data, err := store.GetMeta(ingest.ConfigKey)
	if errors.Is(err, puddlestore.ErrMetaNotFound) {
		err = fmt.Errorf("%w: %s", ingest.ErrConfigMissing, o.Name)
	}
	if err == nil {
		err = h.loadCompleted(data, nil)
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	return h, nil
}

func (h *Handle) loadCompleted(config []byte, digest []byte) error {
	if err := h.meta.UnmarshalBinary(config); err != nil {
		return err
	}
	if err := h.meta.Check(digest); err != nil {
		return err
	}
	data, err := h.store.GetMeta(ingest.IDMapKey)
	if errors.Is(err, puddlestore.ErrMetaNotFound) {
		return fmt.Errorf("%w: %s", ingest.ErrHierarchyMissing, h.meta.DBName)
	}
	if err != nil {
		return err
	}
	h.index = &hierarchy.Index{}
	if err := h.index.UnmarshalBinary(data); err != nil {
		return err
	}
	h.recovered = true
	h.log.Infof("recovered %s: run %s, time %d-%d", h.meta.DBName, h.meta.RunID, h.meta.TimeRange.Start, h.meta.TimeRange.End)
	return nil
}

func (h *Handle) build(ctx context.Context, f *os.File, digest []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	in := ingest.New(h.log, h.store,
		ingest.WithDBName(h.opts.Name),
		ingest.WithSourceDigest(digest),
		ingest.WithRegisterer(h.opts.Registerer))
	res, err := in.Run(ctx, bufio.NewReader(f))
	if err != nil {
		return err
	}
	h.meta = res.Meta
	h.index = res.Index
	return nil
}

// Recovered reports whether the store was complete when opened, so no
// ingestion ran.
func (h *Handle) Recovered() bool { return h.recovered }

func (h *Handle) Meta() ingest.Meta { return h.meta }

func (h *Handle) Index() *hierarchy.Index { return h.index }

func (h *Handle) TimeRange() puddles.TimeRange { return h.meta.TimeRange }

// Partitions lists the start of every stored window.
func (h *Handle) Partitions() []uint64 { return h.store.ListPartitions() }

func (h *Handle) Store() *puddlestore.Store { return h.store }

// Resolve finds a signal by absolute or relative dotted path.
func (h *Handle) Resolve(path string) (hierarchy.SignalItem, error) {
	return h.index.Resolve(path)
}

// SetCurrent selects the module relative paths resolve against.
func (h *Handle) SetCurrent(path string) error {
	return h.index.SetCurrent(path)
}

// LoadSignal materializes every change of item over the stored time range.
func (h *Handle) LoadSignal(ctx context.Context, item hierarchy.SignalItem) (*waveform.DecodedTrace, error) {
	if h.store == nil {
		return nil, ErrClosed
	}
	return waveform.Load(ctx, h.store, item, h.meta.TimeRange, waveform.WithConcurrency(h.opts.LoadConcurrency))
}

// Cursor returns a cursor over the changes of item.
func (h *Handle) Cursor(item hierarchy.SignalItem) *waveform.Cursor {
	return waveform.NewCursor(h.store, item)
}

func (h *Handle) Close() error {
	if h.store == nil {
		return ErrClosed
	}
	err := h.store.Close()
	h.store = nil
	return err
}
