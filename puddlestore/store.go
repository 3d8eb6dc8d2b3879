package puddlestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/forestrie/go-wavestore/puddles"
	"github.com/forestrie/go-wavestore/vcd"
)

// Partition naming
//
// Every puddle window has a partition named by the 8 byte little endian start
// of the window. Inside it the key of a puddle is the 4 byte big endian first
// id of its band, so keys sort by band.
//
// The reserved partitions have names of other lengths and so never collide
// with a window.
var (
	MetaPartition  = []byte("meta")
	LinksPartition = []byte("links")
)

const (
	PartitionNameSize = 8
	BandKeySize       = 4
	LinkKeySize       = 12

	// FirstLink is the link source for the first change of a signal.
	FirstLink = math.MaxUint64
)

func PartitionName(start uint64) []byte {
	name := make([]byte, PartitionNameSize)
	binary.LittleEndian.PutUint64(name, start)
	return name
}

// PartitionStart decodes a window partition name. ok is false for the
// reserved partitions.
func PartitionStart(name []byte) (start uint64, ok bool) {
	if len(name) != PartitionNameSize {
		return 0, false
	}
	return binary.LittleEndian.Uint64(name), true
}

func BandKey(band vcd.SignalID) []byte {
	key := make([]byte, BandKeySize)
	binary.BigEndian.PutUint32(key, uint32(band))
	return key
}

// LinkKey orders links by signal then by source window.
func LinkKey(id vcd.SignalID, fromStart uint64) []byte {
	key := make([]byte, LinkKeySize)
	binary.BigEndian.PutUint32(key[:4], uint32(id))
	binary.BigEndian.PutUint64(key[4:], fromStart)
	return key
}

// Store persists puddles in a KV. It is safe for concurrent use, puddles in
// different windows or bands never share a key.
type Store struct {
	log   logger.Logger
	kv    KV
	opts  StoreOptions
	codec *valueCodec
	cache *puddleCache

	mu sync.RWMutex
	// starts of every window partition, ascending
	starts []uint64
}

// New opens a store over kv. The store owns kv and closes it on Close.
func New(log logger.Logger, kv KV, opts ...Option) (*Store, error) {
	s := &Store{log: log, kv: kv}
	for _, o := range opts {
		o(&s.opts)
	}

	var err error
	if s.codec, err = newValueCodec(s.opts.Compress); err != nil {
		return nil, err
	}
	if s.cache, err = newPuddleCache(s.opts.CacheSize); err != nil {
		return nil, fmt.Errorf("puddlestore: cache: %w", err)
	}

	names, err := kv.Partitions()
	if err != nil {
		return nil, fmt.Errorf("puddlestore: listing partitions: %w", err)
	}
	for _, name := range names {
		if start, ok := PartitionStart(name); ok {
			s.starts = append(s.starts, start)
		}
	}
	sort.Slice(s.starts, func(i, j int) bool { return s.starts[i] < s.starts[j] })
	log.Debugf("opened puddle store with %d window partitions", len(s.starts))
	return s, nil
}

func (s *Store) KV() KV { return s.kv }

// Insert writes p exactly once. A second insert for the same window and band
// fails with ErrDuplicatePuddle and leaves the first in place.
func (s *Store) Insert(ctx context.Context, p *puddles.Puddle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	err = s.kv.Insert(PartitionName(p.Start), BandKey(p.Band), s.codec.encode(data))
	if errors.Is(err, ErrKeyExists) {
		return fmt.Errorf("%w: start %d, band %d", ErrDuplicatePuddle, p.Start, p.Band)
	}
	if err != nil {
		return fmt.Errorf("puddlestore: insert start %d, band %d: %w", p.Start, p.Band, err)
	}
	s.addStart(p.Start)
	return nil
}

func (s *Store) addStart(start uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := sort.Search(len(s.starts), func(i int) bool { return s.starts[i] >= start })
	if i < len(s.starts) && s.starts[i] == start {
		return
	}
	s.starts = append(s.starts, 0)
	copy(s.starts[i+1:], s.starts[i:])
	s.starts[i] = start
}

// Retrieve returns the puddle of the band owning id for the window holding
// start. Absent puddles fail with a *PuddleError.
func (s *Store) Retrieve(ctx context.Context, id vcd.SignalID, start uint64) (*puddles.Puddle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	band := puddles.BandOf(id)
	start = puddles.PuddleStart(start)
	if p, ok := s.cache.get(start, band); ok {
		return p, nil
	}

	value, err := s.kv.Get(PartitionName(start), BandKey(band))
	switch {
	case errors.Is(err, ErrPartitionNotFound):
		return nil, &PuddleError{Start: start, Band: band, Context: "no partition for the window"}
	case errors.Is(err, ErrKeyNotFound):
		return nil, &PuddleError{Start: start, Band: band, Context: "band has no puddle in the window"}
	case err != nil:
		return nil, fmt.Errorf("puddlestore: get start %d, band %d: %w", start, band, err)
	}

	data, err := s.codec.decode(value)
	if err != nil {
		return nil, err
	}
	p := &puddles.Puddle{}
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("puddlestore: start %d, band %d: %w", start, band, err)
	}
	if p.Start != start || p.Band != band {
		return nil, fmt.Errorf("%w: key (%d, %d), puddle (%d, %d)", ErrPuddleMismatch, start, band, p.Start, p.Band)
	}
	s.cache.add(p)
	return p, nil
}

// ListPartitions returns the start of every stored window, ascending.
func (s *Store) ListPartitions() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uint64(nil), s.starts...)
}

// Floor returns the greatest stored window start at or before t.
func (s *Store) Floor(t uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.starts), func(i int) bool { return s.starts[i] > t })
	if i == 0 {
		return 0, false
	}
	return s.starts[i-1], true
}

// Ceil returns the least stored window start at or after t.
func (s *Store) Ceil(t uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.starts), func(i int) bool { return s.starts[i] >= t })
	if i == len(s.starts) {
		return 0, false
	}
	return s.starts[i], true
}

// PutLink records that the change of id following the last change in the
// window fromStart happens at next. Use FirstLink as fromStart for the first
// change of a signal.
func (s *Store) PutLink(ctx context.Context, id vcd.SignalID, fromStart, next uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, next)
	if err := s.kv.Insert(LinksPartition, LinkKey(id, fromStart), value); err != nil {
		return fmt.Errorf("puddlestore: link signal %d from %d: %w", id, fromStart, err)
	}
	return nil
}

// NextLink returns the time of the first change of id after the window
// fromStart. ok is false when the signal does not change again.
func (s *Store) NextLink(ctx context.Context, id vcd.SignalID, fromStart uint64) (next uint64, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	value, err := s.kv.Get(LinksPartition, LinkKey(id, fromStart))
	if errors.Is(err, ErrPartitionNotFound) || errors.Is(err, ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("puddlestore: link signal %d from %d: %w", id, fromStart, err)
	}
	if len(value) != 8 {
		return 0, false, fmt.Errorf("puddlestore: link signal %d from %d has %d bytes", id, fromStart, len(value))
	}
	return binary.LittleEndian.Uint64(value), true, nil
}

// PutMeta stores a metadata record, once.
func (s *Store) PutMeta(key string, value []byte) error {
	if err := s.kv.Insert(MetaPartition, []byte(key), value); err != nil {
		return fmt.Errorf("puddlestore: meta %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetMeta(key string) ([]byte, error) {
	value, err := s.kv.Get(MetaPartition, []byte(key))
	if errors.Is(err, ErrPartitionNotFound) || errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrMetaNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("puddlestore: meta %q: %w", key, err)
	}
	return value, nil
}

// Sync makes everything inserted so far durable.
func (s *Store) Sync() error {
	return s.kv.Sync()
}

func (s *Store) Close() error {
	s.codec.close()
	return s.kv.Close()
}
