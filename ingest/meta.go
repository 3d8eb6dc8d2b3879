package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"

	"github.com/forestrie/go-wavestore/puddles"
)

// Keys of the records in the meta partition. ConfigKey is written last and
// marks the store complete.
const (
	ConfigKey = "config"
	IDMapKey  = "id_map"

	MetaCurrentVersion = 1

	// DigestSize is the size of the blake3 digest of the source trace.
	DigestSize = 32
)

// Meta is the config record of a completed store.
type Meta struct {
	DBName       string            `cbor:"1,keyasint"`
	RunID        string            `cbor:"2,keyasint"`
	TimeRange    puddles.TimeRange `cbor:"3,keyasint"`
	SourceDigest []byte            `cbor:"4,keyasint"`
	PuddleWidth  uint64            `cbor:"5,keyasint"`
	BandSize     uint32            `cbor:"6,keyasint"`
	Version      int               `cbor:"7,keyasint"`
	Signals      int               `cbor:"8,keyasint"`
	Changes      uint64            `cbor:"9,keyasint"`
}

// metaRecord has the fields of Meta without its methods, so the cbor codec
// encodes the struct instead of calling back into MarshalBinary.
type metaRecord Meta

func (m *Meta) MarshalBinary() ([]byte, error) {
	return cbor.Marshal((*metaRecord)(m))
}

func (m *Meta) UnmarshalBinary(data []byte) error {
	var decoded metaRecord
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("ingest: decoding config record: %w", err)
	}
	*m = Meta(decoded)
	return nil
}

// Check rejects records this build can not read, and records built from a
// different source when digest is not nil.
func (m *Meta) Check(digest []byte) error {
	if m.Version != MetaCurrentVersion {
		return fmt.Errorf("%w: %d", ErrMetaVersion, m.Version)
	}
	if m.PuddleWidth != puddles.PuddleWidth || m.BandSize != puddles.BandSize {
		return fmt.Errorf("%w: width %d band %d", ErrLayoutMismatch, m.PuddleWidth, m.BandSize)
	}
	if digest != nil && !bytes.Equal(digest, m.SourceDigest) {
		return fmt.Errorf("%w: have %x, store has %x", ErrSourceMismatch, digest, m.SourceDigest)
	}
	return nil
}

// Digest returns the blake3-256 digest of everything read from r.
func Digest(r io.Reader) ([]byte, error) {
	h := blake3.New(DigestSize, nil)
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("ingest: digesting source: %w", err)
	}
	return h.Sum(nil), nil
}
