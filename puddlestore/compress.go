package puddlestore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Stored values are prefixed with one byte naming their codec.
const (
	codecRaw  byte = 0
	codecZstd byte = 1
)

type valueCodec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

func newValueCodec(compress bool) (*valueCodec, error) {
	c := &valueCodec{compress: compress}
	var err error
	// EncodeAll and DecodeAll are safe for concurrent use
	if compress {
		if c.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
			return nil, fmt.Errorf("puddlestore: zstd encoder: %w", err)
		}
	}
	if c.dec, err = zstd.NewReader(nil); err != nil {
		return nil, fmt.Errorf("puddlestore: zstd decoder: %w", err)
	}
	return c, nil
}

func (c *valueCodec) encode(data []byte) []byte {
	if !c.compress {
		out := make([]byte, 0, len(data)+1)
		out = append(out, codecRaw)
		return append(out, data...)
	}
	out := make([]byte, 1, len(data)/2+1)
	out[0] = codecZstd
	return c.enc.EncodeAll(data, out)
}

func (c *valueCodec) decode(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrBadCodec)
	}
	switch value[0] {
	case codecRaw:
		return value[1:], nil
	case codecZstd:
		data, err := c.dec.DecodeAll(value[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("puddlestore: zstd decode: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrBadCodec, value[0])
}

func (c *valueCodec) close() {
	if c.enc != nil {
		c.enc.Close()
	}
	c.dec.Close()
}
