package puddlestore

import (
	"errors"
	"fmt"

	"github.com/forestrie/go-wavestore/vcd"
)

var (
	ErrDuplicatePuddle = errors.New("puddlestore: a puddle already exists for the window and band")
	ErrPuddleNotFound  = errors.New("puddlestore: puddle not found")
	ErrPuddleMismatch  = errors.New("puddlestore: stored puddle does not match its key")
	ErrMetaNotFound    = errors.New("puddlestore: metadata record not found")
	ErrBadCodec        = errors.New("puddlestore: unknown value codec")
)

// PuddleError reports a puddle that is absent from the store. Whether that
// means "no data in this window" or a real fault is the caller's decision.
type PuddleError struct {
	Start   uint64
	Band    vcd.SignalID
	Context string
}

func (e *PuddleError) Error() string {
	return fmt.Sprintf("%v: start %d, band %d: %s", ErrPuddleNotFound, e.Start, e.Band, e.Context)
}

func (e *PuddleError) Unwrap() error { return ErrPuddleNotFound }
