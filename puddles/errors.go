package puddles

import (
	"errors"
	"fmt"
)

var (
	ErrDropletTooShort   = errors.New("puddles: droplet is shorter than its header declares")
	ErrOffsetTooLarge    = errors.New("puddles: time offset does not fit a droplet header")
	ErrNotInBand         = errors.New("puddles: signal is not in the puddle band")
	ErrTimeOutsidePuddle = errors.New("puddles: time is outside the puddle window")
	ErrTimeNotIncreasing = errors.New("puddles: change is earlier than the previous change of the signal")
	ErrWidthMismatch     = errors.New("puddles: value width differs from the width of the run")
	ErrBadHeader         = errors.New("puddles: serialized puddle header is invalid")
	ErrDataLength        = errors.New("puddles: serialized puddle length does not match its header")
	ErrRunOutOfBounds    = errors.New("puddles: run lies outside the puddle data")
	ErrNoRun             = errors.New("puddles: signal has no changes in the puddle")
	ErrRunExhausted      = errors.New("puddles: no further droplet in the run")
	ErrBeforeRun         = errors.New("puddles: time precedes the first droplet of the run")
	ErrOutsidePuddle     = errors.New("puddles: seek time is outside the puddle")
)

// BoundaryError is returned when a cursor is asked to seek outside its
// puddle. Boundary is the first time of the puddle when the seek was earlier,
// and the last time of the puddle when the seek was later, so the caller can
// retry against the adjacent puddle.
type BoundaryError struct {
	Time     uint64
	Boundary uint64
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("%v: time %d, boundary %d", ErrOutsidePuddle, e.Time, e.Boundary)
}

func (e *BoundaryError) Unwrap() error { return ErrOutsidePuddle }

// Earlier reports whether the seek time preceded the puddle.
func (e *BoundaryError) Earlier() bool { return e.Time < e.Boundary }
