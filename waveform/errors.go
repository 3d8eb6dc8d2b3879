package waveform

import "errors"

var (
	ErrNoMoreChanges     = errors.New("waveform: no further change in that direction")
	ErrBeforeFirstChange = errors.New("waveform: time precedes the first change of the signal")
	ErrNotPositioned     = errors.New("waveform: cursor has not been positioned")
	ErrNotMonotonic      = errors.New("waveform: changes are not in increasing time order")
	ErrWidthMismatch     = errors.New("waveform: stored run width differs from the signal width")
	ErrLinkBroken        = errors.New("waveform: link points at a time with no change")
)
